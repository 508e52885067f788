package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Server   ServerConfig   `envPrefix:"SERVER_"`
	ETCD     ETCDConfig     `envPrefix:"ETCD_"`
	Blob     BlobConfig     `envPrefix:"BLOB_"`
	Auth     AuthConfig     `envPrefix:"AUTH_"`
	Identity IdentityConfig `envPrefix:"IDENTITY_"`
	Deletion DeletionConfig `envPrefix:"DELETION_"`
	Logging  LoggingConfig  `envPrefix:"LOGGING_"`
}

type ServerConfig struct {
	Port            int           `env:"PORT" envDefault:"8080"`
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type ETCDConfig struct {
	Endpoints            []string      `env:"ENDPOINTS" envDefault:"localhost:2379" envSeparator:","`
	DialTimeout          time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	DialKeepAliveTime    time.Duration `env:"DIAL_KEEP_ALIVE_TIME" envDefault:"30s"`
	DialKeepAliveTimeout time.Duration `env:"DIAL_KEEP_ALIVE_TIMEOUT" envDefault:"5s"`
	MaxCallSendMsgSize   int           `env:"MAX_CALL_SEND_MSG_SIZE" envDefault:"2097152"`
	MaxCallRecvMsgSize   int           `env:"MAX_CALL_RECV_MSG_SIZE" envDefault:"4194304"`
	Username             string        `env:"USERNAME"`
	Password             string        `env:"PASSWORD"`
}

type BlobConfig struct {
	Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000" validate:"required"`
	AccessKey string `env:"ACCESS_KEY" validate:"required"`
	SecretKey string `env:"SECRET_KEY" validate:"required"`
	Region    string `env:"REGION" envDefault:"us-east-1"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
	Bucket    string `env:"BUCKET" envDefault:"nido-media" validate:"required"`
}

type AuthConfig struct {
	IssuerURL string `env:"ISSUER_URL" validate:"required,url"`
	ClientID  string `env:"CLIENT_ID" validate:"required"`
}

type IdentityConfig struct {
	BaseURL      string        `env:"BASE_URL" validate:"required,url"`
	ServiceToken string        `env:"SERVICE_TOKEN" validate:"required"`
	Timeout      time.Duration `env:"TIMEOUT" envDefault:"7s"`
}

// DeletionConfig carries the tuning knobs of the account-deletion worker.
// Lease duration bounds how long a crashed worker blocks reclaiming a job;
// page size bounds one atomic multi-document delete.
type DeletionConfig struct {
	Workers       int           `env:"WORKERS" envDefault:"3" validate:"min=1"`
	MaxAttempts   int           `env:"MAX_ATTEMPTS" envDefault:"5" validate:"min=1"`
	LeaseDuration time.Duration `env:"LEASE_DURATION" envDefault:"90s"`
	PageSize      int           `env:"PAGE_SIZE" envDefault:"100" validate:"min=1,max=500"`
	PollInterval  time.Duration `env:"POLL_INTERVAL" envDefault:"15s"`
	OpTimeout     time.Duration `env:"OP_TIMEOUT" envDefault:"5s"`
	OpRetries     int           `env:"OP_RETRIES" envDefault:"4" validate:"min=0"`
}

type LoggingConfig struct {
	Level            string `env:"LEVEL" envDefault:"info"`
	Format           string `env:"FORMAT" envDefault:"json"`
	EnableCaller     bool   `env:"ENABLE_CALLER" envDefault:"true"`
	EnableStacktrace bool   `env:"ENABLE_STACKTRACE" envDefault:"false"`
	Development      bool   `env:"DEVELOPMENT" envDefault:"false"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
