package app

import (
	"context"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nidoapp/nido-api/internal/api/handlers"
	"github.com/nidoapp/nido-api/internal/api/server"
	"github.com/nidoapp/nido-api/internal/auth"
	"github.com/nidoapp/nido-api/internal/blob"
	"github.com/nidoapp/nido-api/internal/config"
	"github.com/nidoapp/nido-api/internal/deletion"
	"github.com/nidoapp/nido-api/internal/identity"
	"github.com/nidoapp/nido-api/internal/store"
)

// CommonModule provides shared dependencies for both API and Worker
var CommonModule = fx.Options(
	fx.Provide(
		config.Load,
		NewLogger,
		NewETCDClient,
		store.NewClientWrapper,
		store.NewDocumentStore,
		store.NewOwnedIndex,
		store.NewReferenceIndex,
		deletion.NewJobStore,
		deletion.NewService,
	),
)

// APIModule provides dependencies specific to the API server
var APIModule = fx.Options(
	CommonModule,
	fx.Provide(
		NewAuthenticator,
		handlers.NewAccountHandler,
		server.NewRouter,
		server.NewServer,
	),
)

// WorkerModule provides dependencies specific to the deletion worker
var WorkerModule = fx.Options(
	CommonModule,
	fx.Provide(
		blob.NewMinioClient,
		blob.NewMinioStore,
		identity.NewClient,
		deletion.NewClaimManager,
		deletion.NewExecutor,
		deletion.NewWorker,
	),
)

func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config
	if cfg.Logging.Development {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	zapConfig.Level = zap.NewAtomicLevelAt(parseLogLevel(cfg.Logging.Level))
	zapConfig.Encoding = cfg.Logging.Format
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	zapConfig.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	zapConfig.DisableCaller = !cfg.Logging.EnableCaller
	zapConfig.DisableStacktrace = !cfg.Logging.EnableStacktrace

	return zapConfig.Build()
}

func NewETCDClient(cfg *config.Config) (*clientv3.Client, error) {
	return clientv3.New(clientv3.Config{
		Endpoints:            cfg.ETCD.Endpoints,
		DialTimeout:          cfg.ETCD.DialTimeout,
		DialKeepAliveTime:    cfg.ETCD.DialKeepAliveTime,
		DialKeepAliveTimeout: cfg.ETCD.DialKeepAliveTimeout,
		MaxCallSendMsgSize:   cfg.ETCD.MaxCallSendMsgSize,
		MaxCallRecvMsgSize:   cfg.ETCD.MaxCallRecvMsgSize,
		Username:             cfg.ETCD.Username,
		Password:             cfg.ETCD.Password,
	})
}

// NewAuthenticator discovers the OIDC issuer at startup; the API cannot
// serve without it.
func NewAuthenticator(cfg *config.Config) (auth.Authenticator, error) {
	return auth.NewOIDCAuthenticator(context.Background(), cfg)
}

func parseLogLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
