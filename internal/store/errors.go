package store

import (
	"errors"
	"fmt"
)

// NotFoundError represents when a key is not present in the store
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("key %s not found", e.Key)
}

func NewNotFoundError(key string) *NotFoundError {
	return &NotFoundError{
		Key: key,
	}
}

func IsNotFoundError(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}
