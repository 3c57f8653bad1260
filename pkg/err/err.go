package errprocess

import (
	"errors"

	"estate_chat_service/pkg/logger"
)

// Set log the err info and return it as an error
func Set(errMsg string) error {
	logger.Log.Error(errMsg)
	return errors.New(errMsg)
}
