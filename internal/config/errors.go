package config

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorCodeFileReadFailed    ErrorCode = "file_read_failed"
	ErrorCodeParseFailed       ErrorCode = "parse_failed"
	ErrorCodeInvalidValue      ErrorCode = "invalid_value"
	ErrorCodeMissingCredential ErrorCode = "missing_credential"
)

type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (err *Error) Error() string {
	if err == nil {
		return ""
	}

	base := err.Message
	if base == "" {
		base = "configuration error"
	}
	if err.Err == nil {
		return base
	}
	return fmt.Sprintf("%s: %v", base, err.Err)
}

func (err *Error) Unwrap() error {
	if err == nil {
		return nil
	}
	return err.Err
}

func IsErrorCode(err error, code ErrorCode) bool {
	var configErr *Error
	if !errors.As(err, &configErr) {
		return false
	}
	return configErr.Code == code
}
