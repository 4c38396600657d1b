package substrate

import (
	"fmt"

	"garden.dev/garden/protocol"
)

// ErrorCode identifies a class of substrate-facing failure.
type ErrorCode string

const (
	ErrStorage              ErrorCode = "STORAGE_ERROR"
	ErrSignature            ErrorCode = "SIGNATURE_ERROR"
	ErrNoBlockInStorage     ErrorCode = "NO_BLOCK_IN_STORAGE"
	ErrNoMessageInStorage   ErrorCode = "NO_MESSAGE_IN_STORAGE"
	ErrNoBlockWithMessage   ErrorCode = "NO_BLOCK_WITH_MESSAGE"
	ErrInvalidEventTypeCode ErrorCode = "INVALID_EVENT_TYPE"
)

// ReadError is returned by index read operations: storage, codec, or
// signature failures, plus the structural lookup failures below.
type ReadError struct {
	Code ErrorCode
	Hash protocol.Hash
	Err  error
}

func (e *ReadError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s(%s): %v", e.Code, e.Hash.Base64(), e.Err)
	}
	return fmt.Sprintf("%s(%s)", e.Code, e.Hash.Base64())
}

func (e *ReadError) Unwrap() error { return e.Err }

func NoBlockInStorage(h protocol.Hash) error {
	return &ReadError{Code: ErrNoBlockInStorage, Hash: h}
}

func NoMessageInStorage(h protocol.Hash) error {
	return &ReadError{Code: ErrNoMessageInStorage, Hash: h}
}

func NoBlockWithMessage(h protocol.Hash) error {
	return &ReadError{Code: ErrNoBlockWithMessage, Hash: h}
}

func InvalidEventType(h protocol.Hash) error {
	return &ReadError{Code: ErrInvalidEventTypeCode, Hash: h}
}

func Wrap(code ErrorCode, h protocol.Hash, err error) error {
	return &ReadError{Code: code, Hash: h, Err: err}
}
