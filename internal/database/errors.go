package database

import (
	"errors"
	"fmt"
)

// EngineError wraps a failure reported by a database driver: refused
// connections, authentication, malformed SQL, constraint violations and
// protocol errors. The message is the driver's, unchanged.
type EngineError struct {
	Driver DriverKind
	Err    error
}

func (e *EngineError) Error() string {
	return e.Err.Error()
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned when a query names a key with no live connection.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("client not found: %q", e.Key)
}

// IoError wraps a local I/O failure such as opening an embedded database file.
type IoError struct {
	Op   string
	Path string
	Err  error
}

func (e *IoError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IoError) Unwrap() error {
	return e.Err
}

// ErrClosed is returned by a client queried after Close.
var ErrClosed = errors.New("connection is closed")

// Engine wraps err as an EngineError for the given driver. A nil err stays nil
// and an error that already carries a taxonomy kind is returned unchanged.
func Engine(driver DriverKind, err error) error {
	if err == nil {
		return nil
	}
	var (
		engineErr *EngineError
		ioErr     *IoError
	)
	if errors.As(err, &engineErr) || errors.As(err, &ioErr) {
		return err
	}
	return &EngineError{Driver: driver, Err: err}
}

// Message renders err as the single human-readable string shown to callers.
func Message(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsEngine reports whether err is, or wraps, an EngineError.
func IsEngine(err error) bool {
	var ee *EngineError
	return errors.As(err, &ee)
}

// IsIo reports whether err is, or wraps, an IoError.
func IsIo(err error) bool {
	var ie *IoError
	return errors.As(err, &ie)
}
