package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/astrocat/internal/domain"
)

// Sentinel errors for database operations.
var (
	ErrNotFound      = errors.New("db: not found")
	ErrConflict      = errors.New("db: conflict")
	ErrUnavailable   = errors.New("db: unavailable")
	ErrIndexNotFound = errors.New("db: index not found")
	ErrIndexExists   = errors.New("db: index already exists")
)

// Op constants name the failing command for error context.
const (
	OpCreateIndex = "FT.CREATE"
	OpDropIndex   = "FT.DROPINDEX"
	OpIndexInfo   = "FT.INFO"
	OpSearch      = "FT.SEARCH"
	OpAggregate   = "FT.AGGREGATE"
	OpCursor      = "FT.CURSOR"
	OpDel         = "DEL"
	OpHGetAll     = "HGETALL"
	OpHSet        = "HSET"
	OpHIncrBy     = "HINCRBY"
	OpExists      = "EXISTS"
	OpScan        = "SCAN"
	OpIncr        = "INCR"
	OpQuery       = "QUERY"
	OpExec        = "EXEC"
	OpBegin       = "BEGIN"
	OpCommit      = "COMMIT"
	OpPut         = "PUT"
	OpGet         = "GET"
	OpList        = "LIST"
	OpRemove      = "REMOVE"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// DomainError translates a storage failure into the matching domain sentinel,
// keeping the original error in the chain. Unknown errors pass through unchanged.
func DomainError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", domain.ErrCancelled, err)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrIndexNotFound):
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case errors.Is(err, ErrConflict):
		return fmt.Errorf("%w: %w", domain.ErrAlreadyExists, err)
	case errors.Is(err, ErrUnavailable):
		return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	return err
}
