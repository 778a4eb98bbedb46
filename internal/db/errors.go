package db

import "errors"

// ErrKeyNotFound is returned for a missing key.
var ErrKeyNotFound = errors.New("db: key not found")

// Op constants map to Valkey/Redis command names for error context.
const (
	OpIndexInfo = "FT.INFO"
	OpSearch    = "FT.SEARCH"
	OpHGetAll   = "HGETALL"
	OpGet       = "GET"
	OpSet       = "SET"
	OpRPush     = "RPUSH"
	OpLTrim     = "LTRIM"
	OpExpire    = "EXPIRE"
	OpLRange    = "LRANGE"
	OpExec      = "EXEC"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
