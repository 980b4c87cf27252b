package repositories

import "fmt"

type errorKind int

const (
	kindNotFound errorKind = iota + 1
	kindConflict
	kindUnavailable
)

// Error is a RepositoryError for backends without their own error taxonomy.
type Error struct {
	Op   string
	ID   string
	kind errorKind
	msg  string
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(op, id string) *Error {
	return &Error{Op: op, ID: id, kind: kindNotFound, msg: "not found"}
}

// NewConflictError reports a version mismatch.
func NewConflictError(op, id string) *Error {
	return &Error{Op: op, ID: id, kind: kindConflict, msg: "version conflict"}
}

// NewUnavailableError reports a backend that cannot serve requests.
func NewUnavailableError(op, msg string) *Error {
	return &Error{Op: op, kind: kindUnavailable, msg: msg}
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.ID, e.msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.msg)
}

func (e *Error) IsNotFound() bool    { return e != nil && e.kind == kindNotFound }
func (e *Error) IsConflict() bool    { return e != nil && e.kind == kindConflict }
func (e *Error) IsUnavailable() bool { return e != nil && e.kind == kindUnavailable }

var _ RepositoryError = (*Error)(nil)
