package identity

import "errors"

var (
	ErrAccessDenied        = errors.New("identity: access denied")
	ErrNotFound            = errors.New("identity: not found")
	ErrDuplicateAssignment = errors.New("identity: duplicate role assignment")
	ErrInvalidScope        = errors.New("identity: invalid scope")
	ErrContextConflict     = errors.New("identity: username exists in conflicting context")
	ErrInvalidHierarchy    = errors.New("identity: tenant hierarchy contains a cycle")
	ErrInvalidInput        = errors.New("identity: invalid input")
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
