package domain

import "errors"

var (
	ErrProjectNotFound    = errors.New("project not found")
	ErrConnectionNotFound = errors.New("connection not found")
	ErrInvalidPayload     = errors.New("invalid payload")
	ErrReadOnlyField      = errors.New("read-only field")
	ErrRoleConflict       = errors.New("role conflict")
	ErrUnknownRole        = errors.New("unknown role")
	ErrProjectNameEmpty   = errors.New("project name empty")
	ErrProjectNameTooLong = errors.New("project name too long")
)
