package project

import "go.trai.ch/zerr"

var (
	// ErrInvalidArgument is returned by New when the project name is empty.
	ErrInvalidArgument = zerr.New("invalid argument")

	// ErrFrozen is the panic value raised when a project is mutated after Freeze.
	ErrFrozen = zerr.New("project is frozen")
)
