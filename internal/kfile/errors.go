package kfile

import "go.trai.ch/zerr"

var (
	// ErrMissingProject is returned when a Kfile has no [project] table.
	ErrMissingProject = zerr.New("missing [project] section")

	// ErrUnknownSection is returned for top-level tables other than [project].
	ErrUnknownSection = zerr.New("unknown section")

	// ErrConditionNotBool is returned when a conditional table's expression
	// does not evaluate to a bool.
	ErrConditionNotBool = zerr.New("condition must evaluate to a bool")
)
