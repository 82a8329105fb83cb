// Package apperr defines sentinel errors shared across service layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrBusy is returned while a chat pipeline invocation is in flight;
	// input is disabled until the request/interpret cycle finishes.
	ErrBusy = errors.New("assistant busy")

	// ErrConfirmationPending is returned while an ASK_USER confirmation is
	// outstanding. Normal input resumes once the user picks an option.
	ErrConfirmationPending = errors.New("confirmation pending")

	// ErrAINotReady marks a failed conversation reinitialization. Further
	// input is blocked until a reset succeeds.
	ErrAINotReady = errors.New("ai not ready")
)
