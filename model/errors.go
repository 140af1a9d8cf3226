package model

import "errors"

var (
	// ErrCollaboratorUnavailable marks failures of the embedder, a vector store or the generator.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	// ErrInvalidRequest marks query requests that cannot be served.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotFound marks lookups of rows that do not exist.
	ErrNotFound = errors.New("not found")
)
