package models

import "errors"

var (
	// ErrConfiguration is fatal and reported before any work starts
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks a missing folder or file
	ErrNotFound = errors.New("not found")
	// ErrExternalService marks an embedding or LLM call that kept failing
	ErrExternalService = errors.New("external service error")
	// ErrStore marks a vector store I/O failure
	ErrStore = errors.New("store error")

	ErrStreamConsumed = errors.New("answer stream already consumed")
)
