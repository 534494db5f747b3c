package store

import "errors"

// Domain errors for the config store package.
var (
	// ErrNotFound reports an absent key. Get and GetDevice do not return
	// it: they take a default and return that when the key is absent.
	ErrNotFound = errors.New("store: key not found")
)
