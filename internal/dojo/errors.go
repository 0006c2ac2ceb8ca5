package dojo

import "errors"

var (
	// ErrAlreadyInitialized is returned by Initialize when dojo.yml exists or
	// a subdirectory already holds a module manifest.
	ErrAlreadyInitialized = errors.New("dojo is already initialized")
	// ErrInvalidRequest is returned before any side effect when a request
	// is missing fields or names an unusable path segment.
	ErrInvalidRequest = errors.New("invalid request")

	ErrDirectoryAlreadyExists = errors.New("directory already exists")
	ErrDirectoryCreateFailed  = errors.New("directory create failed")
	ErrChallengePathNotFound  = errors.New("challenge path not found")
	ErrSubmoduleNotFound      = errors.New("submodule not found")
	ErrSubmoduleAddFailed     = errors.New("submodule add failed")
)
