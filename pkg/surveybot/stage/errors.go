package stage

import "errors"

var (
	ErrNoInitialization   = errors.New("initialization type not set")
	ErrMissingSource      = errors.New("initialization source is missing or does not match the initialization type")
	ErrMissingCredentials = errors.New("platform credentials (username, password) are required")
	ErrNoDocument         = errors.New("no survey document in session")
	ErrEmptyText          = errors.New("document contains no extractable text")
	ErrSegmentation       = errors.New("could not segment the document into chunks")
	ErrModelResponse      = errors.New("model response does not match the expected format")
)
