package domain

import "errors"

var (
	// ErrUnsupportedLanguage rejects uploads in a language without recognition models.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrEmptyUpload rejects uploads without content.
	ErrEmptyUpload = errors.New("empty upload")
)
