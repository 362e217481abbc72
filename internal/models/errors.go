package models

import (
	"errors"
)

var (
	ErrNotFound            = errors.New("models: no matching record found")
	ErrInvalidCredentials  = errors.New("models: invalid credentials")
	ErrForbidden           = errors.New("models: forbidden")
	ErrDuplicateLead       = errors.New("models: lead with this email already exists in workspace")
	ErrDuplicateRecord     = errors.New("models: duplicate record")
	ErrInsufficientCredits = errors.New("models: insufficient credits")
	ErrInvalidTransition   = errors.New("models: invalid status transition")
	ErrListingUnavailable  = errors.New("models: listing is not available")
	ErrOwnListing          = errors.New("models: cannot purchase own listing")
	ErrInvalidUpload       = errors.New("models: unsupported upload")
	ErrFeatureDisabled     = errors.New("models: feature is not configured")
	ErrInvalidInput        = errors.New("models: invalid input")
)
