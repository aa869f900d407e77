package model

import (
	"errors"
)

var (
	ErrAlreadyExists     = errors.New("object already exists")
	ErrNotFound          = errors.New("not found")
	ErrFeedUnavailable   = errors.New("feed unavailable")
	ErrMissingCredential = errors.New("no publisher credential stored, complete the authorization flow first")
	ErrSyncInProgress    = errors.New("sync pass already in progress")
)
