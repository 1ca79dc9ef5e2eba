package model

import "errors"

// ErrRecordNotFound is wrapped by RecordStore implementations when a content document does not exist.
var ErrRecordNotFound = errors.New("content record not found")
