package storage

import "errors"

var (
	ErrNotFound         = errors.New("appointment not found")
	ErrPropertyNotFound = errors.New("property not found")
)
