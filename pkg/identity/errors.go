package identity

import "errors"

var (
	ErrLinkNotFound = errors.New("anonymous link record not found")
	ErrLinkConflict = errors.New("anonymous identity link conflict")
	ErrLinkExists   = errors.New("anonymous link record already exists")
)
