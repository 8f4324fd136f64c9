package crossref

import "errors"

var (
	// ErrNotFound indicates no cross-reference exists for the requested
	// primary id.
	ErrNotFound = errors.New("crossref: not found")

	// ErrGraphCreateFailed indicates the graph-store half of a three-store
	// write failed; Create's caller sees the wrapped underlying error.
	ErrGraphCreateFailed = errors.New("crossref: graph store create failed")

	// ErrSearchCreateFailed indicates the search-index half of a
	// three-store write failed.
	ErrSearchCreateFailed = errors.New("crossref: search index create failed")
)
