package cache

import "errors"

var (
	// ErrNotFound is returned by Storage.Match when QueryOptions.CacheName names a missing cache.
	ErrNotFound = errors.New("cache not found")

	// ErrBadResponse is returned by Add and AddAll when a fetched response is not ok.
	ErrBadResponse = errors.New("bad response status")
)

type notFoundError struct {
	name string
}

func (e notFoundError) Error() string {
	return `cache with name "` + e.name + `" not found`
}

func (e notFoundError) Is(target error) bool { return target == ErrNotFound }
