package cache

import "errors"

var (
	ErrCacheIO      = errors.New("cache i/o failed")
	ErrInvalidName  = errors.New("invalid cache name")
	ErrCorruptEntry = errors.New("corrupt cache metadata")
)
