package build

import "errors"

var (
	ErrInvalidStep         = errors.New("invalid step")
	ErrFileSystemOperation = errors.New("file system operation failed")
)
