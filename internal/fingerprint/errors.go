package fingerprint

import "errors"

var (
	ErrInvalidInput    = errors.New("invalid fingerprint input")
	ErrUnreadableInput = errors.New("fingerprint input could not be read")
	ErrInvalid         = errors.New("invalid fingerprint")
)
