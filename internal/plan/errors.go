package plan

import "errors"

var (
	ErrInvalidPlan = errors.New("invalid build plan")
)
