package plan

import "errors"

var (
	ErrPlan                  = errors.New("invalid plan")
	ErrInvalidStartupCommand = errors.New("invalid startup command")
)
