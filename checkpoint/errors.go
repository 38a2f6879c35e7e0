package checkpoint

import "errors"

var (
	// ErrPathRequired indicates a Store was constructed without a file path.
	ErrPathRequired = errors.New("checkpoint path is required")
)
