package probe

import "errors"

// ErrProbeFailed marks a backend excluded from the availability set.
var ErrProbeFailed = errors.New("probe failed")
