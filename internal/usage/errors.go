package usage

import "errors"

// ErrLimitReached indicates the user exceeded their free upload allowance.
var ErrLimitReached = errors.New("limit reached")
