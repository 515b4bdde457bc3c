package rate

import "errors"

// ErrRateLimited is returned by Allow when the address is over its budget.
var ErrRateLimited = errors.New("rate limited")
