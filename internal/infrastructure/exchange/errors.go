package exchange

import "errors"

// ErrRateLimited marks a venue throttle response. The scanner retries these
// with backoff; any other fetch error degrades the symbol instead.
var ErrRateLimited = errors.New("venue rate limit exceeded")
