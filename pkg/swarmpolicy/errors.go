package swarmpolicy

import "errors"

// ErrCapacityExceeded is returned by callers that choose to treat a denied
// CheckSpawnCapacity result as a hard error rather than inspecting Reason.
var ErrCapacityExceeded = errors.New("swarmpolicy: spawn capacity exceeded")

// ErrThrottled is the equivalent sentinel for a denied CheckThrottle result.
var ErrThrottled = errors.New("swarmpolicy: spawn throttled")
