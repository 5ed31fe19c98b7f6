package errors

import "net/http"

// ErrOptimisticLock is returned by stores when a conditional update matched no
// record because its precondition no longer held.
var ErrOptimisticLock = &Exception{
	Kind:       KindConflict,
	Message:    "optimistic locking conflict",
	StatusCode: http.StatusConflict,
}
