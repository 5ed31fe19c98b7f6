package errors

import "net/http"

var ErrDuplicateApplication = &Exception{
	Kind:       KindConflict,
	Message:    "you have already applied to this task",
	StatusCode: http.StatusConflict,
}
