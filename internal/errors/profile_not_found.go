package errors

import "net/http"

var ErrProfileNotFound = &Exception{
	Kind:       KindNotFound,
	Message:    "profile not found",
	StatusCode: http.StatusNotFound,
}
