package errors

import "net/http"

var ErrApplicationNotFound = &Exception{
	Kind:       KindNotFound,
	Message:    "application not found",
	StatusCode: http.StatusNotFound,
}
