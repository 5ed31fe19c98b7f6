package errors

import "net/http"

var ErrTaskIDRequired = &Exception{
	Kind:       KindValidation,
	Message:    "task id is required",
	StatusCode: http.StatusBadRequest,
}
