package errors

import (
	"net/http"
	"time"

	"pvv/api/models/dtos"
)

/*
	Utility functions to facillitate returning error responses to HTTP clients
*/

// -- Simplest: 1 error with message
func CreateSimpleError(code int, message string) dtos.GeneralErrorResponseDto {
	return dtos.GeneralErrorResponseDto{
		Code:      code,
		Message:   http.StatusText(code),
		Timestamp: time.Now(),
		Errors: []dtos.GeneralError{
			{
				Message: message,
			},
		},
	}
}

func CreateSimpleBadRequest(message string) dtos.GeneralErrorResponseDto {
	return CreateSimpleError(http.StatusBadRequest, message)
}
func CreateSimpleNotFound(message string) dtos.GeneralErrorResponseDto {
	return CreateSimpleError(http.StatusNotFound, message)
}
func CreateSimpleConflict(message string) dtos.GeneralErrorResponseDto {
	return CreateSimpleError(http.StatusConflict, message)
}
func CreateSimpleInternalServerError(message string) dtos.GeneralErrorResponseDto {
	return CreateSimpleError(http.StatusInternalServerError, message)
}
func CreateSimpleServiceUnavailable(message string) dtos.GeneralErrorResponseDto {
	return CreateSimpleError(http.StatusServiceUnavailable, message)
}

// --
