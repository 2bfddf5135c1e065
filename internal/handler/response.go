package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pawdose/medtrack-api/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// RespondError maps application error codes onto HTTP statuses and writes
// the envelope.
func RespondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.IsCode(err, errors.ErrNotFound):
		status = http.StatusNotFound
	case errors.IsCode(err, errors.ErrBadRequest), errors.IsCode(err, errors.ErrInvalidSchedule):
		status = http.StatusBadRequest
	case errors.IsCode(err, errors.ErrIllegalTransition):
		status = http.StatusConflict
	case errors.IsCode(err, errors.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.IsCode(err, errors.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, NewErrorResponse(err.Error()))
}
