// Package response defines the JSON envelope all API endpoints share.
package response

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Envelope is the response shape for both success and failure.
type Envelope struct {
	Status  int    `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK sends 200 with data.
func OK(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, Envelope{Status: http.StatusOK, Data: data})
}

// Accepted sends 202; used by ingest, which buffers rather than persists.
func Accepted(c echo.Context, data any) error {
	return c.JSON(http.StatusAccepted, Envelope{Status: http.StatusAccepted, Data: data})
}

// BadRequest sends 400 with an error detail.
func BadRequest(c echo.Context, message, detail string) error {
	return c.JSON(http.StatusBadRequest, Envelope{Status: http.StatusBadRequest, Message: message, Error: detail})
}

// InternalError sends 500 with an error detail.
func InternalError(c echo.Context, message, detail string) error {
	return c.JSON(http.StatusInternalServerError, Envelope{Status: http.StatusInternalServerError, Message: message, Error: detail})
}
