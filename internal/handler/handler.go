// Package handler exposes the tracking, driver and back-office services over
// HTTP with gin. Every error response is a JSON object {"error": "..."}.
package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Rodovar-GPS/GPS/internal/service"
)

// errorStatus maps a service error to its HTTP status. Anything it does not
// recognise is a 500.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrShipmentNotFound),
		errors.Is(err, service.ErrDriverNotFound),
		errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrInvalidShipment),
		errors.Is(err, service.ErrInvalidCoordinate),
		errors.Is(err, service.ErrInvalidDriver),
		errors.Is(err, service.ErrInvalidUser),
		errors.Is(err, service.ErrInvalidSettings):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrShipmentExists),
		errors.Is(err, service.ErrShipmentDelivered),
		errors.Is(err, service.ErrDuplicateDriver),
		errors.Is(err, service.ErrTripAlreadyActive),
		errors.Is(err, service.ErrNoActiveTrip),
		errors.Is(err, service.ErrLastMaster):
		return http.StatusConflict

	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrTokenRevoked):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// respondError writes err with the status from errorStatus. Internal errors
// are logged and replaced by a generic "<op> failed" message.
func respondError(c *gin.Context, op string, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("handler: %s: %v", op, err)
		c.JSON(status, gin.H{"error": op + " failed"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
