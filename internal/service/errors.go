package service

import "errors"

// Sentinel errors returned by the services. Handlers map them to HTTP
// statuses with errors.Is.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenRevoked       = errors.New("auth: token revoked")
	ErrJWTSecretMissing   = errors.New("auth: JWT_SECRET not configured")

	ErrShipmentNotFound  = errors.New("shipment not found")
	ErrShipmentExists    = errors.New("shipment code already in use")
	ErrShipmentDelivered = errors.New("shipment already delivered")
	ErrInvalidShipment   = errors.New("invalid shipment")
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	ErrDriverNotFound  = errors.New("driver not found")
	ErrDuplicateDriver = errors.New("a driver with this name already exists")
	ErrInvalidDriver   = errors.New("invalid driver")

	ErrUserNotFound = errors.New("user not found")
	ErrInvalidUser  = errors.New("invalid user")
	ErrLastMaster   = errors.New("cannot remove the last MASTER user")

	ErrTripAlreadyActive = errors.New("trip already in progress")
	ErrNoActiveTrip      = errors.New("no trip in progress")

	ErrInvalidSettings = errors.New("invalid settings")
)
