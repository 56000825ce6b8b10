package storage

import (
	"time"

	"github.com/Rodovar-GPS/GPS/internal/geo"
)

// ShipmentStatus is the lifecycle state shown to the end user.
type ShipmentStatus string

// Shipment statuses.
const (
	StatusPending   ShipmentStatus = "PENDING"
	StatusInTransit ShipmentStatus = "IN_TRANSIT"
	StatusStopped   ShipmentStatus = "STOPPED"
	StatusDelayed   ShipmentStatus = "DELAYED"
	StatusException ShipmentStatus = "EXCEPTION"
	StatusDelivered ShipmentStatus = "DELIVERED"
)

// Valid reports whether s is one of the known statuses.
func (s ShipmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInTransit, StatusStopped, StatusDelayed, StatusException, StatusDelivered:
		return true
	}
	return false
}

// Companies that issue tracking codes.
const (
	CompanyRodovar = "RODOVAR"
	CompanyAXD     = "AXD"
)

// Location is a labelled coordinate.
type Location struct {
	City        string         `json:"city"`
	State       string         `json:"state"`
	Address     string         `json:"address,omitempty"`
	Coordinates geo.Coordinate `json:"coordinates"`
}

// Shipment is one tracked load, keyed by its tracking code.
type Shipment struct {
	Code    string         `json:"code"`
	Company string         `json:"company"`
	Status  ShipmentStatus `json:"status"`
	IsLive  bool           `json:"is_live"`

	Origin                 string          `json:"origin"`
	OriginCoordinates      geo.Coordinate  `json:"origin_coordinates"`
	Destination            string          `json:"destination"`
	DestinationAddress     string          `json:"destination_address,omitempty"`
	DestinationCoordinates geo.Coordinate  `json:"destination_coordinates"`
	CurrentLocation        Location        `json:"current_location"`
	Stops                  []geo.RouteStop `json:"stops,omitempty"`

	DriverID    string `json:"driver_id,omitempty"`
	DriverName  string `json:"driver_name,omitempty"`
	DriverPhoto string `json:"driver_photo,omitempty"`

	Message           string    `json:"message,omitempty"`
	EstimatedDelivery string    `json:"estimated_delivery,omitempty"`
	LastUpdate        time.Time `json:"last_update"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Driver is a truck driver together with the vehicle they operate.
type Driver struct {
	ID                     string `json:"id"`
	Name                   string `json:"name"`
	Phone                  string `json:"phone,omitempty"`
	PhotoURL               string `json:"photo_url,omitempty"`
	VehiclePlate           string `json:"vehicle_plate,omitempty"`
	CurrentMileage         int    `json:"current_mileage,omitempty"`
	NextMaintenanceMileage int    `json:"next_maintenance_mileage,omitempty"`
}

// Admin roles.
const (
	RoleMaster = "MASTER"
	RoleBasic  = "BASIC"
)

// AdminUser is a back-office account.
type AdminUser struct {
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	FullName     string    `json:"full_name,omitempty"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"password_hash"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CompanySettings is the branding applied to every page.
type CompanySettings struct {
	Name            string `json:"name" yaml:"name" validate:"required,max=80"`
	Slogan          string `json:"slogan" yaml:"slogan" validate:"max=160"`
	LogoURL         string `json:"logo_url" yaml:"logoUrl" validate:"omitempty,url"`
	PrimaryColor    string `json:"primary_color" yaml:"primaryColor" validate:"omitempty,hexcolor"`
	BackgroundColor string `json:"background_color" yaml:"backgroundColor" validate:"omitempty,hexcolor"`
	CardColor       string `json:"card_color" yaml:"cardColor" validate:"omitempty,hexcolor"`
	TextColor       string `json:"text_color" yaml:"textColor" validate:"omitempty,hexcolor"`
}

// RefreshToken is a stored, hashed refresh token.
type RefreshToken struct {
	TokenHash string    `json:"token_hash"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}
