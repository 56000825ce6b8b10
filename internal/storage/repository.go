package storage

import (
	"context"
	"time"
)

// ShipmentsRepository defines operations on shipments, keyed by tracking code.
type ShipmentsRepository interface {
	// GetShipment returns a shipment by code, or (nil, nil) if not found.
	GetShipment(ctx context.Context, code string) (*Shipment, error)

	// ListShipments returns every shipment ordered by code.
	ListShipments(ctx context.Context) ([]Shipment, error)

	// UpsertShipment inserts or replaces a shipment.
	UpsertShipment(ctx context.Context, s *Shipment) error

	// DeleteShipment removes a shipment by code.
	DeleteShipment(ctx context.Context, code string) error
}

// DriversRepository defines operations on drivers, keyed by ID.
type DriversRepository interface {
	// GetDriver returns a driver by ID, or (nil, nil) if not found.
	GetDriver(ctx context.Context, id string) (*Driver, error)

	// ListDrivers returns every driver ordered by ID.
	ListDrivers(ctx context.Context) ([]Driver, error)

	// UpsertDriver inserts or replaces a driver.
	UpsertDriver(ctx context.Context, d *Driver) error

	// DeleteDriver removes a driver by ID.
	DeleteDriver(ctx context.Context, id string) error
}

// UsersRepository defines operations on admin users, keyed by username.
type UsersRepository interface {
	// GetUser returns a user by username, or (nil, nil) if not found.
	GetUser(ctx context.Context, username string) (*AdminUser, error)

	// ListUsers returns every user ordered by username.
	ListUsers(ctx context.Context) ([]AdminUser, error)

	// UpsertUser inserts or replaces a user.
	UpsertUser(ctx context.Context, u *AdminUser) error

	// DeleteUser removes a user by username.
	DeleteUser(ctx context.Context, username string) error
}

// SettingsRepository stores the single company branding record.
type SettingsRepository interface {
	// GetSettings returns the stored settings, or (nil, nil) if none were saved.
	GetSettings(ctx context.Context) (*CompanySettings, error)

	// SaveSettings replaces the stored settings.
	SaveSettings(ctx context.Context, s *CompanySettings) error
}

// RefreshTokensRepository defines operations on hashed refresh tokens.
type RefreshTokensRepository interface {
	// StoreRefreshToken persists a hashed refresh token.
	StoreRefreshToken(ctx context.Context, tokenHash, username string, expiresAt time.Time) error

	// GetRefreshToken returns a refresh token by hash, or (nil, nil) if not found.
	GetRefreshToken(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// RevokeRefreshToken marks a refresh token as revoked.
	RevokeRefreshToken(ctx context.Context, tokenHash string) error

	// RevokeAllUserTokens revokes every refresh token issued to username.
	RevokeAllUserTokens(ctx context.Context, username string) error
}
