package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Rodovar-GPS/GPS/internal/storage"
)

// DriverService manages the driver roster.
type DriverService struct {
	drivers storage.DriversRepository
}

func NewDriverService(drivers storage.DriversRepository) *DriverService {
	return &DriverService{drivers: drivers}
}

// Save creates or updates a driver. A new driver whose name matches an
// existing one (case-insensitive) is rejected with ErrDuplicateDriver.
func (s *DriverService) Save(ctx context.Context, d storage.Driver) (*storage.Driver, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.Phone = strings.TrimSpace(d.Phone)
	if d.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidDriver)
	}
	if d.CurrentMileage < 0 || d.NextMaintenanceMileage < 0 {
		return nil, fmt.Errorf("%w: mileage cannot be negative", ErrInvalidDriver)
	}

	isNew := d.ID == ""
	if !isNew {
		existing, err := s.drivers.GetDriver(ctx, d.ID)
		if err != nil {
			return nil, fmt.Errorf("service: SaveDriver: %w", err)
		}
		isNew = existing == nil
	}

	if isNew {
		all, err := s.drivers.ListDrivers(ctx)
		if err != nil {
			return nil, fmt.Errorf("service: SaveDriver: %w", err)
		}
		for _, other := range all {
			if strings.EqualFold(other.Name, d.Name) {
				return nil, ErrDuplicateDriver
			}
		}
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
	}

	if err := s.drivers.UpsertDriver(ctx, &d); err != nil {
		return nil, fmt.Errorf("service: SaveDriver: %w", err)
	}
	return &d, nil
}

func (s *DriverService) Get(ctx context.Context, id string) (*storage.Driver, error) {
	d, err := s.drivers.GetDriver(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: GetDriver: %w", err)
	}
	if d == nil {
		return nil, ErrDriverNotFound
	}
	return d, nil
}

func (s *DriverService) List(ctx context.Context) ([]storage.Driver, error) {
	list, err := s.drivers.ListDrivers(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: ListDrivers: %w", err)
	}
	return list, nil
}

func (s *DriverService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.drivers.DeleteDriver(ctx, id); err != nil {
		return fmt.Errorf("service: DeleteDriver: %w", err)
	}
	return nil
}
