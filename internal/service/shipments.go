package service

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Rodovar-GPS/GPS/internal/events"
	"github.com/Rodovar-GPS/GPS/internal/geo"
	"github.com/Rodovar-GPS/GPS/internal/geocode"
	"github.com/Rodovar-GPS/GPS/internal/storage"
)

const (
	codeMin = 1000
	codeMax = 9999

	// maxCodeAttempts bounds the search for an unused tracking code.
	maxCodeAttempts = 1000
)

// Locator resolves labels to coordinates and back. *geocode.Locator
// satisfies it.
type Locator interface {
	LocateCity(ctx context.Context, city, state string) geo.Coordinate
	LocatePlace(ctx context.Context, place, detailedAddress string) geo.Coordinate
	Describe(ctx context.Context, c geo.Coordinate) (*geocode.Address, error)
}

// ShipmentService manages shipments on behalf of administrators.
type ShipmentService struct {
	shipments storage.ShipmentsRepository
	drivers   storage.DriversRepository
	locator   Locator
	publisher events.Publisher
	now       func() time.Time
	randCode  func() int

	// locks serialises read-modify-write cycles per tracking code.
	locks keyedMutex
}

// NewShipmentService creates a ShipmentService. publisher may be nil.
func NewShipmentService(
	shipments storage.ShipmentsRepository,
	drivers storage.DriversRepository,
	locator Locator,
	publisher events.Publisher,
) *ShipmentService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &ShipmentService{
		shipments: shipments,
		drivers:   drivers,
		locator:   locator,
		publisher: publisher,
		now:       time.Now,
		randCode:  func() int { return codeMin + rand.Intn(codeMax-codeMin+1) },
	}
}

// GenerateCode returns an unused tracking code for company: the company
// prefix followed by four digits.
func (s *ShipmentService) GenerateCode(ctx context.Context, company string) (string, error) {
	prefix := normalizeCompany(company)
	for i := 0; i < maxCodeAttempts; i++ {
		code := fmt.Sprintf("%s%d", prefix, s.randCode())
		existing, err := s.shipments.GetShipment(ctx, code)
		if err != nil {
			return "", fmt.Errorf("service: GenerateCode: %w", err)
		}
		if existing == nil {
			return code, nil
		}
	}
	return "", fmt.Errorf("service: GenerateCode: no free code for %s after %d attempts", prefix, maxCodeAttempts)
}

// Create stores a new shipment. An empty code is generated; unknown
// coordinates are geocoded from their labels; stops are ordered from the
// origin.
func (s *ShipmentService) Create(ctx context.Context, in storage.Shipment) (*storage.Shipment, error) {
	in.Company = normalizeCompany(in.Company)
	in.Code = normalizeCode(in.Code)

	if in.Code == "" {
		code, err := s.GenerateCode(ctx, in.Company)
		if err != nil {
			return nil, err
		}
		in.Code = code
	}

	unlock := s.locks.lock(in.Code)
	defer unlock()

	existing, err := s.shipments.GetShipment(ctx, in.Code)
	if err != nil {
		return nil, fmt.Errorf("service: Create: %w", err)
	}
	if existing != nil {
		return nil, ErrShipmentExists
	}

	if in.Status == "" {
		in.Status = storage.StatusPending
	}
	if err := s.prepare(ctx, &in, nil); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	in.CreatedAt = now
	in.UpdatedAt = now
	in.LastUpdate = now
	if len(in.Stops) > 0 && !in.OriginCoordinates.IsUnknown() {
		in.Stops = geo.OptimizeRoute(in.OriginCoordinates, in.Stops)
	}

	if err := s.shipments.UpsertShipment(ctx, &in); err != nil {
		return nil, fmt.Errorf("service: Create: %w", err)
	}
	s.publishStatus(ctx, &in)
	return &in, nil
}

// Update replaces the editable fields of an existing shipment.
func (s *ShipmentService) Update(ctx context.Context, code string, in storage.Shipment) (*storage.Shipment, error) {
	var changed bool
	sh, err := s.modify(ctx, code, func(sh *storage.Shipment) error {
		existing := *sh
		in.Code = existing.Code
		in.Company = normalizeCompany(in.Company)
		in.CreatedAt = existing.CreatedAt
		if in.Status == "" {
			in.Status = existing.Status
		}
		if err := s.prepare(ctx, &in, &existing); err != nil {
			return err
		}
		in.UpdatedAt = s.now().UTC()
		if in.LastUpdate.IsZero() {
			in.LastUpdate = existing.LastUpdate
		}
		changed = in.Status != existing.Status || in.IsLive != existing.IsLive
		*sh = in
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.publishStatus(ctx, sh)
	}
	return sh, nil
}

// modify loads code under its lock, applies fn and saves the result. Every
// write to a stored shipment goes through here or holds the code's lock.
func (s *ShipmentService) modify(ctx context.Context, code string, fn func(*storage.Shipment) error) (*storage.Shipment, error) {
	code = normalizeCode(code)
	unlock := s.locks.lock(code)
	defer unlock()

	sh, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := fn(sh); err != nil {
		return nil, err
	}
	if err := s.shipments.UpsertShipment(ctx, sh); err != nil {
		return nil, fmt.Errorf("service: save shipment %s: %w", sh.Code, err)
	}
	return sh, nil
}

// prepare validates in and fills geocoded and denormalised fields. prev is
// the stored version when updating.
func (s *ShipmentService) prepare(ctx context.Context, in *storage.Shipment, prev *storage.Shipment) error {
	if !in.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidShipment, in.Status)
	}
	in.Origin = strings.TrimSpace(in.Origin)
	in.Destination = strings.TrimSpace(in.Destination)
	if in.Origin == "" || in.Destination == "" {
		return fmt.Errorf("%w: origin and destination are required", ErrInvalidShipment)
	}

	if prev != nil {
		if in.OriginCoordinates.IsUnknown() && in.Origin == prev.Origin {
			in.OriginCoordinates = prev.OriginCoordinates
		}
		if in.DestinationCoordinates.IsUnknown() && in.Destination == prev.Destination &&
			in.DestinationAddress == prev.DestinationAddress {
			in.DestinationCoordinates = prev.DestinationCoordinates
		}
		if in.CurrentLocation.Coordinates.IsUnknown() {
			in.CurrentLocation = prev.CurrentLocation
		}
	}

	if in.OriginCoordinates.IsUnknown() {
		in.OriginCoordinates = s.locator.LocatePlace(ctx, in.Origin, "")
	}
	if in.DestinationCoordinates.IsUnknown() {
		in.DestinationCoordinates = s.locator.LocatePlace(ctx, in.Destination, in.DestinationAddress)
	}
	if in.CurrentLocation.Coordinates.IsUnknown() {
		city, state := splitPlace(in.Origin)
		in.CurrentLocation = storage.Location{City: city, State: state, Coordinates: in.OriginCoordinates}
	}

	for i := range in.Stops {
		st := &in.Stops[i]
		if st.ID == "" {
			st.ID = uuid.NewString()
		}
		if st.Coordinates.IsUnknown() && st.City != "" {
			st.Coordinates = s.locator.LocateCity(ctx, st.City, st.State)
		}
	}

	in.DriverName, in.DriverPhoto = "", ""
	if in.DriverID != "" {
		d, err := s.drivers.GetDriver(ctx, in.DriverID)
		if err != nil {
			return fmt.Errorf("service: lookup driver: %w", err)
		}
		if d == nil {
			return ErrDriverNotFound
		}
		in.DriverName = d.Name
		in.DriverPhoto = d.PhotoURL
	}
	return nil
}

// Get returns a shipment by code (case-insensitive).
func (s *ShipmentService) Get(ctx context.Context, code string) (*storage.Shipment, error) {
	sh, err := s.shipments.GetShipment(ctx, normalizeCode(code))
	if err != nil {
		return nil, fmt.Errorf("service: Get: %w", err)
	}
	if sh == nil {
		return nil, ErrShipmentNotFound
	}
	return sh, nil
}

// List returns every shipment ordered by code.
func (s *ShipmentService) List(ctx context.Context) ([]storage.Shipment, error) {
	list, err := s.shipments.ListShipments(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: List: %w", err)
	}
	return list, nil
}

// Delete removes a shipment.
func (s *ShipmentService) Delete(ctx context.Context, code string) error {
	code = normalizeCode(code)
	unlock := s.locks.lock(code)
	defer unlock()

	sh, err := s.Get(ctx, code)
	if err != nil {
		return err
	}
	if err := s.shipments.DeleteShipment(ctx, sh.Code); err != nil {
		return fmt.Errorf("service: Delete: %w", err)
	}
	return nil
}

// OptimizeStops reorders the stored stops by nearest neighbour from the origin.
func (s *ShipmentService) OptimizeStops(ctx context.Context, code string) (*storage.Shipment, error) {
	return s.modify(ctx, code, func(sh *storage.Shipment) error {
		sh.Stops = geo.OptimizeRoute(sh.OriginCoordinates, sh.Stops)
		sh.UpdatedAt = s.now().UTC()
		return nil
	})
}

// FindActiveByDriverPhone returns the first non-delivered shipment whose
// driver's phone matches phone, comparing digits only. Either number may be
// a substring of the other, so numbers with or without country and area
// codes match.
func (s *ShipmentService) FindActiveByDriverPhone(ctx context.Context, phone string) (*storage.Shipment, error) {
	want := digitsOnly(phone)
	if want == "" {
		return nil, ErrShipmentNotFound
	}

	drivers, err := s.drivers.ListDrivers(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: FindActiveByDriverPhone: %w", err)
	}
	matched := make(map[string]bool)
	for _, d := range drivers {
		got := digitsOnly(d.Phone)
		if got == "" {
			continue
		}
		if strings.Contains(got, want) || strings.Contains(want, got) {
			matched[d.ID] = true
		}
	}
	if len(matched) == 0 {
		return nil, ErrShipmentNotFound
	}

	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if matched[list[i].DriverID] && list[i].Status != storage.StatusDelivered {
			return &list[i], nil
		}
	}
	return nil, ErrShipmentNotFound
}

func (s *ShipmentService) publishStatus(ctx context.Context, sh *storage.Shipment) {
	ev := events.StatusEvent{
		Code:      sh.Code,
		Status:    string(sh.Status),
		IsLive:    sh.IsLive,
		Timestamp: s.now().UTC(),
	}
	if err := s.publisher.PublishStatus(ctx, ev); err != nil {
		log.Printf("service: publish status %s: %v", sh.Code, err)
	}
}

func normalizeCompany(company string) string {
	c := strings.ToUpper(strings.TrimSpace(company))
	if c == storage.CompanyAXD {
		return storage.CompanyAXD
	}
	return storage.CompanyRodovar
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// splitPlace splits "City - ST" into its parts.
func splitPlace(place string) (city, state string) {
	city, state, ok := strings.Cut(place, " - ")
	if !ok {
		return strings.TrimSpace(place), ""
	}
	return strings.TrimSpace(city), strings.ToUpper(strings.TrimSpace(state))
}
