package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/Rodovar-GPS/GPS/internal/events"
	"github.com/Rodovar-GPS/GPS/internal/geo"
	"github.com/Rodovar-GPS/GPS/internal/metrics"
	"github.com/Rodovar-GPS/GPS/internal/storage"
)

// stopReachedKm is the radius within which a route stop counts as visited.
const stopReachedKm = 0.5

// DriverSession is returned by a successful driver login.
type DriverSession struct {
	Token    string            `json:"token"`
	Shipment *storage.Shipment `json:"shipment"`
}

// TripService drives the shipment lifecycle from the driver's side.
type TripService struct {
	shipments *ShipmentService
	auth      *AuthService
	locator   Locator
	publisher events.Publisher
	metrics   *metrics.Collector
	now       func() time.Time
}

// NewTripService creates a TripService. publisher and m may be nil.
func NewTripService(
	shipments *ShipmentService,
	auth *AuthService,
	locator Locator,
	publisher events.Publisher,
	m *metrics.Collector,
) *TripService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &TripService{
		shipments: shipments,
		auth:      auth,
		locator:   locator,
		publisher: publisher,
		metrics:   m,
		now:       time.Now,
	}
}

// Login finds the driver's shipment by code, or by phone when code is
// empty, and issues a token scoped to it.
func (s *TripService) Login(ctx context.Context, code, phone string) (*DriverSession, error) {
	var (
		sh  *storage.Shipment
		err error
	)
	if strings.TrimSpace(code) != "" {
		sh, err = s.shipments.Get(ctx, code)
	} else {
		sh, err = s.shipments.FindActiveByDriverPhone(ctx, phone)
	}
	if err != nil {
		return nil, err
	}
	if sh.Status == storage.StatusDelivered {
		return nil, ErrShipmentDelivered
	}

	tok, err := s.auth.IssueDriverToken(sh.Code)
	if err != nil {
		return nil, err
	}
	return &DriverSession{Token: tok, Shipment: sh}, nil
}

// StartTrip puts the shipment in transit and turns live tracking on.
func (s *TripService) StartTrip(ctx context.Context, code string) (*storage.Shipment, error) {
	sh, err := s.mutate(ctx, code, func(sh *storage.Shipment) error {
		if sh.IsLive && sh.Status == storage.StatusInTransit {
			return ErrTripAlreadyActive
		}
		sh.Status = storage.StatusInTransit
		sh.IsLive = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.TripStartedInc()
	s.publishStatus(ctx, sh)
	return sh, nil
}

// StopTrip pauses the trip.
func (s *TripService) StopTrip(ctx context.Context, code string) (*storage.Shipment, error) {
	sh, err := s.mutate(ctx, code, func(sh *storage.Shipment) error {
		if !sh.IsLive {
			return ErrNoActiveTrip
		}
		sh.Status = storage.StatusStopped
		sh.IsLive = false
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.TripStoppedInc()
	s.publishStatus(ctx, sh)
	return sh, nil
}

// Deliver closes the shipment.
func (s *TripService) Deliver(ctx context.Context, code string) (*storage.Shipment, error) {
	sh, err := s.mutate(ctx, code, func(sh *storage.Shipment) error {
		sh.Status = storage.StatusDelivered
		sh.IsLive = false
		for i := range sh.Stops {
			sh.Stops[i].Completed = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.DeliveryInc()
	s.publishStatus(ctx, sh)
	return sh, nil
}

// Ping records a GPS position. The address labels are refreshed by reverse
// geocoding; when that fails the previous labels are kept.
func (s *TripService) Ping(ctx context.Context, code string, c geo.Coordinate) (*storage.Shipment, error) {
	if !validCoordinate(c) {
		return nil, ErrInvalidCoordinate
	}

	addr, geoErr := s.locator.Describe(ctx, c)
	if geoErr != nil {
		log.Printf("service: ping %s: reverse geocode: %v", code, geoErr)
	}

	sh, err := s.mutate(ctx, code, func(sh *storage.Shipment) error {
		if !sh.IsLive {
			return ErrNoActiveTrip
		}
		sh.CurrentLocation.Coordinates = c
		if addr != nil {
			if addr.City != "" {
				sh.CurrentLocation.City = addr.City
			}
			if addr.State != "" {
				sh.CurrentLocation.State = addr.State
			}
			sh.CurrentLocation.Address = addr.Road
		}
		for i := range sh.Stops {
			st := &sh.Stops[i]
			if !st.Completed && !st.Coordinates.IsUnknown() && geo.DistanceBetween(c, st.Coordinates) <= stopReachedKm {
				st.Completed = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PingInc()
	ev := events.PositionEvent{
		Code:      sh.Code,
		Lat:       c.Lat,
		Lng:       c.Lng,
		City:      sh.CurrentLocation.City,
		State:     sh.CurrentLocation.State,
		Address:   sh.CurrentLocation.Address,
		Progress:  geo.Progress(sh.OriginCoordinates, sh.DestinationCoordinates, c),
		Timestamp: sh.LastUpdate,
	}
	if target, ok := geo.NextTarget(sh.Stops, sh.DestinationCoordinates); ok {
		if b, ok := geo.Bearing(c, target); ok {
			ev.Bearing = &b
		}
	}
	if err := s.publisher.PublishPosition(ctx, ev); err != nil {
		log.Printf("service: publish position %s: %v", sh.Code, err)
	}
	return sh, nil
}

// mutate applies fn to code with fresh timestamps. Delivered shipments are
// immutable.
func (s *TripService) mutate(ctx context.Context, code string, fn func(*storage.Shipment) error) (*storage.Shipment, error) {
	return s.shipments.modify(ctx, code, func(sh *storage.Shipment) error {
		if sh.Status == storage.StatusDelivered {
			return ErrShipmentDelivered
		}
		if err := fn(sh); err != nil {
			return err
		}
		now := s.now().UTC()
		sh.LastUpdate = now
		sh.UpdatedAt = now
		return nil
	})
}

func (s *TripService) publishStatus(ctx context.Context, sh *storage.Shipment) {
	ev := events.StatusEvent{Code: sh.Code, Status: string(sh.Status), IsLive: sh.IsLive, Timestamp: sh.LastUpdate}
	if err := s.publisher.PublishStatus(ctx, ev); err != nil {
		log.Printf("service: publish status %s: %v", sh.Code, err)
	}
}

// validCoordinate rejects out-of-range values and the (0,0) sentinel.
func validCoordinate(c geo.Coordinate) bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180 && !c.IsUnknown()
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
