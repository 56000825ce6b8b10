package service

import (
	"context"
	"fmt"
	"math"

	"github.com/Rodovar-GPS/GPS/internal/geo"
	"github.com/Rodovar-GPS/GPS/internal/metrics"
	"github.com/Rodovar-GPS/GPS/internal/storage"
)

// TrackingView is what an end user sees for a tracking code.
type TrackingView struct {
	Shipment    *storage.Shipment `json:"shipment"`
	Progress    int               `json:"progress"`
	RemainingKm *int              `json:"remaining_km"`
	// Bearing is nil when the truck is already at its next target.
	Bearing    *float64        `json:"bearing"`
	NextTarget *geo.Coordinate `json:"next_target,omitempty"`
	ETAMinutes *int            `json:"eta_minutes"`
}

// TrackingService builds tracking views.
type TrackingService struct {
	shipments storage.ShipmentsRepository
	speedKmh  float64
	metrics   *metrics.Collector
}

// NewTrackingService creates a TrackingService estimating arrival at
// speedKmh. m may be nil.
func NewTrackingService(shipments storage.ShipmentsRepository, speedKmh float64, m *metrics.Collector) *TrackingService {
	return &TrackingService{shipments: shipments, speedKmh: speedKmh, metrics: m}
}

// Track returns the view for code, or ErrShipmentNotFound.
func (s *TrackingService) Track(ctx context.Context, code string) (*TrackingView, error) {
	sh, err := s.shipments.GetShipment(ctx, normalizeCode(code))
	if err != nil {
		return nil, fmt.Errorf("service: Track: %w", err)
	}
	s.metrics.TrackingLookup(sh != nil)
	if sh == nil {
		return nil, ErrShipmentNotFound
	}
	v := s.view(sh)
	return &v, nil
}

// LiveFleet returns views of every shipment not yet delivered.
func (s *TrackingService) LiveFleet(ctx context.Context) ([]TrackingView, error) {
	list, err := s.shipments.ListShipments(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: LiveFleet: %w", err)
	}
	out := make([]TrackingView, 0, len(list))
	for i := range list {
		if list[i].Status == storage.StatusDelivered {
			continue
		}
		out = append(out, s.view(&list[i]))
	}
	return out, nil
}

func (s *TrackingService) view(sh *storage.Shipment) TrackingView {
	current := sh.CurrentLocation.Coordinates
	v := TrackingView{
		Shipment: sh,
		Progress: geo.Progress(sh.OriginCoordinates, sh.DestinationCoordinates, current),
	}
	if sh.Status == storage.StatusDelivered {
		v.Progress = 100
		zero := 0
		v.RemainingKm = &zero
		return v
	}

	if km, ok := geo.RemainingKm(current, sh.DestinationCoordinates); ok {
		v.RemainingKm = &km
		if s.speedKmh > 0 {
			eta := int(math.Round(geo.DistanceBetween(current, sh.DestinationCoordinates) / s.speedKmh * 60))
			v.ETAMinutes = &eta
		}
	}

	if current.IsUnknown() {
		return v
	}
	if target, ok := geo.NextTarget(sh.Stops, sh.DestinationCoordinates); ok {
		v.NextTarget = &target
		if b, ok := geo.Bearing(current, target); ok {
			v.Bearing = &b
		}
	}
	return v
}
