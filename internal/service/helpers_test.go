package service

import (
	"context"
	"errors"
	"sync"

	"github.com/Rodovar-GPS/GPS/internal/events"
	"github.com/Rodovar-GPS/GPS/internal/geo"
	"github.com/Rodovar-GPS/GPS/internal/geocode"
	"github.com/Rodovar-GPS/GPS/internal/storage"
)

var (
	saoPaulo      = geo.Coordinate{Lat: -23.5505, Lng: -46.6333}
	rioDeJaneiro  = geo.Coordinate{Lat: -22.9068, Lng: -43.1729}
	beloHorizonte = geo.Coordinate{Lat: -19.9167, Lng: -43.9345}
	curitiba      = geo.Coordinate{Lat: -25.4284, Lng: -49.2733}
	taubate       = geo.Coordinate{Lat: -23.0264, Lng: -45.5553}
)

// stubLocator resolves places from a fixed table.
type stubLocator struct {
	places   map[string]geo.Coordinate
	addr     *geocode.Address
	descErr  error
	searches []string
}

func (l *stubLocator) LocateCity(_ context.Context, city, state string) geo.Coordinate {
	l.searches = append(l.searches, city+"/"+state)
	if c, ok := l.places[city]; ok {
		return c
	}
	return geocode.DefaultCoordinate
}

func (l *stubLocator) LocatePlace(_ context.Context, place, _ string) geo.Coordinate {
	l.searches = append(l.searches, place)
	return l.places[place]
}

func (l *stubLocator) Describe(_ context.Context, _ geo.Coordinate) (*geocode.Address, error) {
	if l.descErr != nil {
		return nil, l.descErr
	}
	if l.addr == nil {
		return nil, errors.New("no address")
	}
	a := *l.addr
	return &a, nil
}

func newStubLocator() *stubLocator {
	return &stubLocator{places: map[string]geo.Coordinate{
		"São Paulo - SP":      saoPaulo,
		"Rio de Janeiro - RJ": rioDeJaneiro,
		"Belo Horizonte":      beloHorizonte,
		"Curitiba":            curitiba,
		"Taubaté":             taubate,
	}}
}

// recordingPublisher keeps every event it receives.
type recordingPublisher struct {
	mu        sync.Mutex
	positions []events.PositionEvent
	statuses  []events.StatusEvent
	err       error
}

func (p *recordingPublisher) PublishPosition(_ context.Context, ev events.PositionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.positions = append(p.positions, ev)
	return p.err
}

func (p *recordingPublisher) PublishStatus(_ context.Context, ev events.StatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, ev)
	return p.err
}

func (p *recordingPublisher) Close() {}

// fixture wires every service over one in-memory store.
type fixture struct {
	store     storage.DocumentStore
	shipRepo  storage.ShipmentsRepository
	drvRepo   storage.DriversRepository
	locator   *stubLocator
	publisher *recordingPublisher
	auth      *AuthService
	shipments *ShipmentService
	drivers   *DriverService
	trips     *TripService
	tracking  *TrackingService
}

func newFixture() *fixture {
	f := &fixture{store: storage.NewMemoryStore(), locator: newStubLocator(), publisher: &recordingPublisher{}}
	f.shipRepo = storage.NewShipmentsRepository(f.store)
	f.drvRepo = storage.NewDriversRepository(f.store)
	f.auth = NewAuthService(
		storage.NewUsersRepository(f.store),
		storage.NewRefreshTokensRepository(f.store),
		"test-secret", testAccessTTL, testRefreshTTL, testDriverTTL,
	)
	f.shipments = NewShipmentService(f.shipRepo, f.drvRepo, f.locator, f.publisher)
	f.drivers = NewDriverService(f.drvRepo)
	f.trips = NewTripService(f.shipments, f.auth, f.locator, f.publisher, nil)
	f.tracking = NewTrackingService(f.shipRepo, 60, nil)
	return f
}

func (f *fixture) seedShipment(s storage.Shipment) *storage.Shipment {
	if err := f.shipRepo.UpsertShipment(context.Background(), &s); err != nil {
		panic(err)
	}
	return &s
}

func (f *fixture) seedDriver(d storage.Driver) {
	if err := f.drvRepo.UpsertDriver(context.Background(), &d); err != nil {
		panic(err)
	}
}
