package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Rodovar-GPS/GPS/internal/config"
	"github.com/Rodovar-GPS/GPS/internal/geo"
	"github.com/Rodovar-GPS/GPS/internal/geocode"
	"github.com/Rodovar-GPS/GPS/internal/metrics"
	"github.com/Rodovar-GPS/GPS/internal/service"
	"github.com/Rodovar-GPS/GPS/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	saoPaulo     = geo.Coordinate{Lat: -23.5505, Lng: -46.6333}
	rioDeJaneiro = geo.Coordinate{Lat: -22.9068, Lng: -43.1729}
)

// ---------------------------------------------------------------------------
// Test environment
// ---------------------------------------------------------------------------

type stubLocator struct{}

func (stubLocator) LocateCity(_ context.Context, city, _ string) geo.Coordinate {
	if city == "Rio de Janeiro" {
		return rioDeJaneiro
	}
	return geocode.DefaultCoordinate
}

func (stubLocator) LocatePlace(_ context.Context, place, _ string) geo.Coordinate {
	switch place {
	case "São Paulo - SP":
		return saoPaulo
	case "Rio de Janeiro - RJ":
		return rioDeJaneiro
	}
	return geo.Unknown
}

func (stubLocator) Describe(_ context.Context, _ geo.Coordinate) (*geocode.Address, error) {
	return &geocode.Address{Road: "Rodovia Presidente Dutra", City: "Jacareí", State: "SP"}, nil
}

type testEnv struct {
	router    *gin.Engine
	shipments *service.ShipmentService
	drivers   *service.DriverService
	master    string
	basic     string
	uploadDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	shipRepo := storage.NewShipmentsRepository(store)
	drvRepo := storage.NewDriversRepository(store)
	usersRepo := storage.NewUsersRepository(store)

	auth := service.NewAuthService(usersRepo, storage.NewRefreshTokensRepository(store), "handler-secret", time.Minute, time.Hour, time.Hour)
	users := service.NewUserService(usersRepo, auth)
	for _, in := range []service.UserInput{
		{Username: "admin", Role: storage.RoleMaster, Password: "pw"},
		{Username: "ops", Role: storage.RoleBasic, Password: "pw"},
	} {
		if _, err := users.Save(ctx, in); err != nil {
			t.Fatal(err)
		}
	}

	m := metrics.NewCollector()
	shipments := service.NewShipmentService(shipRepo, drvRepo, stubLocator{}, nil)
	drivers := service.NewDriverService(drvRepo)
	tracking := service.NewTrackingService(shipRepo, 60, m)
	trips := service.NewTripService(shipments, auth, stubLocator{}, nil, m)
	settings := service.NewSettingsService(storage.NewSettingsRepository(store), config.DefaultSettings())

	env := &testEnv{shipments: shipments, drivers: drivers, uploadDir: t.TempDir()}
	env.router = gin.New()
	Register(env.router, Handlers{
		Public: NewPublicHandler(tracking, settings),
		Auth:   NewAuthHandler(auth),
		Driver: NewDriverHandler(trips, shipments),
		Admin: NewAdminHandler(AdminServices{
			Shipments: shipments,
			Drivers:   drivers,
			Fleet:     service.NewFleetService(drvRepo),
			Tracking:  tracking,
			Trips:     trips,
			Users:     users,
			Settings:  settings,
			Locator:   stubLocator{},
		}),
		Upload: NewUploadHandler(env.uploadDir),
	}, auth, m)

	env.master = env.login(t, "admin")
	env.basic = env.login(t, "ops")
	return env
}

func (e *testEnv) login(t *testing.T, username string) string {
	t.Helper()
	w := e.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": username, "password": "pw"})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", username, w.Code, w.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	decode(t, w, &resp)
	return resp.AccessToken
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		raw, _ := json.Marshal(body) //nolint:errcheck // test bodies always encode
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, want, w.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Error mapping
// ---------------------------------------------------------------------------

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrShipmentNotFound, http.StatusNotFound},
		{service.ErrDriverNotFound, http.StatusNotFound},
		{service.ErrInvalidCoordinate, http.StatusBadRequest},
		{service.ErrDuplicateDriver, http.StatusConflict},
		{service.ErrNoActiveTrip, http.StatusConflict},
		{service.ErrTokenRevoked, http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := errorStatus(tt.err); got != tt.want {
				t.Errorf("errorStatus = %d, want %d", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Public
// ---------------------------------------------------------------------------

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	expectStatus(t, env.do(http.MethodGet, "/health", "", nil), http.StatusOK)

	env.do(http.MethodGet, "/api/v1/track/NOPE", "", nil)
	w := env.do(http.MethodGet, "/metrics", "", nil)
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), `rodovar_tracking_lookups_total{result="not_found"} 1`) {
		t.Errorf("metrics missing tracking lookup:\n%s", w.Body.String())
	}
}

func TestTrack(t *testing.T) {
	env := newTestEnv(t)
	expectStatus(t, env.do(http.MethodGet, "/api/v1/track/RODOVAR0000", "", nil), http.StatusNotFound)

	sh, err := env.shipments.Create(context.Background(), storage.Shipment{
		Origin: "São Paulo - SP", Destination: "Rio de Janeiro - RJ",
	})
	if err != nil {
		t.Fatal(err)
	}

	w := env.do(http.MethodGet, "/api/v1/track/"+strings.ToLower(sh.Code), "", nil)
	expectStatus(t, w, http.StatusOK)
	var v service.TrackingView
	decode(t, w, &v)
	if v.Shipment.Code != sh.Code || v.Progress != 0 || v.RemainingKm == nil || v.Bearing == nil {
		t.Errorf("view = %+v", v)
	}
}

func TestSettings(t *testing.T) {
	env := newTestEnv(t)

	var got storage.CompanySettings
	w := env.do(http.MethodGet, "/api/v1/settings", "", nil)
	expectStatus(t, w, http.StatusOK)
	decode(t, w, &got)
	if got.Name != "RODOVAR" {
		t.Errorf("Name = %q", got.Name)
	}

	expectStatus(t, env.do(http.MethodPut, "/api/v1/admin/settings", env.basic, gin.H{"name": "X"}), http.StatusForbidden)
	expectStatus(t, env.do(http.MethodPut, "/api/v1/admin/settings", env.master, gin.H{"primary_color": "gold"}), http.StatusBadRequest)

	w = env.do(http.MethodPut, "/api/v1/admin/settings", env.master, gin.H{"name": "AXD Cargo", "primary_color": "#00AAFF"})
	expectStatus(t, w, http.StatusOK)
	w = env.do(http.MethodGet, "/api/v1/settings", "", nil)
	decode(t, w, &got)
	if got.Name != "AXD Cargo" || got.PrimaryColor != "#00AAFF" || got.TextColor != "#F5F5F5" {
		t.Errorf("settings = %+v", got)
	}
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)

	expectStatus(t, env.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "admin"}), http.StatusBadRequest)
	expectStatus(t, env.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "admin", "password": "bad"}), http.StatusUnauthorized)

	w := env.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "admin", "password": "pw"})
	expectStatus(t, w, http.StatusOK)
	var pair service.TokenPair
	decode(t, w, &pair)

	w = env.do(http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refresh_token": pair.RefreshToken})
	expectStatus(t, w, http.StatusOK)
	var next service.TokenPair
	decode(t, w, &next)
	if next.RefreshToken == "" || next.RefreshToken == pair.RefreshToken {
		t.Errorf("refresh token not rotated")
	}
	expectStatus(t, env.do(http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refresh_token": pair.RefreshToken}), http.StatusUnauthorized)

	expectStatus(t, env.do(http.MethodPost, "/api/v1/auth/logout", "", gin.H{"refresh_token": next.RefreshToken}), http.StatusNoContent)
	expectStatus(t, env.do(http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refresh_token": next.RefreshToken}), http.StatusUnauthorized)
}

// ---------------------------------------------------------------------------
// Driver panel
// ---------------------------------------------------------------------------

func TestDriverFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	d, err := env.drivers.Save(ctx, storage.Driver{Name: "Ana", Phone: "(11) 98765-4321"})
	if err != nil {
		t.Fatal(err)
	}
	sh, err := env.shipments.Create(ctx, storage.Shipment{
		Origin: "São Paulo - SP", Destination: "Rio de Janeiro - RJ", DriverID: d.ID,
	})
	if err != nil {
		t.Fatal(err)
	}

	expectStatus(t, env.do(http.MethodPost, "/api/v1/driver/login", "", gin.H{}), http.StatusBadRequest)
	expectStatus(t, env.do(http.MethodPost, "/api/v1/driver/login", "", gin.H{"code": "AXD0001"}), http.StatusNotFound)

	w := env.do(http.MethodPost, "/api/v1/driver/login", "", gin.H{"phone": "11 98765 4321"})
	expectStatus(t, w, http.StatusOK)
	var sess service.DriverSession
	decode(t, w, &sess)
	if sess.Shipment.Code != sh.Code || sess.Shipment.DriverName != "Ana" {
		t.Fatalf("session shipment = %+v", sess.Shipment)
	}
	tok := sess.Token

	expectStatus(t, env.do(http.MethodGet, "/api/v1/driver/shipment", "", nil), http.StatusUnauthorized)
	expectStatus(t, env.do(http.MethodGet, "/api/v1/driver/shipment", env.master, nil), http.StatusForbidden)
	expectStatus(t, env.do(http.MethodGet, "/api/v1/driver/shipment", tok, nil), http.StatusOK)

	expectStatus(t, env.do(http.MethodPost, "/api/v1/driver/position", tok, gin.H{"lat": -23.3, "lng": -45.9}), http.StatusConflict)
	expectStatus(t, env.do(http.MethodPost, "/api/v1/driver/trip/start", tok, nil), http.StatusOK)
	expectStatus(t, env.do(http.MethodPost, "/api/v1/driver/trip/start", tok, nil), http.StatusConflict)
	expectStatus(t, env.do(http.MethodPost, "/api/v1/driver/position", tok, gin.H{"lat": -23.3}), http.StatusBadRequest)
	expectStatus(t, env.do(http.MethodPost, "/api/v1/driver/position", tok, gin.H{"lat": 0, "lng": 0}), http.StatusBadRequest)

	w = env.do(http.MethodPost, "/api/v1/driver/position", tok, gin.H{"lat": -23.3, "lng": -45.9})
	expectStatus(t, w, http.StatusOK)
	var moved storage.Shipment
	decode(t, w, &moved)
	if moved.CurrentLocation.City != "Jacareí" || moved.CurrentLocation.Coordinates.Lat != -23.3 {
		t.Errorf("current location = %+v", moved.CurrentLocation)
	}

	w = env.do(http.MethodPost, "/api/v1/driver/trip/stop", tok, nil)
	expectStatus(t, w, http.StatusOK)
	var stopped storage.Shipment
	decode(t, w, &stopped)
	if stopped.Status != storage.StatusStopped || stopped.IsLive {
		t.Errorf("after stop = %s live=%v", stopped.Status, stopped.IsLive)
	}
}

// ---------------------------------------------------------------------------
// Admin
// ---------------------------------------------------------------------------

func TestAdminShipments(t *testing.T) {
	env := newTestEnv(t)

	expectStatus(t, env.do(http.MethodGet, "/api/v1/admin/shipments", "", nil), http.StatusUnauthorized)

	w := env.do(http.MethodGet, "/api/v1/admin/shipments/code?company=axd", env.basic, nil)
	expectStatus(t, w, http.StatusOK)
	var code struct {
		Code string `json:"code"`
	}
	decode(t, w, &code)
	if !strings.HasPrefix(code.Code, "AXD") || len(code.Code) != 7 {
		t.Errorf("code = %q", code.Code)
	}

	body := gin.H{
		"code":        code.Code,
		"company":     "AXD",
		"origin":      "São Paulo - SP",
		"destination": "Rio de Janeiro - RJ",
		"stops":       []gin.H{{"city": "Rio de Janeiro", "state": "RJ"}},
	}
	w = env.do(http.MethodPost, "/api/v1/admin/shipments", env.basic, body)
	expectStatus(t, w, http.StatusCreated)
	var created storage.Shipment
	decode(t, w, &created)
	if created.Status != storage.StatusPending || created.OriginCoordinates != saoPaulo || len(created.Stops) != 1 || created.Stops[0].ID == "" {
		t.Errorf("created = %+v", created)
	}

	expectStatus(t, env.do(http.MethodPost, "/api/v1/admin/shipments", env.basic, body), http.StatusConflict)
	expectStatus(t, env.do(http.MethodPost, "/api/v1/admin/shipments", env.basic, gin.H{"origin": "x"}), http.StatusBadRequest)

	path := "/api/v1/admin/shipments/" + created.Code
	expectStatus(t, env.do(http.MethodGet, path, env.basic, nil), http.StatusOK)

	body["status"] = "DELAYED"
	body["message"] = "Chuva forte na Dutra"
	w = env.do(http.MethodPut, path, env.basic, body)
	expectStatus(t, w, http.StatusOK)

	var list []storage.Shipment
	decode(t, env.do(http.MethodGet, "/api/v1/admin/shipments?status=delayed", env.basic, nil), &list)
	if len(list) != 1 || list[0].Message != "Chuva forte na Dutra" {
		t.Errorf("filtered list = %+v", list)
	}
	decode(t, env.do(http.MethodGet, "/api/v1/admin/shipments?status=PENDING", env.basic, nil), &list)
	if len(list) != 0 {
		t.Errorf("PENDING list = %+v", list)
	}

	expectStatus(t, env.do(http.MethodPost, path+"/optimize", env.basic, nil), http.StatusOK)
	expectStatus(t, env.do(http.MethodPost, path+"/deliver", env.basic, nil), http.StatusOK)
	expectStatus(t, env.do(http.MethodPost, path+"/deliver", env.basic, nil), http.StatusConflict)

	expectStatus(t, env.do(http.MethodDelete, path, env.basic, nil), http.StatusNoContent)
	expectStatus(t, env.do(http.MethodGet, path, env.basic, nil), http.StatusNotFound)
}

func TestAdminDrivers(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/admin/drivers", env.basic, gin.H{"name": "Ana", "current_mileage": 9800, "next_maintenance_mileage": 10000})
	expectStatus(t, w, http.StatusCreated)
	var d storage.Driver
	decode(t, w, &d)
	if d.ID == "" {
		t.Fatal("driver ID not assigned")
	}

	expectStatus(t, env.do(http.MethodPost, "/api/v1/admin/drivers", env.basic, gin.H{"name": "ana"}), http.StatusConflict)
	expectStatus(t, env.do(http.MethodPut, "/api/v1/admin/drivers/ghost", env.basic, gin.H{"name": "Ghost"}), http.StatusNotFound)

	w = env.do(http.MethodPut, "/api/v1/admin/drivers/"+d.ID, env.basic, gin.H{"name": "Ana", "vehicle_plate": "ABC1D23", "current_mileage": 10100, "next_maintenance_mileage": 10000})
	expectStatus(t, w, http.StatusOK)

	var alerts []service.MaintenanceAlert
	decode(t, env.do(http.MethodGet, "/api/v1/admin/fleet/maintenance", env.basic, nil), &alerts)
	if len(alerts) != 1 || alerts[0].Severity != service.SeverityUrgent || alerts[0].VehiclePlate != "ABC1D23" {
		t.Errorf("alerts = %+v", alerts)
	}

	var live []service.TrackingView
	decode(t, env.do(http.MethodGet, "/api/v1/admin/fleet/live", env.basic, nil), &live)
	if len(live) != 0 {
		t.Errorf("live = %+v", live)
	}

	expectStatus(t, env.do(http.MethodDelete, "/api/v1/admin/drivers/"+d.ID, env.basic, nil), http.StatusNoContent)
	expectStatus(t, env.do(http.MethodGet, "/api/v1/admin/drivers/"+d.ID, env.basic, nil), http.StatusNotFound)
}

func TestAdminGeoTools(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/admin/geo/route", env.basic, gin.H{
		"origin": saoPaulo,
		"stops": []gin.H{
			{"id": "rj", "coordinates": rioDeJaneiro},
			{"id": "tb", "coordinates": gin.H{"lat": -23.0264, "lng": -45.5553}},
		},
	})
	expectStatus(t, w, http.StatusOK)
	var stops []geo.RouteStop
	decode(t, w, &stops)
	if len(stops) != 2 || stops[0].ID != "tb" || stops[0].Order != 1 || stops[1].ID != "rj" {
		t.Errorf("stops = %+v", stops)
	}
	expectStatus(t, env.do(http.MethodPost, "/api/v1/admin/geo/route", env.basic, gin.H{"stops": []gin.H{}}), http.StatusBadRequest)

	var c geo.Coordinate
	decode(t, env.do(http.MethodGet, "/api/v1/admin/geo/locate?city=Rio+de+Janeiro&state=RJ", env.basic, nil), &c)
	if c != rioDeJaneiro {
		t.Errorf("locate = %v", c)
	}
	decode(t, env.do(http.MethodGet, "/api/v1/admin/geo/locate?city=Atlantida", env.basic, nil), &c)
	if c != geocode.DefaultCoordinate {
		t.Errorf("fallback = %v", c)
	}
	expectStatus(t, env.do(http.MethodGet, "/api/v1/admin/geo/locate", env.basic, nil), http.StatusBadRequest)
}

func TestAdminUsers(t *testing.T) {
	env := newTestEnv(t)

	expectStatus(t, env.do(http.MethodGet, "/api/v1/admin/users", env.basic, nil), http.StatusForbidden)

	var users []service.UserView
	w := env.do(http.MethodGet, "/api/v1/admin/users", env.master, nil)
	expectStatus(t, w, http.StatusOK)
	decode(t, w, &users)
	if len(users) != 2 {
		t.Fatalf("users = %+v", users)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Error("user list leaks password hashes")
	}

	expectStatus(t, env.do(http.MethodPost, "/api/v1/admin/users", env.master, gin.H{"username": "new", "role": "ROOT", "password": "x"}), http.StatusBadRequest)
	expectStatus(t, env.do(http.MethodPost, "/api/v1/admin/users", env.master, gin.H{"username": "new", "role": "BASIC"}), http.StatusBadRequest)
	expectStatus(t, env.do(http.MethodPost, "/api/v1/admin/users", env.master, gin.H{"username": "new", "role": "BASIC", "password": "x"}), http.StatusOK)

	expectStatus(t, env.do(http.MethodDelete, "/api/v1/admin/users/admin", env.master, nil), http.StatusConflict)
	expectStatus(t, env.do(http.MethodDelete, "/api/v1/admin/users/ghost", env.master, nil), http.StatusNotFound)
	expectStatus(t, env.do(http.MethodDelete, "/api/v1/admin/users/ops", env.master, nil), http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Uploads
// ---------------------------------------------------------------------------

func multipartBody(t *testing.T, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "logo.bin")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) upload(t *testing.T, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ctype := multipartBody(t, content)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/uploads/images", body)
	req.Header.Set("Content-Type", ctype)
	req.Header.Set("Authorization", "Bearer "+e.basic)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestUploads(t *testing.T) {
	env := newTestEnv(t)
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

	w := env.upload(t, png)
	expectStatus(t, w, http.StatusCreated)
	var resp struct {
		Filename string `json:"filename"`
		URL      string `json:"url"`
	}
	decode(t, w, &resp)
	if !strings.HasSuffix(resp.Filename, ".png") || resp.URL != "/api/v1/uploads/images/"+resp.Filename {
		t.Errorf("resp = %+v", resp)
	}

	w = env.do(http.MethodGet, resp.URL, "", nil)
	expectStatus(t, w, http.StatusOK)
	if !bytes.Equal(w.Body.Bytes(), png) {
		t.Error("served file differs from upload")
	}

	expectStatus(t, env.upload(t, []byte("just some text")), http.StatusBadRequest)
	expectStatus(t, env.upload(t, append(png, make([]byte, maxUploadSize)...)), http.StatusRequestEntityTooLarge)
	expectStatus(t, env.do(http.MethodGet, "/api/v1/uploads/images/missing.png", "", nil), http.StatusNotFound)
	expectStatus(t, env.do(http.MethodGet, "/api/v1/uploads/images/a..png", "", nil), http.StatusBadRequest)
}
