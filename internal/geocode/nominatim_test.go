package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Rodovar-GPS/GPS/internal/geo"
)

func newNominatimServer(t *testing.T, handler http.HandlerFunc) *NominatimGeocoder {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewNominatimGeocoder(srv.URL, "rodovar-test/1.0")
}

func TestNominatim_Search(t *testing.T) {
	var gotQuery, gotAgent string
	g := newNominatimServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q, want /search", r.URL.Path)
		}
		gotQuery = r.URL.Query().Get("q")
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"-23.5505","lon":"-46.6333","display_name":"São Paulo"}]`))
	})

	c, err := g.Search(context.Background(), "São Paulo, SP, Brazil")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if c != (geo.Coordinate{Lat: -23.5505, Lng: -46.6333}) {
		t.Errorf("Search = %v", c)
	}
	if gotQuery != "São Paulo, SP, Brazil" {
		t.Errorf("q = %q", gotQuery)
	}
	if gotAgent != "rodovar-test/1.0" {
		t.Errorf("User-Agent = %q", gotAgent)
	}
}

func TestNominatim_SearchNoResult(t *testing.T) {
	g := newNominatimServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	_, err := g.Search(context.Background(), "Atlantis")
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("err = %v, want ErrNoResult", err)
	}
}

func TestNominatim_SearchErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"server error", http.StatusInternalServerError, `oops`},
		{"bad json", http.StatusOK, `{not json`},
		{"bad latitude", http.StatusOK, `[{"lat":"north","lon":"1"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var outcome string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			}))
			defer srv.Close()

			g := NewNominatimGeocoder(srv.URL, "", WithObserver(func(_, o string) { outcome = o }))
			_, err := g.Search(context.Background(), "x")
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, ErrNoResult) {
				t.Errorf("err should not be ErrNoResult: %v", err)
			}
			if outcome != OutcomeError {
				t.Errorf("outcome = %q, want %q", outcome, OutcomeError)
			}
		})
	}
}

func TestNominatim_Reverse(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Address
	}{
		{
			name:    "road and city",
			payload: `{"display_name":"Avenida Paulista, Bela Vista","address":{"road":"Avenida Paulista","city":"São Paulo","state":"São Paulo"}}`,
			want:    Address{Road: "Avenida Paulista", City: "São Paulo", State: "São Paulo"},
		},
		{
			name:    "town fallback and display name road",
			payload: `{"display_name":"Rodovia BR-116, Registro","address":{"town":"Registro","state":"São Paulo"}}`,
			want:    Address{Road: "Rodovia BR-116", City: "Registro", State: "São Paulo"},
		},
		{
			name:    "village fallback",
			payload: `{"display_name":"Estrada Velha","address":{"village":"Itaoca","state":"Paraná"}}`,
			want:    Address{Road: "Estrada Velha", City: "Itaoca", State: "Paraná"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newNominatimServer(t, func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				if r.URL.Path != "/reverse" || q.Get("zoom") != "18" || q.Get("addressdetails") != "1" {
					t.Errorf("unexpected request %s", r.URL)
				}
				if q.Get("lat") != "-23.56" || q.Get("lon") != "-46.65" {
					t.Errorf("lat/lon = %s/%s", q.Get("lat"), q.Get("lon"))
				}
				_, _ = w.Write([]byte(tt.payload))
			})
			got, err := g.Reverse(context.Background(), geo.Coordinate{Lat: -23.56, Lng: -46.65})
			if err != nil {
				t.Fatalf("Reverse: %v", err)
			}
			if *got != tt.want {
				t.Errorf("Reverse = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestNominatim_ReverseUnableToGeocode(t *testing.T) {
	g := newNominatimServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
	})
	_, err := g.Reverse(context.Background(), geo.Coordinate{Lat: 10, Lng: -30})
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("err = %v, want ErrNoResult", err)
	}
}
