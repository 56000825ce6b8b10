// Package events publishes live position and status changes so that other
// systems can follow shipments without polling the API.
package events

import (
	"context"
	"time"
)

// PositionEvent is published on every accepted GPS ping.
type PositionEvent struct {
	Code      string    `json:"code"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	City      string    `json:"city,omitempty"`
	State     string    `json:"state,omitempty"`
	Address   string    `json:"address,omitempty"`
	Progress  int       `json:"progress"`
	Bearing   *float64  `json:"bearing,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusEvent is published whenever a shipment changes status.
type StatusEvent struct {
	Code      string    `json:"code"`
	Status    string    `json:"status"`
	IsLive    bool      `json:"is_live"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishPosition(ctx context.Context, ev PositionEvent) error
	PublishStatus(ctx context.Context, ev StatusEvent) error
	Close()
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) PublishPosition(context.Context, PositionEvent) error { return nil }
func (NopPublisher) PublishStatus(context.Context, StatusEvent) error     { return nil }
func (NopPublisher) Close()                                               {}
