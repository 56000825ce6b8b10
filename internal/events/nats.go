package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	kindPosition = "position"
	kindStatus   = "status"
)

// PublisherMetrics receives publish and connection telemetry.
type PublisherMetrics interface {
	EventPublishedInc(kind string)
	EventPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

// natsConn is the subset of *nats.Conn used for publishing.
type natsConn interface {
	Publish(subject string, data []byte) error
	Drain() error
	Close()
}

// NATSPublisher publishes JSON events under <prefix>.positions.<code> and
// <prefix>.status.<code>.
type NATSPublisher struct {
	nc      natsConn
	prefix  string
	metrics PublisherMetrics
}

// NewNATSPublisher connects to url. m may be nil.
func NewNATSPublisher(url, prefix string, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("rodovar-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("events: nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("events: nats reconnected to %s", c.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("events: nats closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("events: nats connect: %w", err)
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return newNATSPublisher(nc, prefix, m), nil
}

func newNATSPublisher(nc natsConn, prefix string, m PublisherMetrics) *NATSPublisher {
	prefix = subjectToken(prefix)
	return &NATSPublisher{nc: nc, prefix: prefix, metrics: m}
}

func (p *NATSPublisher) PublishPosition(_ context.Context, ev PositionEvent) error {
	return p.publish(kindPosition, p.prefix+".positions."+subjectToken(ev.Code), ev)
}

func (p *NATSPublisher) PublishStatus(_ context.Context, ev StatusEvent) error {
	return p.publish(kindStatus, p.prefix+".status."+subjectToken(ev.Code), ev)
}

func (p *NATSPublisher) publish(kind, subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", kind, err)
	}

	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.EventPublishErrInc()
		} else {
			p.metrics.EventPublishedInc(kind)
		}
	}
	if err != nil {
		return fmt.Errorf("events: publish %s: %w", subject, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		log.Printf("events: nats drain: %v", err)
	}
	p.nc.Close()
}

// subjectToken makes s safe to use as a single NATS subject token.
func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
