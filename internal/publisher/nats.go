package publisher

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"bus-simulator/internal/bus"
	"bus-simulator/internal/hud"
)

type NATSPublisher struct {
	nc          *nats.Conn
	prefix      string
	logSubjects bool
	metrics     PublisherMetrics
	subs        []*nats.Subscription
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

// NewNATSPublisher connects to url; every subject it uses starts with prefix.
func NewNATSPublisher(url, prefix, name string, logSubjects bool, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logSubjects: logSubjects, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	for _, s := range p.subs {
		_ = s.Unsubscribe()
	}
	p.subs = nil
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// StateMessage is the periodic snapshot of the whole bus.
type StateMessage struct {
	RunID     string      `json:"runId"`
	Timestamp time.Time   `json:"timestamp"`
	SimTime   float64     `json:"simTime"`
	State     bus.State   `json:"state"`
	Seated    []bus.Actor `json:"seated"`
	Moving    *bus.Actor  `json:"moving,omitempty"`
	HUD       hud.View    `json:"hud"`
}

// EventMessage wraps a single simulation event.
type EventMessage struct {
	RunID     string    `json:"runId"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Event     bus.Event `json:"event"`
}

func (p *NATSPublisher) PublishState(msg StateMessage) error {
	return p.publish(StateSubject(p.prefix), msg)
}

func (p *NATSPublisher) PublishEvent(runID string, ev bus.Event) error {
	msg := EventMessage{RunID: runID, Kind: ev.Kind(), Timestamp: time.Now().UTC(), Event: ev}
	return p.publish(EventSubject(p.prefix, ev.Kind()), msg)
}

func (p *NATSPublisher) publish(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if p.logSubjects {
		log.Printf("nats publish subject=%s", subject)
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

func StateSubject(prefix string) string { return prefix + ".state" }

func EventSubject(prefix, kind string) string {
	return prefix + ".events." + subjectToken(kind)
}

func IntentSubject(prefix, intent string) string {
	return prefix + ".intent." + subjectToken(intent)
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
