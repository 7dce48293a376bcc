package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is where operator alerts are published on NATS.
const DefaultSubject = "meat.alerts"

type Kind string

const (
	KindConfigGap      Kind = "config_gap"
	KindGateFailOpen   Kind = "gate_fail_open"
	KindReferenceError Kind = "reference_reload_failed"
)

// Alert is an operator-facing event. Config gaps and gate faults end up
// here rather than being defaulted away.
type Alert struct {
	Kind    Kind      `json:"kind"`
	StoreID uint      `json:"store_id,omitempty"`
	Protein string    `json:"protein,omitempty"`
	Period  string    `json:"period,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// LogNotifier writes alerts to the structured log at warn level.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, a Alert) error {
	n.Logger.WarnContext(ctx, "operator alert",
		"kind", a.Kind,
		"store_id", a.StoreID,
		"protein", a.Protein,
		"period", a.Period,
		"message", a.Message)
	return nil
}

// publisher is the part of *nats.Conn the notifier needs.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes alerts as JSON on a subject.
type NATSNotifier struct {
	conn    publisher
	subject string
	close   func()
}

func NewNATSNotifier(url, subject string) (*NATSNotifier, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	nc, err := nats.Connect(url,
		nats.Name("meatengine"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &NATSNotifier{conn: nc, subject: subject, close: nc.Close}, nil
}

func (n *NATSNotifier) Notify(_ context.Context, a Alert) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish alert to %s: %w", n.subject, err)
	}
	return nil
}

func (n *NATSNotifier) Close() {
	if n.close != nil {
		n.close()
	}
}

// Multi fans an alert out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, a Alert) error {
	if a.At.IsZero() {
		a.At = time.Now()
	}
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
