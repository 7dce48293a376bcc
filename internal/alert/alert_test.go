package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	subject string
	data    []byte
	err     error
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	p.subject, p.data = subject, data
	return p.err
}

type failingNotifier struct{ err error }

func (f failingNotifier) Notify(context.Context, Alert) error { return f.err }

func TestNATSNotifierPublishesJSON(t *testing.T) {
	pub := &recordingPublisher{}
	n := &NATSNotifier{conn: pub, subject: DefaultSubject}

	at := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	require.NoError(t, n.Notify(context.Background(), Alert{
		Kind: KindConfigGap, StoreID: 4, Protein: "Picanha", Period: "2026-W10", Message: "missing cost", At: at,
	}))

	assert.Equal(t, "meat.alerts", pub.subject)
	var got Alert
	require.NoError(t, json.Unmarshal(pub.data, &got))
	assert.Equal(t, KindConfigGap, got.Kind)
	assert.Equal(t, uint(4), got.StoreID)
	assert.True(t, at.Equal(got.At))
}

func TestNATSNotifierWrapsPublishError(t *testing.T) {
	boom := errors.New("no responders")
	n := &NATSNotifier{conn: &recordingPublisher{err: boom}, subject: "x"}
	assert.ErrorIs(t, n.Notify(context.Background(), Alert{Kind: KindGateFailOpen}), boom)
}

func TestMultiDeliversToAllAndJoinsErrors(t *testing.T) {
	var buf bytes.Buffer
	logN := LogNotifier{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	boom := errors.New("down")

	err := Multi{failingNotifier{boom}, logN}.Notify(context.Background(), Alert{
		Kind: KindGateFailOpen, StoreID: 9, Message: "cycle lookup failed",
	})

	assert.ErrorIs(t, err, boom)
	assert.Contains(t, buf.String(), "operator alert")
	assert.Contains(t, buf.String(), "kind=gate_fail_open")
	assert.Contains(t, buf.String(), "store_id=9")
}
