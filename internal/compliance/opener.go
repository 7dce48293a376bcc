package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Opener creates the PENDING cycles for every store each time a window
// opens.
type Opener struct {
	gate   *Gate
	cron   *cron.Cron
	logger *slog.Logger
	now    func() time.Time
}

func NewOpener(gate *Gate, logger *slog.Logger) *Opener {
	loc := gate.schedule.Location
	return &Opener{
		gate:   gate,
		cron:   cron.New(cron.WithLocation(loc)),
		logger: logger,
		now:    time.Now,
	}
}

// Spec is the cron expression for the window opening.
func (o *Opener) Spec() string {
	open := o.gate.schedule.Open
	return fmt.Sprintf("%d %d * * %d", open.Minute, open.Hour, int(open.Weekday))
}

func (o *Opener) Start(ctx context.Context) error {
	if _, err := o.cron.AddFunc(o.Spec(), func() { o.run(ctx) }); err != nil {
		return fmt.Errorf("schedule window opener: %w", err)
	}
	o.cron.Start()
	o.logger.Info("window opener scheduled", "cron", o.Spec(), "location", o.gate.schedule.Location.String())
	return nil
}

// Stop waits for a running job to finish.
func (o *Opener) Stop() {
	<-o.cron.Stop().Done()
}

func (o *Opener) run(ctx context.Context) {
	if _, _, err := o.gate.OpenWindow(ctx, o.now()); err != nil {
		o.logger.Error("opening compliance window failed", "error", err)
	}
}
