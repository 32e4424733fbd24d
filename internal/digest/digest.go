// Package digest sends the owner a scheduled agenda of the day's appointments.
package digest

import (
	"context"
	"fmt"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/models"
	"salonbook/internal/notify"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSchedule is 08:00 every day in the configured zone.
const DefaultSchedule = "0 8 * * *"

type Lister interface {
	List(ctx context.Context, date string) ([]models.Appointment, error)
}

type Digest struct {
	lister   Lister
	notifier domain.Notifier
	to       string
	loc      *time.Location
	timeout  time.Duration
	now      func() time.Time
	logger   *zerolog.Logger
}

func New(lister Lister, notifier domain.Notifier, to string, loc *time.Location, logger *zerolog.Logger) *Digest {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Digest{
		lister:   lister,
		notifier: notifier,
		to:       to,
		loc:      loc,
		timeout:  time.Minute,
		now:      time.Now,
		logger:   logger,
	}
}

// Run sends today's agenda once.
func (d *Digest) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	date := d.now().In(d.loc).Format(models.DateLayout)
	appts, err := d.lister.List(ctx, date)
	if err != nil {
		return fmt.Errorf("digest: list %s: %w", date, err)
	}

	if err := d.notifier.Send(ctx, notify.DigestMessage(d.to, date, appts)); err != nil {
		return fmt.Errorf("digest: send: %w", err)
	}

	d.logger.Info().Str("date", date).Int("appointments", len(appts)).Msg("Daily digest sent")
	return nil
}

// Start schedules Run with a standard 5-field cron spec evaluated in the
// digest's zone. The scheduler stops when ctx is done.
func (d *Digest) Start(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(d.loc))
	_, err := c.AddFunc(spec, func() {
		if err := d.Run(ctx); err != nil {
			d.logger.Error().Err(err).Msg("Daily digest failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("digest: invalid schedule %q: %w", spec, err)
	}

	c.Start()
	d.logger.Info().Str("schedule", spec).Str("timezone", d.loc.String()).Msg("Daily digest scheduled")

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return c, nil
}
