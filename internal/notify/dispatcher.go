// Package notify fans booking events out to studio admins. Every channel
// runs independently; one failing channel never stops the others and never
// fails the booking.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/studio-booking-platform/internal/domain"
	"github.com/wolfman30/studio-booking-platform/internal/observability/metrics"
	"github.com/wolfman30/studio-booking-platform/pkg/logging"
)

var notifyTracer = otel.Tracer("studio.internal.notify")

// DefaultTimeout bounds one background fan-out.
const DefaultTimeout = 15 * time.Second

// BookingEvent is emitted once per persisted booking.
type BookingEvent struct {
	Booking    *domain.Booking
	SessionID  string
	Source     string
	OccurredAt time.Time
}

// Channel is one notification target.
type Channel interface {
	Name() string
	Send(ctx context.Context, evt BookingEvent) error
}

// Result is the outcome of one channel.
type Result struct {
	Channel  string
	Err      error
	Duration time.Duration
}

// Dispatcher runs every channel concurrently.
type Dispatcher struct {
	channels []Channel
	timeout  time.Duration
	logger   *logging.Logger
	metrics  *metrics.BookingMetrics
	wg       sync.WaitGroup
}

// NewDispatcher builds a dispatcher over channels. Nil channels are skipped.
func NewDispatcher(logger *logging.Logger, m *metrics.BookingMetrics, timeout time.Duration, channels ...Channel) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	d := &Dispatcher{timeout: timeout, logger: logger, metrics: m}
	for _, ch := range channels {
		if ch != nil {
			d.channels = append(d.channels, ch)
		}
	}
	return d
}

// Channels lists the configured channel names.
func (d *Dispatcher) Channels() []string {
	names := make([]string, len(d.channels))
	for i, ch := range d.channels {
		names[i] = ch.Name()
	}
	return names
}

// Notify runs all channels and waits for every one of them. Failures and
// panics are logged and reported per channel; Notify itself never fails.
func (d *Dispatcher) Notify(ctx context.Context, evt BookingEvent) []Result {
	ctx, span := notifyTracer.Start(ctx, "notify.booking")
	defer span.End()
	if evt.Booking != nil {
		span.SetAttributes(attribute.String("studio.booking_id", evt.Booking.ID))
	}

	results := make([]Result, len(d.channels))
	// Tasks always return nil so the group never cancels siblings.
	var g errgroup.Group
	for i, ch := range d.channels {
		g.Go(func() error {
			results[i] = d.run(ctx, ch, evt)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		d.metrics.ObserveNotification(r.Channel, r.Err == nil)
		if r.Err != nil {
			span.RecordError(r.Err)
		}
	}
	return results
}

func (d *Dispatcher) run(ctx context.Context, ch Channel, evt BookingEvent) (res Result) {
	start := time.Now()
	res.Channel = ch.Name()
	log := d.logger.With("channel", res.Channel, "booking_id", bookingID(evt), "session_id", evt.SessionID)
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("notify: channel %s panicked: %v", res.Channel, r)
		}
		res.Duration = time.Since(start)
		if res.Err != nil {
			log.Error("notification failed", "error", res.Err)
		} else {
			log.Debug("notification delivered", "duration_ms", res.Duration.Milliseconds())
		}
	}()
	res.Err = ch.Send(ctx, evt)
	return res
}

// Dispatch runs Notify in the background, detached from the caller's
// cancellation but bounded by the dispatcher timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, evt BookingEvent) {
	if len(d.channels) == 0 {
		return
	}
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		d.Notify(bg, evt)
	}()
}

// Wait blocks until background dispatches finish or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func bookingID(evt BookingEvent) string {
	if evt.Booking == nil {
		return ""
	}
	return evt.Booking.ID
}
