package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hdymonitor/internal/assert"
	"hdymonitor/internal/components/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	report_dispatcher_send    = "dispatcher.send"
	report_dispatcher_dropped = "dispatcher.dropped"
)

const DefaultTimeout = 15 * time.Second

var meter = otel.Meter("hdymonitor/notify")

type Message struct {
	Title string
	Body  string
}

// Channel is a single notification transport.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Dispatcher fans a message out to every configured channel.
type Dispatcher struct {
	channels []Channel
	timeout  time.Duration
	tel      telemetry.API
	sent     metric.Int64Counter
}

func NewDispatcher(tel telemetry.API, timeout time.Duration, channels ...Channel) *Dispatcher {
	assert.NotNil(tel)
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	sent, err := meter.Int64Counter(
		"hdymonitor.notifications",
		metric.WithDescription("Notifications attempted per channel and outcome."),
	)
	if err != nil {
		tel.ReportBroken(report_dispatcher_send, fmt.Errorf("create counter: %w", err))
	}

	return &Dispatcher{
		channels: channels,
		timeout:  timeout,
		tel:      telemetry.NewScopedAPI("notify", tel),
		sent:     sent,
	}
}

func (d *Dispatcher) Channels() []Channel {
	return d.channels
}

// Send delivers msg on every channel concurrently, each bounded by the dispatcher timeout.
// It waits for all of them and returns every failure joined together.
func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	if len(d.channels) == 0 {
		d.tel.ReportWarning(report_dispatcher_dropped, "no notification channels configured", msg.Title)
		return nil
	}

	errs := make([]error, len(d.channels))
	wg := sync.WaitGroup{}
	for i, ch := range d.channels {
		wg.Add(1)
		go func(i int, ch Channel) {
			defer wg.Done()
			errs[i] = d.sendOne(ctx, ch, msg)
		}(i, ch)
	}
	wg.Wait()

	return errors.Join(errs...)
}

func (d *Dispatcher) sendOne(ctx context.Context, ch Channel, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- ch.Send(ctx, msg)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	outcome := "ok"
	if err != nil {
		outcome = "failed"
		err = fmt.Errorf("%s: %w", ch.Name(), err)
		d.tel.ReportBroken(report_dispatcher_send, err, msg.Title)
	} else {
		d.tel.ReportDebug(report_dispatcher_send, ch.Name(), msg.Title)
	}
	if d.sent != nil {
		d.sent.Add(ctx, 1, metric.WithAttributes(
			attribute.String("channel", ch.Name()),
			attribute.String("outcome", outcome),
		))
	}
	return err
}
