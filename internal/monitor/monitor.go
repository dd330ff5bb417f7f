// Package monitor runs the two checks that make up a polling cycle: the promotion page
// snapshot and the configuration id frontier.
package monitor

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"hdymonitor/internal/assert"
	"hdymonitor/internal/components/telemetry"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("hdymonitor/monitor")
	meter  = otel.Meter("hdymonitor/monitor")
)

const report_monitor_run = "monitor.run"

// Checker is a single signal that can be checked once per cycle.
type Checker interface {
	Check(ctx context.Context) Result
}

type Monitor struct {
	products Checker
	configID Checker
	tel      telemetry.API
	cycles   metric.Int64Counter
}

func New(products, configID Checker, tel telemetry.API) *Monitor {
	assert.NotNil(products)
	assert.NotNil(configID)
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("monitor", tel)
	cycles, err := meter.Int64Counter(
		"hdymonitor.cycles",
		metric.WithDescription("Checks run per signal and resulting status code."),
	)
	if err != nil {
		tel.ReportBroken(report_monitor_run, fmt.Errorf("create counter: %w", err))
	}

	return &Monitor{
		products: products,
		configID: configID,
		tel:      tel,
		cycles:   cycles,
	}
}

func newRunID() string {
	id, err := random.String(8)
	if err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return id
}

// RunOnce checks both signals concurrently and waits for both. The checks use separate
// state files so they never contend with each other.
func (m *Monitor) RunOnce(ctx context.Context) Report {
	report := Report{RunID: newRunID()}

	ctx, span := tracer.Start(ctx, "Monitor:RunOnce")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", report.RunID))

	m.tel.ReportDebug(report_monitor_run, "cycle started", report.RunID)
	start := time.Now()

	wg := sync.WaitGroup{}
	wg.Add(2)
	go func() {
		defer wg.Done()
		report.Products = m.check(ctx, "products", m.products)
	}()
	go func() {
		defer wg.Done()
		report.ConfigID = m.check(ctx, "config_id", m.configID)
	}()
	wg.Wait()

	m.tel.ReportDebug(
		report_monitor_run,
		"cycle finished",
		report.RunID,
		time.Since(start).String(),
		report.Products.String(),
		report.ConfigID.String(),
	)
	return report
}

func (m *Monitor) check(ctx context.Context, signal string, checker Checker) Result {
	var res Result
	if ctx.Err() != nil {
		res = cancelled()
	} else {
		res = checker.Check(ctx)
	}

	if !res.Success {
		m.tel.ReportWarning(report_monitor_run, signal, res.StatusCode, res.Message)
	}
	if m.cycles != nil {
		m.cycles.Add(ctx, 1, metric.WithAttributes(
			attribute.String("signal", signal),
			attribute.Int("status", res.StatusCode),
		))
	}
	return res
}
