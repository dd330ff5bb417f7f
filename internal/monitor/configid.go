package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"hdymonitor/internal/assert"
	"hdymonitor/internal/components/chrono"
	"hdymonitor/internal/components/telemetry"
	"hdymonitor/internal/frontier"
	"hdymonitor/internal/notify"
	"hdymonitor/internal/scrapers/hdy"
	"hdymonitor/internal/snapshot"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const (
	report_config_check      = "config.check"
	report_config_initialize = "config.initialize"
)

// ConfigProber checks a single configuration id.
type ConfigProber interface {
	ProbeConfig(ctx context.Context, id int) (hdy.ConfigDetails, bool, error)
	ConfigURL(id int) string
}

type ConfigOptions struct {
	Enabled   bool
	StartID   int
	ScanLimit int
}

// ConfigMonitor follows the highest configuration id that has content and announces every
// new one.
type ConfigMonitor struct {
	prober   ConfigProber
	notifier Notifier
	store    snapshot.Store[frontier.Record]
	scanner  frontier.Scanner
	clock    chrono.TimeAPI
	opts     ConfigOptions
	tel      telemetry.API

	mu    sync.Mutex
	state frontier.State
	// details of the last id that probed positive, so an advance does not fetch twice
	details   hdy.ConfigDetails
	detailsID int

	lastID atomic.Int64
}

func NewConfigMonitor(
	prober ConfigProber,
	notifier Notifier,
	store snapshot.Store[frontier.Record],
	opts ConfigOptions,
	clock chrono.TimeAPI,
	tel telemetry.API,
) *ConfigMonitor {
	assert.NotNil(prober)
	assert.NotNil(notifier)
	assert.NotNil(clock)
	assert.NotNil(tel)

	m := &ConfigMonitor{
		prober:   prober,
		notifier: notifier,
		store:    store,
		clock:    clock,
		opts:     opts,
		tel:      telemetry.NewScopedAPI("monitor", tel),
	}
	m.scanner = frontier.NewScanner(m.probe, frontier.Options{
		StartID:   opts.StartID,
		ScanLimit: opts.ScanLimit,
	}, tel)

	_, err := meter.Int64ObservableGauge(
		"hdymonitor.frontier_last_id",
		metric.WithDescription("Highest configuration id known to have content."),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			if id := m.lastID.Load(); id > 0 {
				o.Observe(id)
			}
			return nil
		}),
	)
	if err != nil {
		m.tel.ReportBroken(report_config_check, fmt.Errorf("create gauge: %w", err))
	}
	return m
}

func (m *ConfigMonitor) Store() snapshot.Store[frontier.Record] {
	return m.store
}

// State returns the in-memory frontier, it blocks while a check is running.
func (m *ConfigMonitor) State() frontier.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *ConfigMonitor) probe(ctx context.Context, id int) (bool, error) {
	details, ok, err := m.prober.ProbeConfig(ctx, id)
	if err != nil {
		return false, err
	}
	if ok {
		m.details = details
		m.detailsID = id
	}
	return ok, nil
}

func (m *ConfigMonitor) setState(state frontier.State) {
	m.state = state
	if state.Phase == frontier.Steady {
		m.lastID.Store(int64(state.LastID))
	}
}

func (m *ConfigMonitor) save(id int) error {
	return m.store.Save(frontier.Record{
		LastID:    id,
		UpdatedAt: m.clock.Now(),
	})
}

func (m *ConfigMonitor) Check(ctx context.Context) Result {
	if !m.opts.Enabled {
		return succeeded(http.StatusNoContent, "config id monitor disabled")
	}

	ctx, span := tracer.Start(ctx, "ConfigMonitor:Check")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	if ctx.Err() != nil {
		return cancelled()
	}

	if m.state.Phase != frontier.Steady {
		res, ok := m.initialize(ctx)
		if !ok {
			span.SetStatus(codes.Error, res.Message)
			return res
		}
	}

	next, advanced, err := m.scanner.Advance(ctx, m.state)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "probe failed")
		m.tel.ReportWarning(report_config_check, err)
		return fromError(ctx, "config id monitor error", err)
	}
	span.SetAttributes(attribute.Int("last_id", next.LastID))
	if !advanced {
		return succeeded(http.StatusOK, "no new config. Last ID=%d", m.state.LastID)
	}

	id := next.LastID
	var details hdy.ConfigDetails
	if m.detailsID == id {
		details = m.details
	}
	// delivery failures are reported by the notifier and never fail the cycle
	_ = m.notifier.Send(ctx, configMessage(id, m.prober.ConfigURL(id), details))

	err = m.save(id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		m.tel.ReportBroken(report_config_check, fmt.Errorf("save frontier: %w", err))
		return failed(http.StatusInternalServerError, "save config id: %v", err)
	}
	m.setState(next)
	return succeeded(http.StatusOK, "new config detected. ID=%d", id)
}

// initialize establishes the frontier from the persisted record, scanning backwards when
// there is none. ok is false when the check should stop with res.
func (m *ConfigMonitor) initialize(ctx context.Context) (res Result, ok bool) {
	record, found := m.store.Load()
	if found && record.LastID <= 0 {
		found = false
	}

	state := m.scanner.Resume(record.LastID, found)
	state, err := m.scanner.Initialize(ctx, state)
	if errors.Is(err, frontier.ErrNotFound) {
		m.setState(frontier.State{})
		m.tel.ReportWarning(report_config_initialize, err, m.opts.StartID, m.scanner.Options().ScanLimit)
		return failed(
			http.StatusNotFound,
			"unable to locate a valid config id from %d (scan limit %d)",
			m.opts.StartID, m.scanner.Options().ScanLimit,
		), false
	}
	if err != nil {
		m.tel.ReportWarning(report_config_initialize, err)
		return fromError(ctx, "config id monitor error", err), false
	}

	if !found || record.LastID != state.LastID {
		err = m.save(state.LastID)
		if err != nil {
			m.tel.ReportBroken(report_config_initialize, fmt.Errorf("save frontier: %w", err))
			return failed(http.StatusInternalServerError, "save config id: %v", err), false
		}
	}
	m.setState(state)
	m.tel.ReportDebug(report_config_initialize, "frontier established", state.LastID)
	return Result{}, true
}

func configMessage(id int, url string, details hdy.ConfigDetails) notify.Message {
	title := fmt.Sprintf("新配置上线 ID=%d", id)
	if details.Name != "" {
		title += " " + details.Name
	}

	lines := []string{fmt.Sprintf("ID: %d", id)}
	lines = append(lines, details.Lines()...)
	lines = append(lines, url)
	return notify.Message{
		Title: title,
		Body:  strings.Join(lines, "\n"),
	}
}
