package monitor

import (
	"context"
	"path/filepath"
	"testing"

	"hdymonitor/internal/components/chrono"
	"hdymonitor/internal/components/telemetry"
	"hdymonitor/internal/frontier"
	"hdymonitor/internal/scrapers/hdy"
	"hdymonitor/internal/snapshot"

	"github.com/stretchr/testify/require"
)

func TestRunOnceCombinesResults(t *testing.T) {
	products := &fixedChecker{result: succeeded(200, "ok")}
	configID := &fixedChecker{result: failed(404, "unable to locate a valid config id from 1 (scan limit 1)")}
	tel := &telemetry.Recorder{}

	report := New(products, configID, tel).RunOnce(context.Background())
	require.NotEmpty(t, report.RunID)
	require.Equal(t, products.result, report.Products)
	require.Equal(t, configID.result, report.ConfigID)
	require.False(t, report.Success())
	require.Equal(t, 1, products.calls)
	require.Equal(t, 1, configID.calls)

	var warnings int
	for _, r := range tel.Reports() {
		if r.Level == "warning" {
			warnings++
		}
	}
	require.Equal(t, 1, warnings)
}

func TestRunOnceCancelled(t *testing.T) {
	products := &fixedChecker{result: succeeded(200, "ok")}
	configID := &fixedChecker{result: succeeded(200, "ok")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := New(products, configID, telemetry.SlogAPI{}).RunOnce(ctx)
	require.Equal(t, StatusCancelled, report.Products.StatusCode)
	require.Equal(t, StatusCancelled, report.ConfigID.StatusCode)
	require.Equal(t, 0, products.calls+configID.calls)
}

func TestRunOnceEndToEnd(t *testing.T) {
	dir := t.TempDir()
	notifier := &fakeNotifier{}

	fetcher := &fakeFetcher{}
	fetcher.set(activityPage(listing{name: "A", price: "10", open: true}), nil)
	prober := &fakeProber{
		valid: map[int]hdy.ConfigDetails{2018: {}},
		errs:  map[int]error{},
	}

	products := NewProductMonitor(
		fetcher,
		notifier,
		snapshot.New[[]hdy.Product](filepath.Join(dir, "lastServers.json")),
		ProductOptions{TargetURL: "https://example.com"},
		telemetry.SlogAPI{},
	)
	configID := NewConfigMonitor(
		prober,
		notifier,
		frontier.NewStore(filepath.Join(dir, "lastConfigId.json")),
		ConfigOptions{Enabled: true, StartID: 2018, ScanLimit: 200},
		chrono.NewStandardTime(),
		telemetry.SlogAPI{},
	)

	report := New(products, configID, telemetry.SlogAPI{}).RunOnce(context.Background())
	require.True(t, report.Success(), "%v / %v", report.Products, report.ConfigID)
	require.Equal(t, "no new config. Last ID=2018", report.ConfigID.Message)
	require.Equal(t, []string{"新服务器 'A' ! Price: 10. /月"}, notifier.titles())
}
