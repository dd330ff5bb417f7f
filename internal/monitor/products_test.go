package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"hdymonitor/internal/components/telemetry"
	"hdymonitor/internal/notify"
	"hdymonitor/internal/scrapers/hdy"
	"hdymonitor/internal/snapshot"

	"github.com/stretchr/testify/require"
)

type productsFixture struct {
	fetcher  *fakeFetcher
	notifier *fakeNotifier
	store    snapshot.Store[[]hdy.Product]
	monitor  *ProductMonitor
}

func newProductsFixture(t *testing.T, path string, opts ProductOptions) productsFixture {
	if opts.TargetURL == "" {
		opts.TargetURL = "https://example.com/activity"
	}
	f := productsFixture{
		fetcher:  &fakeFetcher{},
		notifier: &fakeNotifier{},
		store:    snapshot.New[[]hdy.Product](path),
	}
	f.monitor = NewProductMonitor(f.fetcher, f.notifier, f.store, opts, telemetry.SlogAPI{})
	return f
}

func TestProductMonitorLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lastServers.json")
	f := newProductsFixture(t, path, ProductOptions{})
	ctx := context.Background()

	// first run: everything is new, only the purchasable listing is announced
	f.fetcher.set(activityPage(
		listing{name: "A", price: "10", open: true},
		listing{name: "B", price: "20", open: false},
	), nil)
	res := f.monitor.Check(ctx)
	require.True(t, res.Success, res.Message)
	require.Equal(t, 200, res.StatusCode)
	require.Equal(t, []string{"新服务器 'A' ! Price: 10. /月"}, f.notifier.titles())

	stored, ok := f.store.Load()
	require.True(t, ok)
	require.Len(t, stored, 2)

	// identical content: nothing to announce, file untouched
	before, err := os.ReadFile(path)
	require.NoError(t, err)
	res = f.monitor.Check(ctx)
	require.True(t, res.Success)
	require.Len(t, f.notifier.titles(), 1)
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, string(before), string(after))

	// B comes back in stock
	f.fetcher.set(activityPage(
		listing{name: "A", price: "10", open: true},
		listing{name: "B", price: "20", open: true},
	), nil)
	res = f.monitor.Check(ctx)
	require.True(t, res.Success)
	require.Equal(t, "服务器 'B' 可购买! Price: 20. /月", f.notifier.last().Title)
	require.Contains(t, f.notifier.last().Body, "名称: B")

	// A sells out and B disappears, the snapshot follows without any message
	f.fetcher.set(activityPage(
		listing{name: "A", price: "10", open: false},
	), nil)
	res = f.monitor.Check(ctx)
	require.True(t, res.Success)
	require.Len(t, f.notifier.titles(), 2)
	stored, _ = f.store.Load()
	require.Len(t, stored, 1)
	require.False(t, stored[0].Purchasable)
}

func TestProductMonitorNotifiesRemovals(t *testing.T) {
	f := newProductsFixture(t, filepath.Join(t.TempDir(), "s.json"), ProductOptions{NotifyRemovals: true})
	require.NoError(t, f.store.Save([]hdy.Product{{Name: "Gone", Price: "5", RenewalInfo: "/月"}}))

	f.fetcher.set(activityPage(), nil)
	res := f.monitor.Check(context.Background())
	require.True(t, res.Success)
	require.Equal(t, []string{"服务器 'Gone' 已下架! Price: 5. /月"}, f.notifier.titles())

	stored, ok := f.store.Load()
	require.True(t, ok)
	require.Empty(t, stored)
}

func TestProductMonitorFailures(t *testing.T) {
	boom := errors.New("connection reset")

	cases := []struct {
		name      string
		page      hdy.Page
		err       error
		code      int
		message   string
		solutions bool
	}{
		{
			name:      "challenge",
			err:       &hdy.ChallengeError{URL: "x", StatusCode: 403, Marker: "Just a moment"},
			code:      503,
			message:   "challenge protection detected",
			solutions: true,
		},
		{
			name:    "upstream status",
			page:    hdy.Page{StatusCode: 404, Status: "404 Not Found"},
			code:    404,
			message: "error fetching data: Not Found",
		},
		{
			name:    "transport",
			err:     &hdy.TransportError{URL: "x", Err: boom},
			code:    500,
			message: "fetch products: fetch x: connection reset",
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "s.json")
			f := newProductsFixture(t, path, ProductOptions{})
			f.fetcher.set(test.page, test.err)

			res := f.monitor.Check(context.Background())
			require.False(t, res.Success)
			require.Equal(t, test.code, res.StatusCode)
			require.Equal(t, test.message, res.Message)
			if test.solutions {
				require.Equal(t, ChallengeSolutions, res.Solutions)
				require.NotEmpty(t, res.Solutions)
			} else {
				require.Empty(t, res.Solutions)
			}

			_, err := os.Stat(path)
			require.True(t, os.IsNotExist(err), "nothing should be written on failure")
			require.Empty(t, f.notifier.titles())
		})
	}
}

func TestProductMonitorSaveFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	f := newProductsFixture(t, filepath.Join(blocker, "s.json"), ProductOptions{})
	f.fetcher.set(activityPage(listing{name: "A", price: "10", open: true}), nil)

	res := f.monitor.Check(context.Background())
	require.False(t, res.Success)
	require.Equal(t, 500, res.StatusCode)
	require.Contains(t, res.Message, "save product snapshot")
}

func TestProductMonitorNotifierFailureDoesNotFailCycle(t *testing.T) {
	f := newProductsFixture(t, filepath.Join(t.TempDir(), "s.json"), ProductOptions{})
	f.notifier.err = errors.New("pushdeer down")
	f.fetcher.set(activityPage(listing{name: "A", price: "10", open: true}), nil)

	res := f.monitor.Check(context.Background())
	require.True(t, res.Success)
	_, ok := f.store.Load()
	require.True(t, ok)
}

func TestProductMonitorCancelled(t *testing.T) {
	f := newProductsFixture(t, filepath.Join(t.TempDir(), "s.json"), ProductOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := f.monitor.Check(ctx)
	require.Equal(t, StatusCancelled, res.StatusCode)
	require.Equal(t, 0, f.fetcher.calls)
}

type recordingChannel struct {
	name   string
	titles []string
}

func (c *recordingChannel) Name() string {
	return c.name
}

func (c *recordingChannel) Send(_ context.Context, msg notify.Message) error {
	c.titles = append(c.titles, msg.Title)
	return nil
}

func TestProductEventsReachEveryChannel(t *testing.T) {
	push := &recordingChannel{name: "pushdeer"}
	mail := &recordingChannel{name: "email"}
	dispatcher := notify.NewDispatcher(telemetry.SlogAPI{}, 0, push, mail)

	fetcher := &fakeFetcher{}
	products := NewProductMonitor(
		fetcher,
		dispatcher,
		snapshot.New[[]hdy.Product](filepath.Join(t.TempDir(), "s.json")),
		ProductOptions{TargetURL: "https://example.com/activity"},
		telemetry.SlogAPI{},
	)
	ctx := context.Background()

	fetcher.set(activityPage(
		listing{name: "A", price: "10", open: true},
		listing{name: "B", price: "20", open: false},
	), nil)
	require.True(t, products.Check(ctx).Success)

	fetcher.set(activityPage(
		listing{name: "A", price: "10", open: true},
		listing{name: "B", price: "20", open: true},
	), nil)
	require.True(t, products.Check(ctx).Success)

	expected := []string{
		"新服务器 'A' ! Price: 10. /月",
		"服务器 'B' 可购买! Price: 20. /月",
	}
	require.Equal(t, expected, push.titles)
	require.Equal(t, expected, mail.titles)
}
