package monitor

import (
	"context"
	"fmt"
	"net/http"

	"hdymonitor/internal/assert"
	"hdymonitor/internal/components/telemetry"
	"hdymonitor/internal/diff"
	"hdymonitor/internal/notify"
	"hdymonitor/internal/scrapers/hdy"
	"hdymonitor/internal/snapshot"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_products_check  = "products.check"
	report_products_parsed = "products.parsed"
)

// Fetcher retrieves a page by url.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (hdy.Page, error)
}

// Notifier delivers a message to whoever is listening.
type Notifier interface {
	Send(ctx context.Context, msg notify.Message) error
}

type ProductOptions struct {
	TargetURL string
	// NotifyRemovals reports listings that disappeared, by default a shrinking list only
	// updates the snapshot.
	NotifyRemovals bool
}

// ProductMonitor watches the promotion page for new listings and availability changes.
type ProductMonitor struct {
	fetcher  Fetcher
	notifier Notifier
	store    snapshot.Store[[]hdy.Product]
	opts     ProductOptions
	tel      telemetry.API
}

func NewProductMonitor(
	fetcher Fetcher,
	notifier Notifier,
	store snapshot.Store[[]hdy.Product],
	opts ProductOptions,
	tel telemetry.API,
) *ProductMonitor {
	assert.NotNil(fetcher)
	assert.NotNil(notifier)
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.TargetURL)

	return &ProductMonitor{
		fetcher:  fetcher,
		notifier: notifier,
		store:    store,
		opts:     opts,
		tel:      telemetry.NewScopedAPI("monitor", tel),
	}
}

func (m *ProductMonitor) Store() snapshot.Store[[]hdy.Product] {
	return m.store
}

func (m *ProductMonitor) Check(ctx context.Context) Result {
	ctx, span := tracer.Start(ctx, "ProductMonitor:Check")
	defer span.End()
	span.SetAttributes(attribute.String("url", m.opts.TargetURL))

	if ctx.Err() != nil {
		return cancelled()
	}

	page, err := m.fetcher.Fetch(ctx, m.opts.TargetURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		m.tel.ReportWarning(report_products_check, err)
		return fromError(ctx, "fetch products", err)
	}
	if !page.OK() {
		span.SetStatus(codes.Error, "unexpected status")
		return failed(page.StatusCode, "error fetching data: %s", page.Reason())
	}
	if ctx.Err() != nil {
		return cancelled()
	}

	doc, err := page.Document()
	if err != nil {
		span.RecordError(err)
		m.tel.ReportBroken(report_products_check, fmt.Errorf("parse page: %w", err))
		return failed(http.StatusInternalServerError, "parse products page: %v", err)
	}
	products := hdy.ParseProducts(doc)
	if products == nil {
		products = []hdy.Product{}
	}
	m.tel.ReportCount(report_products_parsed, int64(len(products)))
	span.SetAttributes(attribute.Int("products", len(products)))

	var events int
	err = m.store.Update(func(previous []hdy.Product, _ bool) ([]hdy.Product, bool, error) {
		result := diff.Compare(previous, products, diff.Options{DetectRemovals: m.opts.NotifyRemovals})
		events = len(result.Events)
		for _, event := range result.Events {
			msg, ok := m.messageFor(event)
			if !ok {
				continue
			}
			// delivery failures are reported by the notifier and never fail the cycle
			_ = m.notifier.Send(ctx, msg)
		}
		return products, result.Changed, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		m.tel.ReportBroken(report_products_check, fmt.Errorf("save snapshot: %w", err))
		return failed(http.StatusInternalServerError, "save product snapshot: %v", err)
	}

	return succeeded(http.StatusOK, "checked %d products, %d changes", len(products), events)
}

func (m *ProductMonitor) messageFor(event diff.Event) (notify.Message, bool) {
	switch {
	case event.Kind == diff.KindRemoved && m.opts.NotifyRemovals:
		return productMessage(fmt.Sprintf("服务器 '%s' 已下架! Price: %s. %s",
			event.Previous.Name, event.Previous.Price, event.Previous.RenewalInfo), event.Previous), true
	case !event.NotificationWorthy():
		return notify.Message{}, false
	case event.Kind == diff.KindNew:
		return productMessage(fmt.Sprintf("新服务器 '%s' ! Price: %s. %s",
			event.Current.Name, event.Current.Price, event.Current.RenewalInfo), event.Current), true
	default:
		return productMessage(fmt.Sprintf("服务器 '%s' 可购买! Price: %s. %s",
			event.Current.Name, event.Current.Price, event.Current.RenewalInfo), event.Current), true
	}
}

func productMessage(title string, p hdy.Product) notify.Message {
	return notify.Message{
		Title: title,
		Body:  title + "\n\n" + p.String(),
	}
}
