package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"hdymonitor/internal/notify"
	"hdymonitor/internal/scrapers/hdy"
)

type fakeFetcher struct {
	mu    sync.Mutex
	page  hdy.Page
	err   error
	calls int
}

func (f *fakeFetcher) set(page hdy.Page, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.page = page
	f.err = err
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (hdy.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	page := f.page
	page.URL = url
	return page, f.err
}

type listing struct {
	name  string
	price string
	open  bool
}

// activityPage renders a promotion page in the same shape as the real one.
func activityPage(listings ...listing) hdy.Page {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for _, l := range listings {
		class := "form-footer-button"
		if !l.open {
			class += " disableButton"
		}
		fmt.Fprintf(&sb, `<div class="x-promotion-card">
			<h1>%s</h1>
			<span class="main-price-current" data-current="%s"></span>
			<span class="price-current-unit">/月</span>
			<div class="form-container"><div class="form-title"><h5>核心：</h5></div>
				<div class="form-content-data"><p class="form-text">2核</p></div></div>
			<a class="%s">立即购买</a>
		</div>`, l.name, l.price, class)
	}
	sb.WriteString("</body></html>")
	return hdy.Page{StatusCode: 200, Status: "200 OK", Body: sb.String()}
}

type fakeNotifier struct {
	mu       sync.Mutex
	err      error
	messages []notify.Message
}

func (f *fakeNotifier) Send(_ context.Context, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return f.err
}

func (f *fakeNotifier) titles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var titles []string
	for _, m := range f.messages {
		titles = append(titles, m.Title)
	}
	return titles
}

func (f *fakeNotifier) last() notify.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[len(f.messages)-1]
}

type fakeProber struct {
	mu     sync.Mutex
	valid  map[int]hdy.ConfigDetails
	errs   map[int]error
	probed []int
}

func (f *fakeProber) add(id int, details hdy.ConfigDetails) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.valid[id] = details
}

func (f *fakeProber) ProbeConfig(_ context.Context, id int) (hdy.ConfigDetails, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probed = append(f.probed, id)
	if err := f.errs[id]; err != nil {
		return hdy.ConfigDetails{}, false, err
	}
	details, ok := f.valid[id]
	return details, ok, nil
}

func (f *fakeProber) ConfigURL(id int) string {
	return hdy.ConfigURL("https://example.com/cart?pid={id}", id)
}

func (f *fakeProber) probes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.probed...)
}

type fixedChecker struct {
	result Result
	calls  int
}

func (f *fixedChecker) Check(context.Context) Result {
	f.calls++
	return f.result
}
