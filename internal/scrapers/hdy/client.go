package hdy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"hdymonitor/internal/assert"
	"hdymonitor/internal/components/telemetry"
	"hdymonitor/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("hdymonitor/scrapers/hdy")

const (
	report_client_fetch        = "client.fetch"
	report_client_probe_config = "client.probe-config"
)

const (
	DefaultReferer        = "https://www.szhdy.com/"
	DefaultConfigTemplate = "https://www.szhdy.com/cart?action=configureproduct&pid={id}"
	DefaultTimeout        = 30 * time.Second
	DefaultRatePerSecond  = 2
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36"

var challengeMarkers = []string{
	"Just a moment",
	"challenge-platform",
	"__cf_chl_opt",
}

// ChallengeError is returned when the upstream answered with an anti-bot challenge page
// instead of content.
type ChallengeError struct {
	URL        string
	StatusCode int
	Marker     string
}

func (e *ChallengeError) Error() string {
	return fmt.Sprintf("challenge page detected at %s (status %d, marker %q)", e.URL, e.StatusCode, e.Marker)
}

// TransportError wraps anything that kept a response from arriving: dns, tls, timeouts,
// cancellation.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Page is a response that made it back, whatever its status.
type Page struct {
	StatusCode int
	Status     string
	URL        string
	Body       string
}

func (p Page) OK() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

// Reason is the reason phrase of the status line, "Not Found" for a 404.
func (p Page) Reason() string {
	_, reason, found := strings.Cut(p.Status, " ")
	if found && reason != "" {
		return reason
	}
	if text := http.StatusText(p.StatusCode); text != "" {
		return text
	}
	return strconv.Itoa(p.StatusCode)
}

func (p Page) Document() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(p.Body))
}

type ClientOptions struct {
	// ConfigTemplate builds configuration page urls, see ConfigURL.
	ConfigTemplate string
	Referer        string
	Timeout        time.Duration
	// RatePerSecond caps outgoing requests, bursts are allowed up to the same amount.
	RatePerSecond float64
	// Dump receives every raw exchange when set.
	Dump restyutil.Output
}

type Client struct {
	http *resty.Client
	opts ClientOptions
	tel  telemetry.API
}

func NewClient(opts ClientOptions, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("hdy_scraper", tel)

	if opts.ConfigTemplate == "" {
		opts.ConfigTemplate = DefaultConfigTemplate
	}
	if opts.Referer == "" {
		opts.Referer = DefaultReferer
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = DefaultRatePerSecond
	}

	httpClient := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)

	httpClient.SetHeaders(map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "zh-CN,zh;q=0.9,en-US;q=0.8,en;q=0.7",
		"Accept-Encoding": "gzip",
		"DNT":             "1",
		"Cache-Control":   "no-cache",
		"Pragma":          "no-cache",
		"Referer":         opts.Referer,
	})
	httpClient.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	httpClient.SetTimeout(opts.Timeout)

	burst := int(opts.RatePerSecond)
	if burst < 1 {
		burst = 1
	}
	rateLimiter := rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, "hdymonitor/scrapers/hdy/http", tel)
	restyutil.DumpExchanges(httpClient, opts.Dump)

	return &Client{
		http: httpClient,
		opts: opts,
		tel:  tel,
	}, nil
}

// Fetch performs a GET against url. Only challenge pages and transport failures are
// errors, non-2xx responses come back as a Page for the caller to judge.
func (c *Client) Fetch(ctx context.Context, url string) (Page, error) {
	ctx, span := tracer.Start(ctx, "client:Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	if err := ctx.Err(); err != nil {
		return Page{}, &TransportError{URL: url, Err: err}
	}
	res, err := c.http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return Page{}, &TransportError{URL: url, Err: err}
	}

	page := Page{
		StatusCode: res.StatusCode(),
		Status:     res.Status(),
		URL:        url,
		Body:       res.String(),
	}
	for _, marker := range challengeMarkers {
		if strings.Contains(page.Body, marker) {
			span.SetStatus(codes.Error, "challenge detected")
			c.tel.ReportWarning(report_client_fetch, "challenge detected", url, page.StatusCode)
			return page, &ChallengeError{URL: url, StatusCode: page.StatusCode, Marker: marker}
		}
	}
	return page, nil
}

// ConfigURL substitutes id into template. The "{id}" placeholder is matched in any case,
// a template without one gets the id appended.
func ConfigURL(template string, id int) string {
	value := strconv.Itoa(id)
	lower := strings.ToLower(template)
	if !strings.Contains(lower, "{id}") {
		return template + value
	}

	var sb strings.Builder
	for {
		i := strings.Index(lower, "{id}")
		if i < 0 {
			sb.WriteString(template)
			return sb.String()
		}
		sb.WriteString(template[:i])
		sb.WriteString(value)
		template = template[i+len("{id}"):]
		lower = lower[i+len("{id}"):]
	}
}

func (c *Client) ConfigURL(id int) string {
	return ConfigURL(c.opts.ConfigTemplate, id)
}

// ProbeConfig reports whether the configuration page for id is populated. Non-2xx and
// blank pages count as empty, a challenge page is an error since it says nothing about id.
func (c *Client) ProbeConfig(ctx context.Context, id int) (ConfigDetails, bool, error) {
	ctx, span := tracer.Start(ctx, "client:ProbeConfig")
	defer span.End()
	span.SetAttributes(attribute.Int("config_id", id))

	page, err := c.Fetch(ctx, c.ConfigURL(id))
	if err != nil {
		span.SetStatus(codes.Error, "fetch failed")
		return ConfigDetails{}, false, err
	}
	if !page.OK() || strings.TrimSpace(page.Body) == "" {
		return ConfigDetails{}, false, nil
	}

	doc, err := page.Document()
	if err != nil {
		c.tel.ReportBroken(report_client_probe_config, fmt.Errorf("parse config page %d: %w", id, err))
		return ConfigDetails{}, false, nil
	}
	details, ok := ParseConfigPage(doc)
	return details, ok, nil
}

// IsChallenge reports whether err came from a challenge page.
func IsChallenge(err error) bool {
	var challenge *ChallengeError
	return errors.As(err, &challenge)
}
