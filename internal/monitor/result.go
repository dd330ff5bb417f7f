package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"hdymonitor/internal/scrapers/hdy"
)

// StatusCancelled is reported when the cycle was cancelled before it could finish.
const StatusCancelled = 499

// ChallengeSolutions is attached to every result that failed because of an anti-bot
// challenge page.
var ChallengeSolutions = []string{
	"1. Use a browser automation tool such as Selenium or Playwright that can execute the challenge JavaScript.",
	"2. Route requests through a dedicated challenge solver such as FlareSolverr (https://github.com/FlareSolverr/FlareSolverr).",
	"3. Drive a real headless browser (for example chromedp or go-rod) and reuse its cookies.",
	"4. Use an official API with an access token if the site offers one.",
	"5. Use a proxy service or rotate outgoing IP addresses.",
	"6. Spread requests out over time or across serverless functions.",
}

// Result is the outcome of checking one signal.
type Result struct {
	Success    bool
	StatusCode int
	Message    string
	Solutions  []string
}

func (r Result) String() string {
	return fmt.Sprintf("%d %s", r.StatusCode, r.Message)
}

func succeeded(code int, format string, args ...any) Result {
	return Result{Success: true, StatusCode: code, Message: fmt.Sprintf(format, args...)}
}

func failed(code int, format string, args ...any) Result {
	return Result{Success: false, StatusCode: code, Message: fmt.Sprintf(format, args...)}
}

func cancelled() Result {
	return failed(StatusCancelled, "cancelled")
}

// fromError classifies an error that came out of fetching or probing.
func fromError(ctx context.Context, prefix string, err error) Result {
	if hdy.IsChallenge(err) {
		return Result{
			Success:    false,
			StatusCode: http.StatusServiceUnavailable,
			Message:    "challenge protection detected",
			Solutions:  ChallengeSolutions,
		}
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return cancelled()
	}
	return failed(http.StatusInternalServerError, "%s: %v", prefix, err)
}

// Report is the outcome of one full cycle.
type Report struct {
	RunID    string
	Products Result
	ConfigID Result
}

// Success is true when both signals were checked successfully.
func (r Report) Success() bool {
	return r.Products.Success && r.ConfigID.Success
}
