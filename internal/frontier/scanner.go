package frontier

import (
	"context"
	"errors"
	"fmt"

	"hdymonitor/internal/assert"
	"hdymonitor/internal/components/telemetry"
)

const (
	report_scanner_step    = "scanner.step"
	report_scanner_resume  = "scanner.resume"
	report_scanner_confirm = "scanner.confirm"
)

var (
	// ErrNotFound is returned when a backward scan runs out of budget (or ids) without
	// finding any id with content.
	ErrNotFound = errors.New("no valid id found")
	// ErrUninitialized is returned when stepping a state that has not been established.
	ErrUninitialized = errors.New("frontier is not initialized")
)

// Probe reports whether id currently has content.
type Probe func(ctx context.Context, id int) (bool, error)

type Phase int

const (
	Uninitialized Phase = iota
	Scanning
	Steady
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case Scanning:
		return "scanning"
	case Steady:
		return "steady"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// State is a value, every transition returns a new one.
//
// LastID is only meaningful when Steady, Candidate, Remaining and Floor only while Scanning.
// Floor is a frontier that was already confirmed before the scan started, the scan never
// settles below it.
type State struct {
	Phase     Phase
	LastID    int
	Candidate int
	Remaining int
	Floor     int
}

func (s State) String() string {
	switch s.Phase {
	case Scanning:
		return fmt.Sprintf("scanning(candidate=%d remaining=%d floor=%d)", s.Candidate, s.Remaining, s.Floor)
	case Steady:
		return fmt.Sprintf("steady(last=%d)", s.LastID)
	}
	return s.Phase.String()
}

type Options struct {
	// StartID is the id a backward scan starts from.
	StartID int
	// ScanLimit is the maximum number of ids probed by one backward scan.
	ScanLimit int
}

type Scanner struct {
	probe Probe
	opts  Options
	tel   telemetry.API
}

func NewScanner(probe Probe, opts Options, tel telemetry.API) Scanner {
	assert.NotNil(probe)
	assert.NotNil(tel)
	if opts.ScanLimit <= 0 {
		opts.ScanLimit = 1
	}
	return Scanner{
		probe: probe,
		opts:  opts,
		tel:   telemetry.NewScopedAPI("frontier", tel),
	}
}

func (s Scanner) Options() Options {
	return s.opts
}

// Resume decides where a cold start re-enters the state machine given the persisted
// frontier (ok is false when nothing was persisted). When the start id is ahead of the
// persisted frontier the scan covers the gap between them and falls back to the persisted
// id, so the frontier never moves backwards.
func (s Scanner) Resume(persisted int, ok bool) State {
	if ok && persisted >= s.opts.StartID {
		return State{Phase: Steady, LastID: persisted}
	}
	state := State{
		Phase:     Scanning,
		Candidate: s.opts.StartID,
		Remaining: s.opts.ScanLimit,
	}
	if ok && persisted > 0 {
		s.tel.ReportDebug(report_scanner_resume, "start id is ahead of persisted frontier", persisted, s.opts.StartID)
		state.Floor = persisted
	}
	return state
}

// Step performs exactly one probe. On a probe error the returned state is the input state.
func (s Scanner) Step(ctx context.Context, state State) (State, error) {
	switch state.Phase {
	case Scanning:
		return s.stepScan(ctx, state)
	case Steady:
		next, _, err := s.Advance(ctx, state)
		return next, err
	}
	return state, ErrUninitialized
}

// settle returns the state a scan ends in when it cannot probe state.Candidate, done is
// false while there is still something to probe.
func (s Scanner) settle(state State) (next State, done bool, err error) {
	if state.Floor > 0 && (state.Candidate <= state.Floor || state.Remaining <= 0) {
		s.tel.ReportDebug(report_scanner_resume, "nothing above persisted frontier", state.Floor)
		return State{Phase: Steady, LastID: state.Floor}, true, nil
	}
	if state.Candidate <= 0 || state.Remaining <= 0 {
		return State{Phase: Uninitialized}, true, ErrNotFound
	}
	return state, false, nil
}

func (s Scanner) stepScan(ctx context.Context, state State) (State, error) {
	if settled, done, err := s.settle(state); done {
		return settled, err
	}

	found, err := s.probe(ctx, state.Candidate)
	if err != nil {
		s.tel.ReportWarning(report_scanner_step, state.Candidate, err)
		return state, fmt.Errorf("probe id %d: %w", state.Candidate, err)
	}
	if found {
		s.tel.ReportDebug(report_scanner_confirm, state.Candidate)
		return State{Phase: Steady, LastID: state.Candidate}, nil
	}

	next := State{
		Phase:     Scanning,
		Candidate: state.Candidate - 1,
		Remaining: state.Remaining - 1,
		Floor:     state.Floor,
	}
	if settled, done, err := s.settle(next); done {
		return settled, err
	}
	return next, nil
}

// Initialize keeps stepping a scanning state until it settles, a Steady state is
// returned as is.
func (s Scanner) Initialize(ctx context.Context, state State) (State, error) {
	for state.Phase == Scanning {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		next, err := s.Step(ctx, state)
		if err != nil {
			return next, err
		}
		state = next
	}
	if state.Phase != Steady {
		return state, ErrUninitialized
	}
	return state, nil
}

// Advance probes the id right after the frontier. advanced is true when it had content,
// in which case next.LastID is exactly state.LastID+1.
func (s Scanner) Advance(ctx context.Context, state State) (next State, advanced bool, err error) {
	if state.Phase != Steady {
		return state, false, ErrUninitialized
	}

	id := state.LastID + 1
	found, err := s.probe(ctx, id)
	if err != nil {
		s.tel.ReportWarning(report_scanner_step, id, err)
		return state, false, fmt.Errorf("probe id %d: %w", id, err)
	}
	if !found {
		return state, false, nil
	}
	s.tel.ReportDebug(report_scanner_confirm, id)
	return State{Phase: Steady, LastID: id}, true, nil
}
