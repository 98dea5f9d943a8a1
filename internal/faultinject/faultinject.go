// Package faultinject turns reserved markers in a scoring request into
// synthetic failures. The engine's integration tests send these markers to
// exercise its timeout, HTTP-error and response-parsing failure paths.
package faultinject

import (
	"strings"
	"time"
)

// Reserved markers, matched case-insensitively against host and path.
const (
	MarkerTimeout = "timeout_test"
	MarkerError   = "error_test"
	MarkerInvalid = "invalid_test"
)

// DefaultDelay is how long a timeout_test request is held before it is scored.
const DefaultDelay = 10 * time.Second

// ServerErrorDetail is the message returned with a forced 500.
const ServerErrorDetail = "forced 500 for engine test"

// Fault is the terminal outcome selected for a request.
type Fault int

const (
	// FaultNone means the request is scored normally.
	FaultNone Fault = iota
	// FaultServerError means the request must fail with HTTP 500.
	FaultServerError
	// FaultMalformedBody means the request must receive a truncated JSON body.
	FaultMalformedBody
)

func (f Fault) String() string {
	switch f {
	case FaultServerError:
		return "server_error"
	case FaultMalformedBody:
		return "malformed_body"
	default:
		return "none"
	}
}

// Plan describes what the injector will do for a host/path pair.
type Plan struct {
	Delay bool
	Fault Fault
}

// Inspect reports which markers host and path carry. The timeout delay is
// independent of the terminal fault; error_test wins over invalid_test.
func Inspect(host, path string) Plan {
	h := strings.ToLower(host)
	p := strings.ToLower(path)
	has := func(marker string) bool {
		return strings.Contains(h, marker) || strings.Contains(p, marker)
	}

	var plan Plan
	plan.Delay = has(MarkerTimeout)
	switch {
	case has(MarkerError):
		plan.Fault = FaultServerError
	case has(MarkerInvalid):
		plan.Fault = FaultMalformedBody
	}
	return plan
}

// Injector applies Plans. A zero Injector is not usable; call New.
type Injector struct {
	delay time.Duration
	sleep func(time.Duration)
	onHit func(name string)
}

// Option configures an Injector.
type Option func(*Injector)

// WithSleep replaces time.Sleep, mainly for tests.
func WithSleep(fn func(time.Duration)) Option {
	return func(i *Injector) { i.sleep = fn }
}

// WithHitRecorder registers a callback invoked with "timeout", "server_error"
// or "malformed_body" each time a marker fires.
func WithHitRecorder(fn func(name string)) Option {
	return func(i *Injector) { i.onHit = fn }
}

// New returns an Injector that holds timeout_test requests for delay.
func New(delay time.Duration, opts ...Option) *Injector {
	i := &Injector{delay: delay, sleep: time.Sleep}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Apply runs the delay for timeout_test requests and returns the terminal
// fault. The delay is not tied to the request context: the caller is expected
// to give up first, and the server finishes the request regardless.
func (i *Injector) Apply(host, path string) Fault {
	plan := Inspect(host, path)
	if plan.Delay {
		i.record("timeout")
		i.sleep(i.delay)
	}
	if plan.Fault != FaultNone {
		i.record(plan.Fault.String())
	}
	return plan.Fault
}

func (i *Injector) record(name string) {
	if i.onHit != nil {
		i.onHit(name)
	}
}

// MalformedBody returns the truncated JSON fixture served for invalid_test.
// It carries the request id but cannot be parsed.
func MalformedBody(requestID string) string {
	return `{"request_id": "` + requestID + `", "score": 0.1, "label": `
}
