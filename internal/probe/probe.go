// Package probe detects backend cold starts. A free-tier backend that has
// been idle answers its first request only after a long spin-up; probing the
// health endpoint before login and registration turns that silent hang into
// a narrated wait. Warm flows (sending a chat message) skip the probe.
package probe

import (
	"context"
	"encoding/json"
	"time"
)

// asleepThreshold is the elapsed time beyond which the backend is assumed to
// have been cold-started rather than merely slow.
const asleepThreshold = 10 * time.Second

// HealthChecker is the single backend call the prober needs.
type HealthChecker interface {
	Health(ctx context.Context) (json.RawMessage, error)
}

// Result is the outcome of one probe. A probe never fails: an unreachable
// backend yields Reachable == false, not an error, because the probe is a
// best-effort diagnostic rather than a critical-path call.
type Result struct {
	Reachable bool
	Elapsed   time.Duration
	Payload   json.RawMessage
}

// Stage identifies the phase a Status narrates.
type Stage int

const (
	StageConnecting Stage = iota
	StageReady
	StageWokeUp
	StageUnreachable
)

// Status is one narration event emitted while waking the backend.
type Status struct {
	Stage   Stage
	Message string
}

// Listener receives narration events. Implementations must not block; events
// are delivered synchronously on the probing goroutine.
type Listener interface {
	OnStatus(Status)
}

// ListenerFunc adapts a plain function to Listener.
type ListenerFunc func(Status)

func (f ListenerFunc) OnStatus(s Status) { f(s) }

// Prober measures health-endpoint latency against the cold-start threshold.
type Prober struct {
	health    HealthChecker
	threshold time.Duration
	now       func() time.Time
}

func New(health HealthChecker) *Prober {
	return &Prober{health: health, threshold: asleepThreshold, now: time.Now}
}

// Probe issues one long-timeout health request and reports elapsed wall time.
func (p *Prober) Probe(ctx context.Context) Result {
	start := p.now()
	payload, err := p.health.Health(ctx)
	elapsed := p.now().Sub(start)
	if err != nil {
		return Result{Reachable: false, Elapsed: elapsed}
	}
	return Result{Reachable: true, Elapsed: elapsed, Payload: payload}
}

// Wake probes the backend and narrates the outcome: a probe that took longer
// than the cold-start threshold is reported as "was asleep, now awake", a
// fast one as "ready". The listener may be nil.
func (p *Prober) Wake(ctx context.Context, l Listener) Result {
	notify(l, Status{Stage: StageConnecting, Message: "Connecting to server..."})

	res := p.Probe(ctx)
	switch {
	case !res.Reachable:
		notify(l, Status{Stage: StageUnreachable, Message: "Server is unreachable."})
	case res.Elapsed > p.threshold:
		notify(l, Status{Stage: StageWokeUp, Message: "Server was sleeping, now awake!"})
	default:
		notify(l, Status{Stage: StageReady, Message: "Server is ready!"})
	}
	return res
}

func notify(l Listener, s Status) {
	if l != nil {
		l.OnStatus(s)
	}
}
