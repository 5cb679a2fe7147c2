// Package connectivity tracks network reachability for the sync core.
// The platform integration feeds transitions in; the orchestrator and
// anything else interested subscribes to them.
package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

// State is the current reachability snapshot.
type State struct {
	Connected bool
	Label     string
}

// Online and Offline are the two states the default labels produce.
func Online() State  { return State{Connected: true, Label: "online"} }
func Offline() State { return State{Connected: false, Label: "offline"} }

// Prober answers the one startup reachability query. After startup the
// monitor is purely event-driven; there is no polling loop.
type Prober interface {
	Probe(ctx context.Context) bool
}

// Monitor holds the process-wide connectivity state and fans
// transitions out to subscribers. Every pushed event is relayed as-is,
// flutter included; debouncing, if wanted, belongs to the caller.
type Monitor struct {
	logger *slog.Logger

	mu     sync.Mutex
	state  State
	subs   map[int]func(State)
	nextID int
}

// NewMonitor creates a monitor that assumes it is online until told
// otherwise. Call Init once at startup to establish the real state.
func NewMonitor(logger *slog.Logger) *Monitor {
	return &Monitor{
		logger: logger,
		state:  Online(),
		subs:   make(map[int]func(State)),
	}
}

// Init establishes the initial state with a single probe. Subscribers
// are not notified; startup state is a baseline, not a transition.
func (m *Monitor) Init(ctx context.Context, p Prober) {
	st := Offline()
	if p.Probe(ctx) {
		st = Online()
	}

	m.mu.Lock()
	m.state = st
	m.mu.Unlock()

	m.logger.Info("connectivity established", slog.Bool("connected", st.Connected))
}

// Current returns the last known state.
func (m *Monitor) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Set records a state pushed by the platform and relays it to every
// subscriber. Handlers run synchronously on the caller's goroutine in
// subscription order.
func (m *Monitor) Set(st State) {
	m.mu.Lock()
	prev := m.state
	m.state = st

	// Subscription ids are assigned monotonically, so sorting them
	// yields subscription order.
	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	handlers := make([]func(State), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, m.subs[id])
	}
	m.mu.Unlock()

	if prev.Connected != st.Connected {
		m.logger.Info("connectivity changed",
			slog.Bool("connected", st.Connected),
			slog.String("label", st.Label),
		)
	}

	for _, h := range handlers {
		h(st)
	}
}

// Subscribe registers a handler for every pushed state event and
// returns its unsubscribe function.
func (m *Monitor) Subscribe(h func(State)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = h
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// HTTPProber answers the startup query with a HEAD request against a
// well-known endpoint.
type HTTPProber struct {
	URL    string
	Client *http.Client
}

func (p HTTPProber) Probe(ctx context.Context) bool {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 3 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return false
	}

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()

	return true
}
