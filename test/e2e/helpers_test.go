package e2e_test

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"roadsync/internal/connectivity"
	"roadsync/internal/gateway"
	"roadsync/internal/media"
	"roadsync/internal/queue"
	"roadsync/internal/syncer"
)

const testOwner = "e2e-user"

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// storedReport is what the fake backend keeps per accepted create.
type storedReport struct {
	ID          string  `json:"id"`
	OwnerID     string  `json:"ownerId"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	PhotoURL    *string `json:"photoUrl"`
	Status      string  `json:"status"`
	ClientToken string  `json:"clientToken"`
	CreatedAt   int64   `json:"createdAt"`
	UpdatedAt   int64   `json:"updatedAt"`
}

// fakeBackend implements just enough of the reports API for the full
// stack to run against: enveloped responses, idempotency keys, and
// switchable outage/rejection behavior.
type fakeBackend struct {
	mu           sync.Mutex
	stored       []storedReport
	byToken      map[string]string
	nextID       int
	failing      bool
	rejecting    bool
	unauthorized bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{byToken: make(map[string]string)}
}

func (b *fakeBackend) setFailing(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failing = v
}

func (b *fakeBackend) setRejecting(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejecting = v
}

func (b *fakeBackend) setUnauthorized(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unauthorized = v
}

func (b *fakeBackend) records() []storedReport {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]storedReport(nil), b.stored...)
}

func writeEnvelope(w http.ResponseWriter, status int, ok bool, data any, errMsg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	env := map[string]any{"ok": ok}
	if data != nil {
		env["data"] = data
	}
	if errMsg != "" {
		env["error"] = errMsg
	}

	_ = json.NewEncoder(w).Encode(env)
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /reports", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.failing {
			writeEnvelope(w, http.StatusBadGateway, false, nil, "upstream down")
			return
		}

		if b.unauthorized {
			writeEnvelope(w, http.StatusUnauthorized, false, nil, "token expired")
			return
		}

		if b.rejecting {
			writeEnvelope(w, http.StatusUnprocessableEntity, false, nil, "validation failed")
			return
		}

		var body storedReport
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeEnvelope(w, http.StatusBadRequest, false, nil, "bad json")
			return
		}

		token := r.Header.Get("Idempotency-Key")
		if token != "" {
			if id, seen := b.byToken[token]; seen {
				writeEnvelope(w, http.StatusOK, true, map[string]string{"id": id}, "")
				return
			}
		}

		b.nextID++
		body.ID = fmt.Sprintf("srv-%d", b.nextID)
		body.ClientToken = token
		b.stored = append(b.stored, body)

		if token != "" {
			b.byToken[token] = body.ID
		}

		writeEnvelope(w, http.StatusOK, true, map[string]string{"id": body.ID}, "")
	})

	mux.HandleFunc("GET /reports", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.failing {
			writeEnvelope(w, http.StatusBadGateway, false, nil, "upstream down")
			return
		}

		records := b.stored
		if owner := r.URL.Query().Get("ownerId"); owner != "" {
			records = nil
			for _, rec := range b.stored {
				if rec.OwnerID == owner {
					records = append(records, rec)
				}
			}
		}

		if records == nil {
			records = []storedReport{}
		}

		writeEnvelope(w, http.StatusOK, true, records, "")
	})

	return mux
}

// harness wires the real stack against the fake backend: durable
// queue, REST gateway, connectivity monitor and orchestrator.
type harness struct {
	backend *fakeBackend
	store   *queue.Store
	gw      *gateway.RESTGateway
	monitor *connectivity.Monitor
	orch    *syncer.Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	backend := newFakeBackend()
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)

	store, err := queue.OpenAt(filepath.Join(t.TempDir(), "queue.db"), testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	gw := gateway.NewRESTGateway(server.URL, "", nil, testLogger)
	monitor := connectivity.NewMonitor(testLogger)

	return &harness{
		backend: backend,
		store:   store,
		gw:      gw,
		monitor: monitor,
		orch:    syncer.New(store, gw, media.Disabled{}, monitor, testLogger),
	}
}
