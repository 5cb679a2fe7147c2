package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/tidwall/gjson"

	"roadsync/internal/report"
)

const (
	feedReconnectMin = 1 * time.Second
	feedReconnectMax = 60 * time.Second
)

// RESTGateway is the relational-API backend. Responses are wrapped in
// an envelope with explicit success/failure; the change feed is a
// WebSocket push stream.
type RESTGateway struct {
	httpClient *http.Client
	baseURL    string
	feedURL    string
	logger     *slog.Logger
}

// NewRESTGateway creates the REST adapter. If httpClient is nil,
// http.DefaultClient is used. feedURL may be empty when the deployment
// has no push feed; WatchByOwner then fails fast.
func NewRESTGateway(baseURL, feedURL string, httpClient *http.Client, logger *slog.Logger) *RESTGateway {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &RESTGateway{
		httpClient: httpClient,
		baseURL:    baseURL,
		feedURL:    feedURL,
		logger:     logger,
	}
}

// envelope is the wire wrapper every REST response arrives in.
type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// restReport is the wire shape of one record. Timestamps are decoded
// loosely because deployments disagree on epoch millis vs ISO strings.
type restReport struct {
	ID          string   `json:"id"`
	OwnerID     string   `json:"ownerId"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	PhotoURL    string   `json:"photoUrl"`
	Status      string   `json:"status"`
	AreaM2      *float64 `json:"area_m2"`
	Budget      *float64 `json:"budget"`
	Company     *string  `json:"company"`
	CreatedAt   any      `json:"createdAt"`
	UpdatedAt   any      `json:"updatedAt"`
	ClientToken string   `json:"clientToken"`
}

func (w restReport) normalize() report.RemoteReport {
	category := report.Category(w.Category)
	if category == "" {
		category = report.CategoryOther
	}

	return report.RemoteReport{
		RemoteID:    w.ID,
		OwnerID:     w.OwnerID,
		Latitude:    w.Latitude,
		Longitude:   w.Longitude,
		Description: w.Description,
		Category:    category,
		PhotoURL:    w.PhotoURL,
		Status:      report.ParseStatus(w.Status),
		AreaM2:      w.AreaM2,
		Budget:      w.Budget,
		Company:     w.Company,
		CreatedAt:   report.MillisFromAny(w.CreatedAt),
		UpdatedAt:   report.MillisFromAny(w.UpdatedAt),
		ClientToken: w.ClientToken,
	}
}

// do sends one request and decodes the envelope into result. A
// validation-shaped failure (400 or 422) maps to ErrRejected; anything
// else stays an opaque transient error for the orchestrator to retry.
func (g *RESTGateway) do(ctx context.Context, method, endpoint string, body any, header http.Header, result any) error {
	var reqBody io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request body: %w", err)
		}

		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response from %s: %w", endpoint, err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		if resp.StatusCode >= 300 {
			return fmt.Errorf("API %s returned status %d: %s", endpoint, resp.StatusCode, respBody)
		}

		return fmt.Errorf("decoding envelope from %s: %w", endpoint, err)
	}

	if !env.OK || resp.StatusCode >= 300 {
		msg := env.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}

		// Only validation-shaped statuses are a verdict on the payload
		// itself. Auth failures, rate limits and everything else say
		// nothing about the report, so they stay transient and the
		// entry stays queued.
		if resp.StatusCode == http.StatusBadRequest ||
			resp.StatusCode == http.StatusUnprocessableEntity {
			return fmt.Errorf("%w: %s %s: %s", ErrRejected, method, endpoint, msg)
		}

		return fmt.Errorf("API %s %s: %s", method, endpoint, msg)
	}

	if result != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return fmt.Errorf("decoding response from %s: %w", endpoint, err)
		}
	}

	return nil
}

// Create posts the report, forwarding the client token as an
// idempotency key so a retried drain cannot double-create on servers
// that honor it.
func (g *RESTGateway) Create(ctx context.Context, r report.RemoteReport) (string, error) {
	body := map[string]any{
		"ownerId":     r.OwnerID,
		"latitude":    r.Latitude,
		"longitude":   r.Longitude,
		"description": r.Description,
		"category":    string(r.Category),
		"photoUrl":    nullable(r.PhotoURL),
		"status":      report.StatusNew.String(),
	}

	header := http.Header{}
	if r.ClientToken != "" {
		header.Set("Idempotency-Key", r.ClientToken)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := g.do(ctx, http.MethodPost, "/reports", body, header, &created); err != nil {
		return "", fmt.Errorf("creating report: %w", err)
	}

	return created.ID, nil
}

// ListAll returns every report.
func (g *RESTGateway) ListAll(ctx context.Context) ([]report.RemoteReport, error) {
	return g.list(ctx, "/reports")
}

// ListByOwner returns the owner's reports.
func (g *RESTGateway) ListByOwner(ctx context.Context, ownerID string) ([]report.RemoteReport, error) {
	return g.list(ctx, "/reports?ownerId="+url.QueryEscape(ownerID))
}

func (g *RESTGateway) list(ctx context.Context, endpoint string) ([]report.RemoteReport, error) {
	var wire []restReport
	if err := g.do(ctx, http.MethodGet, endpoint, nil, nil, &wire); err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}

	reports := make([]report.RemoteReport, 0, len(wire))
	for _, w := range wire {
		reports = append(reports, w.normalize())
	}

	return reports, nil
}

// UpdateStatus patches a report's lifecycle stage.
func (g *RESTGateway) UpdateStatus(ctx context.Context, id string, status report.Status) error {
	body := map[string]string{"status": status.String()}

	endpoint := "/reports/" + url.PathEscape(id)
	if err := g.do(ctx, http.MethodPatch, endpoint, body, nil, nil); err != nil {
		return fmt.Errorf("updating status: %w", err)
	}

	return nil
}

// WatchByOwner consumes the WebSocket push feed, reconnecting with
// capped exponential backoff until ctx is cancelled.
func (g *RESTGateway) WatchByOwner(ctx context.Context, ownerID string, handler func(ChangeEvent)) error {
	if g.feedURL == "" {
		return fmt.Errorf("no change feed configured")
	}

	feedURL := g.feedURL + "?ownerId=" + url.QueryEscape(ownerID)
	backoff := feedReconnectMin

	for {
		err := g.consumeFeed(ctx, feedURL, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		g.logger.Warn("change feed lost, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("backoff", backoff),
		)

		jitter := time.Duration(rand.Int64N(int64(backoff) / 2))
		timer := time.NewTimer(backoff + jitter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff = min(backoff*2, feedReconnectMax)
	}
}

// consumeFeed reads frames from one feed connection until it drops.
func (g *RESTGateway) consumeFeed(ctx context.Context, feedURL string, handler func(ChangeEvent)) error {
	conn, _, err := websocket.Dial(ctx, feedURL, nil)
	if err != nil {
		return fmt.Errorf("dialling feed: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	g.logger.Info("change feed connected")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("reading feed frame: %w", err)
		}

		evType := gjson.GetBytes(data, "type").Str
		if evType == "" {
			// Heartbeats and unknown frames are ignored.
			continue
		}

		var frame struct {
			Type   string     `json:"type"`
			Record restReport `json:"record"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			g.logger.Warn("undecodable feed frame", slog.String("error", err.Error()))
			continue
		}

		switch EventType(frame.Type) {
		case EventAdded, EventModified, EventRemoved:
			handler(ChangeEvent{Type: EventType(frame.Type), Report: frame.Record.normalize()})
		default:
			g.logger.Debug("unknown feed event", slog.String("type", frame.Type))
		}
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}

	return s
}
