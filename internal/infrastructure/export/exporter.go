// Package export is the boundary to an external experiment-tracking sink.
// Export is strictly fire-and-forget: failures are logged, swallowed, and
// never escalated to the request path. No delivery guarantees.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/edupulse/edupulse-insights/internal/domain/shared"
	"github.com/edupulse/edupulse-insights/pkg/logger"
)

// emitTimeout is the max time allowed for a single async emit.
const emitTimeout = 5 * time.Second

// Exporter sends a domain-event payload to the external sink.
type Exporter interface {
	Emit(ctx context.Context, eventType string, payload map[string]any) error
}

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is
// never blocked. The goroutine uses context.Background so request
// cancellation does not abort an in-flight emit.
func EmitAsync(exporter Exporter, log *logger.Logger, event shared.Event) {
	if exporter == nil || event == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := exporter.Emit(ctx, string(event.EventType()), event.Payload()); err != nil {
			log.Warn("metrics export failed", logger.Err(err),
				logger.String("export_event", string(event.EventType())))
		}
	}()
}

// HTTPExporter posts JSON envelopes to a metrics collector endpoint.
type HTTPExporter struct {
	url    string
	token  string
	client *http.Client
}

// NewHTTPExporter creates an exporter targeting the given URL. An empty token
// sends unauthenticated requests.
func NewHTTPExporter(url, token string) *HTTPExporter {
	return &HTTPExporter{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: emitTimeout},
	}
}

// Emit implements Exporter.
func (e *HTTPExporter) Emit(ctx context.Context, eventType string, payload map[string]any) error {
	body, err := json.Marshal(map[string]any{
		"event":   eventType,
		"payload": payload,
		"sent_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("export: collector returned %s", resp.Status)
	}
	return nil
}

// NopExporter discards everything. Used when no sink is configured.
type NopExporter struct{}

// Emit implements Exporter.
func (NopExporter) Emit(context.Context, string, map[string]any) error { return nil }
