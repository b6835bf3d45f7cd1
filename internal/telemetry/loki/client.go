// Package loki pushes identity-verified events consumed from Kafka to Grafana Loki.
package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hungle-ag/task-manager-server/internal/telemetry"
)

const (
	jobLabel    = "task-manager-auth"
	pushPath    = "/loki/api/v1/push"
	tenantHdr   = "X-Scope-OrgID"
	httpTimeout = 10 * time.Second
)

// PushRequest is the Loki v1 push body.
type PushRequest struct {
	Streams []Stream `json:"streams"`
}

// Stream is one label set and its [timestamp_ns, line] entries.
type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

var labelSanitize = regexp.MustCompile(`[^a-zA-Z0-9_\-:]`)

// Client pushes log lines to one Loki instance.
type Client struct {
	baseURL    string
	tenantID   string
	httpClient *http.Client
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithTenantID sets X-Scope-OrgID for multi-tenant Loki deployments.
func WithTenantID(id string) Option {
	return func(c *Client) { c.tenantID = strings.TrimSpace(id) }
}

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient returns a client for baseURL (e.g. http://localhost:3100).
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: httpTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// eventLabels keeps stream cardinality low: role, channel and provisioning only, never the user id.
func eventLabels(ev *telemetry.IdentityVerified) map[string]string {
	labels := map[string]string{"provisioned": strconv.FormatBool(ev.Provisioned)}
	if ev.EventType != "" {
		labels["event_type"] = ev.EventType
	}
	if ev.Role != "" {
		labels["role"] = ev.Role
	}
	if ev.Channel != "" {
		labels["channel"] = ev.Channel
	}
	return labels
}

// PushEventJSON pushes one Kafka message value. An IdentityVerified payload is labelled and stamped
// with its createdAt; anything else is pushed verbatim at the current time with the job label only.
func (c *Client) PushEventJSON(ctx context.Context, rawJSON []byte) error {
	var ev telemetry.IdentityVerified
	if err := json.Unmarshal(rawJSON, &ev); err != nil || ev.EventType == "" {
		return c.PushEvent(ctx, c.now().UTC(), string(rawJSON), nil)
	}
	ts := ev.CreatedAt
	if ts.IsZero() {
		ts = c.now().UTC()
	}
	return c.PushEvent(ctx, ts, string(rawJSON), eventLabels(&ev))
}

// PushEvent sends a single line. labels are sanitized and added next to job.
func (c *Client) PushEvent(ctx context.Context, timestamp time.Time, line string, labels map[string]string) error {
	if c.baseURL == "" {
		return fmt.Errorf("loki: base URL is empty")
	}
	streamLabels := map[string]string{"job": jobLabel}
	for k, v := range labels {
		if sanitized := labelSanitize.ReplaceAllString(strings.TrimSpace(v), "_"); sanitized != "" {
			streamLabels[k] = sanitized
		}
	}
	payload, err := json.Marshal(PushRequest{Streams: []Stream{{
		Stream: streamLabels,
		Values: [][]string{{strconv.FormatInt(timestamp.UnixNano(), 10), line}},
	}}})
	if err != nil {
		return fmt.Errorf("loki: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pushPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("loki: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.tenantID != "" {
		req.Header.Set(tenantHdr, c.tenantID)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("loki: push: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("loki: push returned %s", resp.Status)
	}
	return nil
}
