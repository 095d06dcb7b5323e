// Package broker provides the client for the Session Broker, the
// backend service that exchanges a public agent identifier for an
// ephemeral upstream credential and the agent's session configuration.
// The engine treats the broker response as configuration input only.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/voicebridge-ai/voicebridge/realtime"
)

const (
	sessionsPathFormat = "/v1/agents/%s/sessions"
	contentTypeHeader  = "Content-Type"
	applicationJSON    = "application/json"

	defaultHTTPTimeout = 15 * time.Second

	// One credential fetch per two seconds with a small burst. Session
	// grants are per-conversation, not per-frame, so anything faster is a
	// retry loop gone wrong.
	defaultRateLimit = rate.Limit(0.5)
	defaultRateBurst = 3
)

// Client errors.
var (
	ErrAgentNotFound   = errors.New("agent not found")
	ErrSessionDenied   = errors.New("session denied")
	ErrBrokerTransport = errors.New("broker transport error")
)

// SessionGrant is the broker's response: an ephemeral credential plus
// the agent configuration the session should run with.
type SessionGrant struct {
	SessionToken string `json:"session_token"`
	Credential   string `json:"credential"`
	ExpiresAt    int64  `json:"expires_at"`

	Model        string  `json:"model"`
	Voice        string  `json:"voice"`
	Instructions string  `json:"instructions"`
	Temperature  float64 `json:"temperature,omitempty"`

	TurnDetection *realtime.TurnDetection `json:"turn_detection,omitempty"`
	Tools         []realtime.ToolDef      `json:"tools,omitempty"`

	Features FeatureFlags `json:"features"`
}

// FeatureFlags are the per-agent behavior toggles issued by the broker.
type FeatureFlags struct {
	GuardrailMode        bool `json:"guardrail_mode"`
	DisableInterruptions bool `json:"disable_interruptions"`
	DisableTurnDetection bool `json:"disable_turn_detection"`
	TextInput            bool `json:"text_input"`
}

// EngineConfig maps the grant onto an engine configuration. Credential,
// model, voice, and feature flags come from the grant; transport wiring
// (sink, dispatcher, bus) stays with the caller.
func (g *SessionGrant) EngineConfig() realtime.Config {
	return realtime.Config{
		Credential:           g.Credential,
		Model:                g.Model,
		Voice:                g.Voice,
		Instructions:         g.Instructions,
		Temperature:          g.Temperature,
		TurnDetection:        g.TurnDetection,
		Tools:                g.Tools,
		GuardrailMode:        g.Features.GuardrailMode,
		DisableInterruptions: g.Features.DisableInterruptions,
		DisableTurnDetection: g.Features.DisableTurnDetection,
	}
}

type sessionRequest struct {
	SessionToken string `json:"session_token"`
}

type brokerError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Client fetches session grants from the Session Broker. Requests are
// paced by a token-bucket limiter shared across goroutines.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit replaces the default request pacing.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(limit, burst) }
}

// NewClient creates a broker client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		limiter:    rate.NewLimiter(defaultRateLimit, defaultRateBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch requests a session grant for the given agent. An empty session
// token is replaced by a generated one; the broker echoes the token back
// so the caller can correlate the grant.
func (c *Client) Fetch(ctx context.Context, agentID, sessionToken string) (*SessionGrant, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agent ID is required")
	}
	if sessionToken == "" {
		sessionToken = uuid.NewString()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for request slot: %w", err)
	}

	body, err := json.Marshal(sessionRequest{SessionToken: sessionToken})
	if err != nil {
		return nil, fmt.Errorf("encoding session request: %w", err)
	}

	endpoint := c.baseURL + fmt.Sprintf(sessionsPathFormat, url.PathEscape(agentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building session request: %w", err)
	}
	req.Header.Set(contentTypeHeader, applicationJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrokerTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrBrokerTransport, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrSessionDenied, errorMessage(data))
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		return nil, fmt.Errorf("%w: status %d: %s", ErrBrokerTransport, resp.StatusCode, errorMessage(data))
	}

	var grant SessionGrant
	if err := json.Unmarshal(data, &grant); err != nil {
		return nil, fmt.Errorf("%w: decoding grant: %v", ErrBrokerTransport, err)
	}
	if grant.Credential == "" {
		return nil, fmt.Errorf("%w: grant carries no credential", ErrBrokerTransport)
	}
	if grant.SessionToken == "" {
		grant.SessionToken = sessionToken
	}
	return &grant, nil
}

func errorMessage(data []byte) string {
	var be brokerError
	if json.Unmarshal(data, &be) == nil && be.Error.Message != "" {
		return be.Error.Message
	}
	return string(data)
}
