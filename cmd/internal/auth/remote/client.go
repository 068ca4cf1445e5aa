package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/EvertonHSP/Nuvem/cmd/internal/ids"
)

const (
	tracerName      = "github.com/EvertonHSP/Nuvem/remote"
	maxResponseBody = 1 << 20
)

// Client talks to the identity service. It is safe for concurrent use.
type Client struct {
	base      string
	hc        *http.Client
	userAgent string
	log       *slog.Logger
	tracer    trace.Tracer
	metrics   *clientMetrics
	now       func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client. Its Timeout is left as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithLogger replaces slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithRegisterer registers request metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Client) { c.metrics = newClientMetrics(reg) }
}

// New validates cfg and builds a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Client{
		base:      strings.TrimRight(cfg.BaseURL, "/"),
		hc:        &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		log:       slog.Default(),
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = newClientMetrics(nil)
	}
	if c.userAgent == "" {
		c.userAgent = DefaultConfig().UserAgent
	}
	return c, nil
}

// Register creates (or restarts) an unverified account and sends a code.
func (c *Client) Register(ctx context.Context, email, password, name string) (ChallengeResponse, error) {
	var out ChallengeResponse
	err := c.do(ctx, "register", http.MethodPost, "/auth/register", "",
		registerRequest{Email: email, Password: password, Name: name}, &out)
	return out, err
}

// VerifyRegister confirms a registration code and returns the new session.
func (c *Client) VerifyRegister(ctx context.Context, email, code string) (AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, "verify_register", http.MethodPost, "/auth/verify-register", "",
		verifyRequest{Email: email, Code: code}, &out)
	return out, err
}

// Login checks the password and sends a code.
func (c *Client) Login(ctx context.Context, email, password string) (ChallengeResponse, error) {
	var out ChallengeResponse
	err := c.do(ctx, "login", http.MethodPost, "/auth/login", "",
		loginRequest{Email: email, Password: password}, &out)
	return out, err
}

// VerifyLogin confirms a login code and returns the new session.
func (c *Client) VerifyLogin(ctx context.Context, email, code string) (AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, "verify_login", http.MethodPost, "/auth/verify-login", "",
		verifyRequest{Email: email, Code: code}, &out)
	return out, err
}

// Logout ends the server-side session for secret.
func (c *Client) Logout(ctx context.Context, secret string) error {
	return c.do(ctx, "logout", http.MethodPost, "/auth/logout", secret, nil, nil)
}

// GetProfile validates secret and returns the current profile.
func (c *Client) GetProfile(ctx context.Context, secret string) (Profile, error) {
	var out Profile
	err := c.do(ctx, "get_profile", http.MethodGet, "/auth/me", secret, nil, &out)
	return out, err
}

// RefreshToken exchanges secret for a new one.
func (c *Client) RefreshToken(ctx context.Context, secret string) (TokenResponse, error) {
	var out TokenResponse
	err := c.do(ctx, "refresh_token", http.MethodPost, "/auth/refresh", secret, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, op, method, path, secret string, in, out any) (err error) {
	start := c.now()
	requestID := ids.RequestID(start)
	opName := "remote." + op

	ctx, span := c.tracer.Start(ctx, opName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
			attribute.String("nuvem.request_id", requestID),
		),
	)
	status := 0
	defer func() {
		outcome := outcomeOf(err)
		c.metrics.requests.WithLabelValues(op, outcome).Inc()
		c.metrics.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())

		if status != 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", status))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()

		c.log.Debug("remote.request",
			"op", op,
			"request_id", requestID,
			"status", status,
			"outcome", outcome,
			"dur_ms", time.Since(start).Milliseconds(),
		)
	}()

	var body io.Reader
	if in != nil {
		b, mErr := json.Marshal(in)
		if mErr != nil {
			return OpError{Op: opName, Kind: ErrRequest, Msg: "encode body", Err: mErr}
		}
		body = bytes.NewReader(b)
	}

	req, rErr := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if rErr != nil {
		return OpError{Op: opName, Kind: ErrRequest, Err: rErr}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	if cErr := ctx.Err(); cErr != nil {
		return OpError{Op: opName, Kind: ErrRequest, Msg: "context done before send", Err: cErr}
	}

	resp, dErr := c.hc.Do(req)
	if dErr != nil {
		return OpError{Op: opName, Kind: ErrNetwork, Err: dErr}
	}
	defer func() { _ = resp.Body.Close() }()
	status = resp.StatusCode

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if readErr != nil {
		return OpError{Op: opName, Kind: ErrNetwork, Msg: "read body", Err: readErr}
	}

	if status == http.StatusUnauthorized {
		_, msg := parseErrorBody(raw)
		return OpError{Op: opName, Kind: ErrUnauthorized, Msg: msg}
	}
	if status < 200 || status > 299 {
		return newAPIError(opName, op, status, raw)
	}

	if out == nil {
		return nil
	}
	if uErr := json.Unmarshal(raw, out); uErr != nil {
		return OpError{Op: opName, Kind: ErrMalformedResponse, Err: uErr}
	}
	if v, ok := out.(validator); ok {
		if problem := v.validate(); problem != "" {
			return OpError{Op: opName, Kind: ErrMalformedResponse, Msg: problem}
		}
	}
	return nil
}

func newAPIError(opName, op string, status int, raw []byte) *APIError {
	code, msg := parseErrorBody(raw)
	if code == "" && (op == "verify_login" || op == "verify_register") {
		switch {
		case status == http.StatusNotFound:
			code = CodeChallengeNotFound
		case status == http.StatusBadRequest && isLegacyInvalidCode(msg):
			code = CodeInvalidCode
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Op: opName, Status: status, Code: code, Message: msg}
}

// parseErrorBody extracts a code and message from any of the error shapes
// the service has used. Unparseable bodies yield empty strings.
func parseErrorBody(raw []byte) (code, msg string) {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", ""
	}
	code, msg = body.Code, body.Message

	switch e := body.Error.(type) {
	case string:
		msg = e
	case map[string]any:
		if s, ok := e["code"].(string); ok && s != "" {
			code = s
		}
		if s, ok := e["message"].(string); ok && s != "" {
			msg = s
		}
	}
	return code, msg
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	if _, ok := AsAPIError(err); ok {
		return "api_error"
	}
	for _, k := range []struct {
		err  error
		name string
	}{
		{ErrUnauthorized, "unauthorized"},
		{ErrNetwork, "network"},
		{ErrRequest, "request"},
		{ErrMalformedResponse, "malformed"},
	} {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "other"
}
