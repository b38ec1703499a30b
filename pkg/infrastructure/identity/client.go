package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/civicpulse/platform-token/pkg/helpers"
	"github.com/civicpulse/platform-token/pkg/models"
)

const (
	userPath  = "/auth/v1/user"
	tokenPath = "/auth/v1/token"

	// responses above this size are treated as a provider failure
	maxBodyBytes = 1 << 20
)

// Client talks to a GoTrue-compatible identity provider. It makes exactly
// one HTTP call per operation and never retries.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Logger
	tracer     trace.TracerProvider
}

// NewClient builds a provider client. baseURL is the project URL without
// a trailing slash; apiKey is sent as the apikey header on every call.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *logrus.Logger, tracer trace.TracerProvider) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport, otelhttp.WithTracerProvider(tracer)),
		},
		logger: logger,
		tracer: tracer,
	}
}

func (c *Client) trace(ctx context.Context, operation string) (context.Context, trace.Span) {
	tracer := c.tracer.Tracer("identity.client")
	return tracer.Start(ctx, fmt.Sprintf("identity.%s", operation))
}

// GetUser resolves the user owning accessToken.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*models.ProviderUser, error) {
	ctx, span := c.trace(ctx, "get_user")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+userPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var user models.ProviderUser
	if err := c.do(req, span, false, &user); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("identity.user_id", user.ID))
	span.SetStatus(codes.Ok, "user resolved")
	return &user, nil
}

type pkceRequest struct {
	AuthCode     string `json:"auth_code"`
	CodeVerifier string `json:"code_verifier,omitempty"`
}

// ExchangeCodeForSession redeems an authorization code through the PKCE grant.
func (c *Client) ExchangeCodeForSession(ctx context.Context, authCode, codeVerifier string) (*models.ProviderSession, error) {
	ctx, span := c.trace(ctx, "exchange_code")
	defer span.End()

	body, err := json.Marshal(pkceRequest{AuthCode: authCode, CodeVerifier: codeVerifier})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal code exchange request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath+"?grant_type=pkce", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build code exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var session models.ProviderSession
	if err := c.do(req, span, true, &session); err != nil {
		return nil, err
	}

	span.SetStatus(codes.Ok, "code exchanged")
	return &session, nil
}

func (c *Client) do(req *http.Request, span trace.Span, secretBody bool, out any) error {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	if c.logger.IsLevelEnabled(logrus.DebugLevel) {
		if curl, err := helpers.CurlCommand(req, secretBody, "apikey", "authorization"); err == nil {
			c.logger.Debugf("Identity provider request: %s", curl)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Errorf("Identity provider request failed: path=%s, error=%s", req.URL.Path, err.Error())
		return fmt.Errorf("identity provider request failed: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to read identity provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		providerErr := parseError(resp.StatusCode, raw)
		span.RecordError(providerErr)
		span.SetStatus(codes.Error, providerErr.Message)
		c.logger.Warnf("Identity provider rejected request: path=%s, status=%d, code=%s, message=%s",
			req.URL.Path, resp.StatusCode, providerErr.Name, providerErr.Message)
		return providerErr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to decode identity provider response: %w", err)
	}
	return nil
}

// errorBody covers both the current and the legacy GoTrue error shapes.
type errorBody struct {
	ErrorCode        string `json:"error_code"`
	Error            string `json:"error"`
	Msg              string `json:"msg"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"message"`
}

func parseError(status int, raw []byte) *models.ProviderError {
	perr := &models.ProviderError{Status: status}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		perr.Name = firstNonEmpty(body.ErrorCode, body.Error)
		perr.Message = firstNonEmpty(body.Msg, body.ErrorDescription, body.Message, body.Error)
	}
	if perr.Message == "" {
		perr.Message = http.StatusText(status)
	}
	return perr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
