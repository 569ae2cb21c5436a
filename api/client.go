package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"court-desk/logging"
	"court-desk/metrics"
)

// RequestEditorFn mutates an outgoing request, e.g. to add the bearer token.
type RequestEditorFn func(ctx context.Context, req *http.Request) error

// DefaultRatePerSec applies when Config.RatePerSec is not positive.
const DefaultRatePerSec = 5

type Config struct {
	BaseURL    string
	APIKey     string
	AdminToken string
	Timeout    time.Duration
	RatePerSec float64
}

// CatalogCache is the read cache for courts and equipment.
type CatalogCache interface {
	GetCatalog(ctx context.Context, name string, out any) (bool, error)
	SaveCatalog(ctx context.Context, name string, v any) error
	InvalidateCatalog(ctx context.Context, name string) error
}

type Client struct {
	baseURL    string
	apiKey     string
	adminToken string
	http       *http.Client
	limiter    *rate.Limiter
	editors    []RequestEditorFn
	cache      CatalogCache
}

func NewClient(cfg Config, cache CatalogCache, editors ...RequestEditorFn) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ratePerSec := cfg.RatePerSec
	if ratePerSec <= 0 {
		ratePerSec = DefaultRatePerSec
	}
	burst := int(ratePerSec)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		adminToken: cfg.AdminToken,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
		editors: editors,
		cache:   cache,
	}
}

type call struct {
	endpoint string
	method   string
	path     string
	query    url.Values
	body     any
	admin    bool
}

// do sends one request and decodes the envelope payload into out (when out is non-nil
// and the payload is present). It never retries.
func (c *Client) do(ctx context.Context, rc call, out any) error {
	log := logging.FromContext(ctx).WithFields(logrus.Fields{
		"endpoint": rc.endpoint,
		"method":   rc.method,
	})

	outcome := "ok"
	defer func() {
		metrics.APIRequests.WithLabelValues(rc.endpoint, outcome).Inc()
	}()

	req, err := c.newRequest(ctx, rc)
	if err != nil {
		outcome = "invalid_request"
		return err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		outcome = "unreachable"
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		outcome = "unreachable"
		log.WithError(err).Warn("backend request failed")
		return fmt.Errorf("%w: %s %s: %v", ErrUnreachable, rc.method, rc.path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		outcome = "unreachable"
		return fmt.Errorf("%w: reading body: %v", ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = "http_error"
		remark := ""
		if env, err := decodeEnvelope(body); err == nil {
			remark = env.Text()
		}
		log.WithField("status", resp.StatusCode).Warn("backend returned error status")
		return newHTTPError(resp.StatusCode, remark)
	}

	env, err := decodeEnvelope(body)
	if err != nil {
		outcome = "malformed"
		log.WithError(err).Error("backend contract violation")
		return err
	}
	if !env.OK() {
		outcome = "app_error"
		return &AppError{Remark: env.Text()}
	}

	if out == nil || !env.hasPayload() {
		return nil
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		outcome = "malformed"
		log.WithError(err).Error("backend payload has unexpected shape")
		return fmt.Errorf("%w: %s payload: %v", ErrMalformedResponse, rc.endpoint, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, rc call) (*http.Request, error) {
	u := c.baseURL + rc.path
	if len(rc.query) > 0 {
		u += "?" + rc.query.Encode()
	}

	var body io.Reader
	if rc.body != nil {
		data, err := json.Marshal(rc.body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s body: %w", rc.endpoint, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, rc.method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if rc.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	correlationID := logging.CorrelationIDFromContext(ctx)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	req.Header.Set("X-Correlation-ID", correlationID)

	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if rc.admin && c.adminToken != "" {
		req.Header.Set("X-Admin-Token", c.adminToken)
	}

	for _, edit := range c.editors {
		if err := edit(ctx, req); err != nil {
			return nil, err
		}
	}
	return req, nil
}

func idQuery(id string) url.Values {
	return url.Values{"id": []string{id}}
}

// normalizeTime brings backend times to "HH:MM": "9:0" -> "09:00", "09:00:00" -> "09:00".
func normalizeTime(t string) string {
	parts := strings.Split(strings.TrimSpace(t), ":")
	if len(parts) < 2 {
		return t
	}

	hour := parts[0]
	minute := parts[1]

	if len(hour) == 1 {
		hour = "0" + hour
	}
	if len(minute) == 1 {
		minute = "0" + minute
	}

	return hour + ":" + minute
}
