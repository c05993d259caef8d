package graph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"social-publisher/domain/apperror"
	"social-publisher/domain/repository"
	"social-publisher/infrastructure/configuration"
	"social-publisher/infrastructure/logger"
	"social-publisher/infrastructure/metrics"
	"social-publisher/infrastructure/utils"
)

const maxResponseBytes = 4 << 20

// Options configures a Client. Zero values fall back to the publish defaults.
type Options struct {
	PrimaryHost   string
	SecondaryHost string // optional failover target for the generic OAuth exception
	Version       string // e.g. "v21.0"; empty means unversioned paths
	RetryDelays   []time.Duration
	MaxRetries    int
	// AttemptTimeout bounds a single HTTP attempt.
	AttemptTimeout time.Duration
	HTTPClient     *http.Client
	Clock          utils.Clock
	Metrics        *metrics.Metrics
}

// OptionsFromConfig builds options from the shared publish timing policy.
func OptionsFromConfig(primary, secondary, version string, cfg configuration.PublishConfig) Options {
	return Options{
		PrimaryHost:    primary,
		SecondaryHost:  secondary,
		Version:        version,
		RetryDelays:    cfg.RetryDelays,
		MaxRetries:     cfg.MaxRetries,
		AttemptTimeout: 30 * time.Second,
	}
}

// Client calls the Graph API with the retry ladder and single-shot host failover.
type Client struct {
	primary   string
	secondary string
	version   string
	delays    []time.Duration
	retries   int
	timeout   time.Duration
	http      *http.Client
	clock     utils.Clock
	metrics   *metrics.Metrics
}

var _ repository.IGraphAPI = (*Client)(nil)

func NewClient(opts Options) *Client {
	c := &Client{
		primary:   strings.TrimRight(opts.PrimaryHost, "/"),
		secondary: strings.TrimRight(opts.SecondaryHost, "/"),
		version:   strings.Trim(opts.Version, "/"),
		delays:    opts.RetryDelays,
		retries:   opts.MaxRetries,
		timeout:   opts.AttemptTimeout,
		http:      opts.HTTPClient,
		clock:     opts.Clock,
		metrics:   opts.Metrics,
	}
	if c.delays == nil {
		c.delays = configuration.DefaultPublishConfig().RetryDelays
	}
	if c.retries < 0 {
		c.retries = 0
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	if c.http == nil {
		c.http = NewHTTPClient()
	}
	if c.clock == nil {
		c.clock = utils.RealClock{}
	}
	return c
}

// NewHTTPClient returns the pooled client used for provider calls.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Call runs up to MaxRetries+1 attempts against the primary host. A generic OAuth
// exception on the very first attempt is replayed once on the secondary host
// without consuming a backoff slot. Non-transient errors return immediately.
func (c *Client) Call(ctx context.Context, step apperror.Step, method, path, token string, params url.Values) ([]byte, error) {
	var last *apperror.StructuredError
	failedOver := false
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := c.delay(attempt - 1)
			c.metrics.RecordGraphRetry(string(step))
			logger.GetLogger().WithField("step", step).WithField("attempt", attempt+1).
				WithField("delay", delay.String()).WithField("error", last.Error()).Warn("Retrying graph call")
			if err := c.clock.Sleep(ctx, delay); err != nil {
				last.Err = err
				return nil, last
			}
		}

		body, serr := c.attempt(ctx, c.primary, step, method, path, token, params)
		if serr == nil {
			return body, nil
		}
		if attempt == 0 && !failedOver && c.secondary != "" && isGenericOAuth(serr) {
			failedOver = true
			c.metrics.RecordGraphFailover(string(step))
			logger.GetLogger().WithField("step", step).WithField("host", c.secondary).Warn("Generic OAuth exception on primary host, failing over")
			body, serr = c.attempt(ctx, c.secondary, step, method, path, token, params)
			if serr == nil {
				return body, nil
			}
		}
		serr.Attempts = attempt + 1
		last = serr
		if !serr.Retryable() || ctx.Err() != nil {
			return nil, serr
		}
	}
	return nil, last
}

// CallOnce issues exactly one attempt on the primary host.
func (c *Client) CallOnce(ctx context.Context, step apperror.Step, method, path, token string, params url.Values) ([]byte, error) {
	body, serr := c.attempt(ctx, c.primary, step, method, path, token, params)
	if serr != nil {
		serr.Attempts = 1
		return nil, serr
	}
	return body, nil
}

func (c *Client) delay(retry int) time.Duration {
	if len(c.delays) == 0 {
		return 0
	}
	if retry >= len(c.delays) {
		retry = len(c.delays) - 1
	}
	return c.delays[retry]
}

func isGenericOAuth(se *apperror.StructuredError) bool {
	return se.Provider != nil && se.Provider.Code == CodeGenericOAuthException
}

func (c *Client) endpoint(host, path string) (*url.URL, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return url.Parse(path)
	}
	p := "/" + strings.TrimLeft(path, "/")
	if c.version != "" {
		p = "/" + c.version + p
	}
	return url.Parse(host + p)
}

func (c *Client) attempt(ctx context.Context, host string, step apperror.Step, method, path, token string, params url.Values) ([]byte, *apperror.StructuredError) {
	u, err := c.endpoint(host, path)
	if err != nil {
		return nil, &apperror.StructuredError{Kind: apperror.KindProviderFatal, Step: step, Message: "invalid request url", Err: err}
	}
	values := url.Values{}
	for k, v := range params {
		values[k] = append([]string(nil), v...)
	}
	if token != "" {
		values.Set("access_token", token)
	}
	shape := requestShape(method, u, values)

	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var req *http.Request
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(actx, method, u.String(), strings.NewReader(values.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		u.RawQuery = values.Encode()
		req, err = http.NewRequestWithContext(actx, method, u.String(), nil)
	}
	if err != nil {
		return nil, &apperror.StructuredError{Kind: apperror.KindProviderFatal, Step: step, Message: "cannot build request", Request: shape, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordGraphCall(string(step), u.Host, "network", time.Since(start).Seconds())
		return nil, networkError(step, shape, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.metrics.RecordGraphCall(string(step), u.Host, "network", time.Since(start).Seconds())
		return nil, networkError(step, shape, err)
	}

	if pe := parseProviderError(resp.StatusCode, body); pe != nil {
		serr := classify(step, pe, shape, values)
		outcome := "fatal"
		if serr.Kind == apperror.KindProviderTransient {
			outcome = "transient"
		}
		c.metrics.RecordGraphCall(string(step), u.Host, outcome, time.Since(start).Seconds())
		logger.GetLogger().WithField("step", step).WithField("host", u.Host).WithField("code", pe.Code).
			WithField("subcode", pe.Subcode).WithField("fbtrace_id", pe.TraceID).Info("Graph call returned provider error")
		return nil, serr
	}
	c.metrics.RecordGraphCall(string(step), u.Host, "ok", time.Since(start).Seconds())
	return body, nil
}

func networkError(step apperror.Step, shape *apperror.RequestShape, err error) *apperror.StructuredError {
	msg := "network error calling provider"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "provider call timed out"
	}
	return &apperror.StructuredError{
		Kind:    apperror.KindTimeout,
		Step:    step,
		Message: fmt.Sprintf("%s %s", msg, shape.Host),
		Request: shape,
		Err:     err,
	}
}
