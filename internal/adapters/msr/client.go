// Package msr is a signed client for the MotorsportReg REST API.
package msr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/hpde-analytics/internal/adapters/oauth"
	"github.com/okian/hpde-analytics/internal/domain/model"
	"github.com/okian/hpde-analytics/pkg/logger"
	"github.com/okian/hpde-analytics/pkg/metrics"
)

// Request defaults.
const (
	AcceptHeader       = "application/vnd.pukkasoft+json"
	OrganizationHeader = "X-Organization-Id"

	defaultMaxAttempts    = 3
	defaultBaseDelay      = time.Second
	defaultRequestTimeout = 30 * time.Second
	maxPages              = 1000
	maxErrorBody          = 512
)

// TokenSource provides the stored access token and drops it once the API
// rejects it.
type TokenSource interface {
	Load(ctx context.Context) (model.TokenPair, error)
	Clear(ctx context.Context) error
}

// Client issues signed, retried GET requests. Calls are sequential; the
// Client holds no per-request state and may be reused.
type Client struct {
	creds          model.Credentials
	baseURL        string
	tokens         TokenSource
	http           *http.Client
	orgID          string
	maxAttempts    int
	baseDelay      time.Duration
	requestTimeout time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
	logger         logger.Logger
	now            func() time.Time
}

// New returns a client for creds that signs with tokens from tokens.
func New(creds model.Credentials, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		creds:          creds,
		baseURL:        strings.TrimRight(creds.BaseURL, "/"),
		tokens:         tokens,
		http:           &http.Client{},
		maxAttempts:    defaultMaxAttempts,
		baseDelay:      defaultBaseDelay,
		requestTimeout: defaultRequestTimeout,
		sleep:          sleepContext,
		logger:         logger.Get().Named("msr"),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call is one logical request: a resource path plus how to authenticate.
type call struct {
	resource model.Resource
	path     string
	query    url.Values
	orgID    string
	token    *model.TokenPair // explicit token; nil means load from the store
}

// getJSON performs c with retries and returns the unwrapped response object.
func (c *Client) getJSON(ctx context.Context, cl call) (map[string]any, error) {
	tok, fromStore, err := c.token(ctx, cl)
	if err != nil {
		return nil, c.surface(err)
	}

	var last *Error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.baseDelay * time.Duration(1<<(attempt-2))
			metrics.RecordAPIRetry(string(cl.resource))
			c.logger.Warn(ctx, "retrying request",
				logger.String("resource", string(cl.resource)),
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Error(last))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, c.surface(&Error{Kind: KindTransient, Resource: string(cl.resource), Message: "interrupted during backoff", Err: err})
			}
		}

		body, status, err := c.exchange(ctx, cl, tok)
		switch {
		case errors.Is(err, oauth.ErrSigningFailure):
			return nil, c.surface(&Error{Kind: KindClientError, Resource: string(cl.resource), Err: err})
		case err != nil:
			last = &Error{Kind: KindTransient, Resource: string(cl.resource), Err: err}
			if ctx.Err() != nil {
				return nil, c.surface(last)
			}
			continue
		case status >= 200 && status < 300:
			doc, err := decodeEnvelope(cl.resource, body)
			if err != nil {
				return nil, c.surface(err)
			}
			return doc, nil
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			if fromStore {
				if cerr := c.tokens.Clear(ctx); cerr != nil {
					c.logger.Error(ctx, "failed to clear rejected token", logger.Error(cerr))
				}
			}
			return nil, c.surface(&Error{Kind: KindAuthExpired, Status: status, Resource: string(cl.resource), Message: snippet(body)})
		case status == http.StatusTooManyRequests:
			return nil, c.surface(&Error{Kind: KindRateLimited, Status: status, Resource: string(cl.resource), Message: snippet(body)})
		case status >= 500:
			last = &Error{Kind: KindServerError, Status: status, Resource: string(cl.resource), Message: snippet(body)}
			continue
		default:
			return nil, c.surface(&Error{Kind: KindClientError, Status: status, Resource: string(cl.resource), Message: snippet(body)})
		}
	}
	return nil, c.surface(last)
}

func (c *Client) token(ctx context.Context, cl call) (tok model.TokenPair, fromStore bool, err error) {
	if cl.token != nil {
		return *cl.token, false, nil
	}
	tok, err = c.tokens.Load(ctx)
	if err != nil || tok.Empty() {
		return model.TokenPair{}, false, &Error{
			Kind:     KindAuthExpired,
			Resource: string(cl.resource),
			Message:  "no stored access token, run --auth",
			Err:      err,
		}
	}
	return tok, true, nil
}

// exchange sends one signed request and reads the full body.
func (c *Client) exchange(ctx context.Context, cl call, tok model.TokenPair) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	endpoint := c.baseURL + cl.path
	if len(cl.query) > 0 {
		endpoint += "?" + cl.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	signed, err := oauth.SignedClient(ctx, c.creds, c.http, tok)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", AcceptHeader)
	if cl.orgID != "" {
		req.Header.Set(OrganizationHeader, cl.orgID)
	}

	start := time.Now()
	resp, err := signed.Do(req)
	if err != nil {
		metrics.RecordAPIRequest(string(cl.resource), 0, time.Since(start).Seconds())
		return nil, 0, fmt.Errorf("GET %s: %w", cl.path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	metrics.RecordAPIRequest(string(cl.resource), resp.StatusCode, time.Since(start).Seconds())
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", cl.path, err)
	}
	c.logger.Debug(ctx, "api response",
		logger.String("path", cl.path),
		logger.Int("status", resp.StatusCode),
		logger.Int("bytes", len(body)))
	return body, resp.StatusCode, nil
}

// surface logs and counts an error returned to the caller.
func (c *Client) surface(err error) error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		metrics.RecordAPIError(apiErr.metricKind())
	}
	return err
}

// decodeEnvelope parses the body and unwraps {"response": {...}}.
func decodeEnvelope(res model.Resource, body []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &Error{Kind: KindClientError, Resource: string(res), Message: "response is not a JSON object", Err: err}
	}
	if inner, ok := doc["response"].(map[string]any); ok {
		return inner, nil
	}
	return doc, nil
}

// list drains every page of a list resource.
func (c *Client) list(ctx context.Context, cl call) (model.RawSet, error) {
	set := model.RawSet{Resource: cl.resource}
	key := cl.resource.ListKey()

	for page := 1; page <= maxPages; page++ {
		pageCall := cl
		if page > 1 {
			pageCall.query = withPage(cl.query, page)
		}
		doc, err := c.getJSON(ctx, pageCall)
		if err != nil {
			return model.RawSet{}, err
		}

		set.Records = append(set.Records, records(doc[key])...)
		if page == 1 {
			set.Envelope = envelope(doc, key)
		}
		if pages := pageCount(doc); page >= pages {
			break
		}
	}
	set.FetchedAt = c.now().UTC()
	c.logger.Info(ctx, "fetched resource",
		logger.String("resource", string(cl.resource)),
		logger.Int("records", set.Len()))
	return set, nil
}

// object fetches a single-object resource.
func (c *Client) object(ctx context.Context, cl call) (model.RawSet, error) {
	doc, err := c.getJSON(ctx, cl)
	if err != nil {
		return model.RawSet{}, err
	}
	return model.RawSet{Resource: cl.resource, Envelope: doc, FetchedAt: c.now().UTC()}, nil
}

func withPage(q url.Values, page int) url.Values {
	out := url.Values{}
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	out.Set("page", strconv.Itoa(page))
	return out
}

// records converts a decoded JSON array into records. Non-object items are
// dropped.
func records(v any) []model.RawRecord {
	items, _ := v.([]any)
	out := make([]model.RawRecord, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			out = append(out, model.RawRecord(m))
		}
	}
	return out
}

// envelope returns doc without the list and paging keys.
func envelope(doc map[string]any, key string) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == key || k == "recordset" {
			continue
		}
		out[k] = v
	}
	return out
}

// pageCount reads recordset.pages; responses without one are single-page.
func pageCount(doc map[string]any) int {
	rs, ok := doc["recordset"].(map[string]any)
	if !ok {
		return 1
	}
	switch t := rs["pages"].(type) {
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(t)
		if err == nil {
			return n
		}
	}
	return 1
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
