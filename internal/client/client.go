// Package client is a Go client for the storefront read API. Reads are
// cached and deduplicated according to a CachePolicy; mutations bypass the
// cache and invalidate what they change.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"qazbazaar/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Revalidation selects what happens when a cached read is past its stale
// time but still within its cache time.
type Revalidation int

const (
	// RevalidateBlocking refetches before answering.
	RevalidateBlocking Revalidation = iota
	// RevalidateInBackground answers with the stale value and refreshes it
	// asynchronously.
	RevalidateInBackground
)

type CachePolicy struct {
	// StaleTime is how long a cached read is served without refetching.
	StaleTime time.Duration
	// CacheTime bounds how long an entry is kept at all.
	CacheTime time.Duration
	// ReadRetries is the number of extra attempts for a failed read.
	ReadRetries int
	// MutationRetries is the number of extra attempts for a failed write.
	MutationRetries int
	Revalidate      Revalidation
}

var DefaultPolicy = CachePolicy{
	StaleTime:       time.Minute,
	CacheTime:       5 * time.Minute,
	ReadRetries:     1,
	MutationRetries: 0,
	Revalidate:      RevalidateInBackground,
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: %d %s", e.Code, e.Message)
}

type entry struct {
	body    []byte
	fetched time.Time
}

type Client struct {
	base   *url.URL
	http   *http.Client
	policy CachePolicy
	now    func() time.Time

	group singleflight.Group
	mu    sync.Mutex
	cache map[string]entry
}

// New returns a client for the API rooted at baseURL. httpClient should
// carry a cookie jar when session-bound endpoints are used; nil means
// http.DefaultClient.
func New(baseURL string, httpClient *http.Client, policy CachePolicy) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: base url: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		base:   u,
		http:   httpClient,
		policy: policy,
		now:    time.Now,
		cache:  make(map[string]entry),
	}, nil
}

func (c *Client) Filters(ctx context.Context) (models.Filters, error) {
	var f models.Filters
	err := c.get(ctx, "/api/products/filters", nil, &f)
	return f, err
}

func (c *Client) Related(ctx context.Context, productID, categoryID uuid.UUID, limit int) ([]models.Product, error) {
	q := url.Values{}
	q.Set("productId", productID.String())
	q.Set("categoryId", categoryID.String())
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []models.Product
	err := c.get(ctx, "/api/products/related", q, &out)
	return out, err
}

func (c *Client) ShippingFees(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	q := url.Values{}
	q.Set("ids", strings.Join(parts, ","))

	var out struct {
		ShippingFees map[uuid.UUID]decimal.Decimal `json:"shippingFees"`
	}
	err := c.get(ctx, "/api/products/shipping", q, &out)
	return out.ShippingFees, err
}

func (c *Client) RecentlyViewed(ctx context.Context) ([]models.RecentView, error) {
	var out []models.RecentView
	err := c.get(ctx, "/api/recently-viewed", nil, &out)
	return out, err
}

func (c *Client) InWishlist(ctx context.Context, productID uuid.UUID) (bool, error) {
	q := url.Values{}
	q.Set("productId", productID.String())
	var out struct {
		InWishlist bool `json:"inWishlist"`
	}
	err := c.get(ctx, "/api/wishlist/check", q, &out)
	return out.InWishlist, err
}

func (c *Client) Addresses(ctx context.Context) ([]models.Address, error) {
	var out []models.Address
	err := c.get(ctx, "/api/addresses", nil, &out)
	return out, err
}

// SetDefaultAddress marks the address as default and drops cached address
// reads.
func (c *Client) SetDefaultAddress(ctx context.Context, addressID uuid.UUID) (models.Address, error) {
	var out models.Address
	err := c.mutate(ctx, "PATCH", "/api/addresses/"+addressID.String()+"/default", nil, &out, "/api/addresses")
	return out, err
}

// Invalidate drops every cached read whose path starts with prefix.
func (c *Client) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.cache {
		if strings.HasPrefix(k, prefix) {
			delete(c.cache, k)
		}
	}
}

func (c *Client) get(ctx context.Context, path string, q url.Values, dst any) error {
	key := path
	if len(q) > 0 {
		key += "?" + q.Encode()
	}

	c.mu.Lock()
	e, ok := c.cache[key]
	c.mu.Unlock()

	if ok {
		age := c.now().Sub(e.fetched)
		switch {
		case age < c.policy.StaleTime:
			return json.Unmarshal(e.body, dst)
		case age < c.policy.CacheTime && c.policy.Revalidate == RevalidateInBackground:
			go c.fetch(context.WithoutCancel(ctx), key)
			return json.Unmarshal(e.body, dst)
		}
	}

	body, err := c.fetch(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dst)
}

// fetch performs one deduplicated GET for key and stores the result.
func (c *Client) fetch(ctx context.Context, key string) ([]byte, error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		body, err := c.doWithRetry(ctx, http.MethodGet, key, nil, c.policy.ReadRetries)
		if err != nil {
			return nil, err
		}
		c.store(key, body)
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// store caches body under key and drops entries that can no longer be
// served.
func (c *Client) store(key string, body []byte) {
	now := c.now()
	ttl := max(c.policy.StaleTime, c.policy.CacheTime)

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.cache {
		if now.Sub(e.fetched) >= ttl {
			delete(c.cache, k)
		}
	}
	c.cache[key] = entry{body: body, fetched: now}
}

func (c *Client) mutate(ctx context.Context, method, path string, payload, dst any, invalidate ...string) error {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return err
		}
	}
	resp, err := c.doWithRetry(ctx, method, path, body, c.policy.MutationRetries)
	if err != nil {
		return err
	}
	for _, prefix := range invalidate {
		c.Invalidate(prefix)
	}
	if dst == nil || len(resp) == 0 {
		return nil
	}
	return json.Unmarshal(resp, dst)
}

func (c *Client) doWithRetry(ctx context.Context, method, path string, body []byte, retries int) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		resp, err := c.do(ctx, method, path, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	return true
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return nil, &StatusError{Code: resp.StatusCode, Message: msg}
	}
	return data, nil
}
