// Package gateway is the client for the hosted relational store. It speaks
// the store's REST query surface and never lets raw transport errors escape
// its boundary: callers receive either data or a typed StoreError.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/construo/construo-server/internal/models"
)

const (
	// DefaultTimeout is the default timeout for store requests.
	DefaultTimeout = 10 * time.Second

	// ReadyTimeout bounds the startup wait for the store to become
	// reachable. Expiry leaves the client unavailable; every fetch then
	// fails with ErrUnavailable and callers fall back to cached data.
	ReadyTimeout = 15 * time.Second

	// MaxResponseSize caps response bodies read from the store (20MB).
	MaxResponseSize = 20 * 1024 * 1024

	userAgent = "construo-server/1.0"
)

// ErrUnavailable reports that the store handle never became ready or is
// administratively absent. Callers must treat it as "serve from cache".
var ErrUnavailable = errors.New("gateway: store unavailable")

// StoreError is a structured failure surfaced by the store.
type StoreError struct {
	Op         string
	Collection models.Collection
	StatusCode int
	Message    string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("gateway: %s %s: %s (status %d)", e.Op, e.Collection, e.Message, e.StatusCode)
}

// Filter is an equality constraint on a named column.
type Filter struct {
	Column string
	Value  string
}

// Order names the column the store sorts a fetch by.
type Order struct {
	Column     string
	Descending bool
}

// Store is the read/write surface consumed by the synchronization controller
// and the certificate tooling.
type Store interface {
	// SiteConfig retrieves the single configuration row by its fixed key.
	SiteConfig(ctx context.Context) (*models.SiteConfig, error)

	Events(ctx context.Context) ([]models.Event, error)
	Timeline(ctx context.Context) ([]models.TimelineEntry, error)
	Speakers(ctx context.Context) ([]models.Speaker, error)
	Sponsors(ctx context.Context) ([]models.Sponsor, error)
	Organizers(ctx context.Context) ([]models.Organizer, error)

	Registrations(ctx context.Context) ([]models.Registration, error)
	CreateRegistration(ctx context.Context, reg *models.Registration) (*models.Registration, error)
}

// Client talks to the hosted store over its REST surface.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *slog.Logger

	available atomic.Bool
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the client logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a store client for baseURL. The client starts unavailable;
// call WaitReady before the first fetch.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: DefaultTimeout},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WaitReady polls the store until it answers or the ready timeout expires.
// On expiry the client stays unavailable and every fetch returns
// ErrUnavailable; the caller is expected to continue on cached data.
func (c *Client) WaitReady(ctx context.Context) error {
	if c.baseURL == "" {
		return ErrUnavailable
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, c.ping(ctx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(ReadyTimeout),
	)
	if err != nil {
		c.log.Warn("store did not become ready, serving from cache only", "error", err)
		return ErrUnavailable
	}
	c.available.Store(true)
	return nil
}

// Available reports whether the store handle became ready.
func (c *Client) Available() bool {
	return c.available.Load()
}

func (c *Client) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	c.setHeaders(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("store returned %s", resp.Status)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// Select fetches rows from collection, applying equality filters and an
// optional ordering, and decodes them into out (a pointer to a slice).
func (c *Client) Select(ctx context.Context, collection models.Collection, filters []Filter, order *Order, out any) error {
	q := url.Values{}
	q.Set("select", "*")
	for _, f := range filters {
		q.Set(f.Column, "eq."+f.Value)
	}
	if order != nil {
		dir := "asc"
		if order.Descending {
			dir = "desc"
		}
		q.Set("order", order.Column+"."+dir)
	}

	body, err := c.do(ctx, http.MethodGet, collection, q, nil, "select")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &StoreError{Op: "select", Collection: collection, Message: "malformed response: " + err.Error()}
	}
	return nil
}

// GetByKey fetches the single row of collection whose column equals value.
// A missing row is reported as a StoreError with status 404.
func (c *Client) GetByKey(ctx context.Context, collection models.Collection, column, value string, out any) error {
	q := url.Values{}
	q.Set("select", "*")
	q.Set(column, "eq."+value)
	q.Set("limit", "1")

	body, err := c.do(ctx, http.MethodGet, collection, q, nil, "get")
	if err != nil {
		return err
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return &StoreError{Op: "get", Collection: collection, Message: "malformed response: " + err.Error()}
	}
	if len(rows) == 0 {
		return &StoreError{Op: "get", Collection: collection, StatusCode: http.StatusNotFound, Message: "row not found"}
	}
	if err := json.Unmarshal(rows[0], out); err != nil {
		return &StoreError{Op: "get", Collection: collection, Message: "malformed row: " + err.Error()}
	}
	return nil
}

// Insert persists record into collection and decodes the stored row,
// including server-assigned fields, into out.
func (c *Client) Insert(ctx context.Context, collection models.Collection, record, out any) error {
	return c.writeRow(ctx, http.MethodPost, collection, nil, record, out, "insert")
}

// Update applies partial to the row of collection whose column equals value
// and decodes the updated row into out.
func (c *Client) Update(ctx context.Context, collection models.Collection, column, value string, partial, out any) error {
	q := url.Values{}
	q.Set(column, "eq."+value)
	return c.writeRow(ctx, http.MethodPatch, collection, q, partial, out, "update")
}

// Delete removes the row of collection whose column equals value.
func (c *Client) Delete(ctx context.Context, collection models.Collection, column, value string) error {
	q := url.Values{}
	q.Set(column, "eq."+value)
	_, err := c.do(ctx, http.MethodDelete, collection, q, nil, "delete")
	return err
}

func (c *Client) writeRow(ctx context.Context, method string, collection models.Collection, q url.Values, record, out any, op string) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return &StoreError{Op: op, Collection: collection, Message: "encode record: " + err.Error()}
	}
	body, err := c.do(ctx, method, collection, q, payload, op)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	// The store answers writes with a one-row array.
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil || len(rows) == 0 {
		return &StoreError{Op: op, Collection: collection, Message: "store returned no row"}
	}
	if err := json.Unmarshal(rows[0], out); err != nil {
		return &StoreError{Op: op, Collection: collection, Message: "malformed row: " + err.Error()}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method string, collection models.Collection, q url.Values, payload []byte, op string) ([]byte, error) {
	if !c.available.Load() {
		return nil, ErrUnavailable
	}

	u := c.baseURL + "/rest/v1/" + string(collection)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, &StoreError{Op: op, Collection: collection, Message: err.Error()}
	}
	c.setHeaders(req)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost || method == http.MethodPatch {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &StoreError{Op: op, Collection: collection, Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, &StoreError{Op: op, Collection: collection, StatusCode: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StoreError{Op: op, Collection: collection, StatusCode: resp.StatusCode, Message: storeMessage(body, resp.Status)}
	}
	return body, nil
}

// storeMessage extracts the store's error message from an error body,
// falling back to the HTTP status line.
func storeMessage(body []byte, status string) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	return status
}
