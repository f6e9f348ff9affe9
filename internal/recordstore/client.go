package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/example/taxi-admin/internal/observability"
)

// Collection names as defined by the remote record store. The store owns
// the schema; the misspelling of commitions is its, not ours.
const (
	CollectionHire          = "hire"
	CollectionDriver        = "driver"
	CollectionCustomer      = "customer"
	CollectionRequestHandle = "request_handle"
	CollectionVehicle       = "vehicle"
	CollectionCommissions   = "commitions"
	CollectionVehicleTypes  = "vehicle_types"
	CollectionVehicleModels = "vehicle_models"
)

// DefaultPageSize is the page size used when a caller does not pick one.
const DefaultPageSize = 100

// Client talks to the external collection-based record store. It holds no
// state beyond the base URL and the HTTP client, so it is safe for
// concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// ListOptions mirror the store's list query parameters. Zero values are
// omitted from the request.
type ListOptions struct {
	Page    int
	PerPage int
	Sort    string
	Filter  string
	Expand  string
	Fields  string
}

// Page is one page of a collection listing.
type Page[T any] struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	TotalPages int `json:"totalPages"`
	TotalItems int `json:"totalItems"`
	Items      []T `json:"items"`
}

// StatusError is returned for any non-2xx store response. The body is not
// assumed to carry structured detail beyond the status code.
type StatusError struct {
	Code       int
	Collection string
	Op         string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("record store: %s %s: status %d", e.Op, e.Collection, e.Code)
}

// List fetches a single page of records from a collection.
func List[T any](ctx context.Context, c *Client, collection string, opts ListOptions) (Page[T], error) {
	var page Page[T]
	u := c.recordsURL(collection) + "?" + opts.encode()
	if err := c.do(ctx, http.MethodGet, u, collection, "list", nil, &page); err != nil {
		return Page[T]{}, err
	}
	return page, nil
}

// Get fetches a single record by id, optionally with relation expansion.
func Get[T any](ctx context.Context, c *Client, collection, id, expand string) (T, error) {
	var out T
	u := c.recordsURL(collection) + "/" + url.PathEscape(id)
	if expand != "" {
		u += "?expand=" + url.QueryEscape(expand)
	}
	err := c.do(ctx, http.MethodGet, u, collection, "get", nil, &out)
	return out, err
}

// Create posts a new record and returns the stored result.
func Create[T any](ctx context.Context, c *Client, collection string, body any) (T, error) {
	var out T
	err := c.do(ctx, http.MethodPost, c.recordsURL(collection), collection, "create", body, &out)
	return out, err
}

// Patch merges the given fields into an existing record and returns the
// updated result.
func Patch[T any](ctx context.Context, c *Client, collection, id string, body any) (T, error) {
	var out T
	u := c.recordsURL(collection) + "/" + url.PathEscape(id)
	err := c.do(ctx, http.MethodPatch, u, collection, "patch", body, &out)
	return out, err
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	u := c.recordsURL(collection) + "/" + url.PathEscape(id)
	return c.do(ctx, http.MethodDelete, u, collection, "delete", nil, nil)
}

// FileURL resolves a file field to its download URL by the store's fixed
// path convention.
func (c *Client) FileURL(collection, recordID, filename string) string {
	return fmt.Sprintf("%s/files/%s/%s/%s", c.baseURL, url.PathEscape(collection), url.PathEscape(recordID), url.PathEscape(filename))
}

func (c *Client) recordsURL(collection string) string {
	return c.baseURL + "/collections/" + url.PathEscape(collection) + "/records"
}

func (c *Client) do(ctx context.Context, method, rawURL, collection, op string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("record store: %s %s: encode body: %w", op, collection, err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("record store: %s %s: %w", op, collection, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		observability.RecordStoreRequestsTotal.WithLabelValues(collection, method, "error").Inc()
		return fmt.Errorf("record store: %s %s: %w", op, collection, err)
	}
	defer resp.Body.Close()
	observability.RecordStoreRequestsTotal.WithLabelValues(collection, method, strconv.Itoa(resp.StatusCode)).Inc()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Collection: collection, Op: op}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("record store: %s %s: decode: %w", op, collection, err)
	}
	return nil
}

func (o ListOptions) encode() string {
	q := url.Values{}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.PerPage > 0 {
		q.Set("perPage", strconv.Itoa(o.PerPage))
	}
	if o.Sort != "" {
		q.Set("sort", o.Sort)
	}
	if o.Filter != "" {
		q.Set("filter", o.Filter)
	}
	if o.Expand != "" {
		q.Set("expand", o.Expand)
	}
	if o.Fields != "" {
		q.Set("fields", o.Fields)
	}
	return q.Encode()
}
