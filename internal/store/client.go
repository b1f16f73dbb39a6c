package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Data API action names.
const (
	actionFindOne   = "findOne"
	actionFind      = "find"
	actionInsertOne = "insertOne"
	actionUpdateOne = "updateOne"
)

// Client issues CRUD-style actions against a document database REST data
// API, authenticated with a static api-key header and scoped to one data
// source and database. It is stateless; each call is an independent
// request with server-side single-document atomicity.
type Client struct {
	baseURL    string
	apiKey     string
	dataSource string
	database   string
	httpClient *http.Client
}

// ClientOption customises client instantiation.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// NewClient constructs a Client for the given endpoint and scope.
func NewClient(baseURL, apiKey, dataSource, database string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		dataSource: dataSource,
		database:   database,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// actionRequest is the wire body shared by every action. DataSource and
// database are always present; the remaining fields are action-specific.
type actionRequest struct {
	DataSource string         `json:"dataSource"`
	Database   string         `json:"database"`
	Collection string         `json:"collection"`
	Filter     map[string]any `json:"filter,omitempty"`
	Document   any            `json:"document,omitempty"`
	Update     map[string]any `json:"update,omitempty"`
	Sort       map[string]any `json:"sort,omitempty"`
	Projection map[string]any `json:"projection,omitempty"`
}

// actionResponse is the decoded wire response. Error fields are set on
// failure payloads.
type actionResponse struct {
	Document      json.RawMessage `json:"document"`
	Documents     json.RawMessage `json:"documents"`
	MatchedCount  int             `json:"matchedCount"`
	ModifiedCount int             `json:"modifiedCount"`
	Error         string          `json:"error"`
	ErrorMessage  string          `json:"error_message"`
}

func (r actionResponse) errorMessage() string {
	if r.Error != "" {
		return r.Error
	}
	return r.ErrorMessage
}

// do posts the action and decodes the response. A non-success status or
// an error field in the body becomes an error carrying the server message,
// so callers never see partial results.
func (c *Client) do(ctx context.Context, action string, body actionRequest) (*actionResponse, error) {
	body.DataSource = c.dataSource
	body.Database = c.database
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", action, err)
	}
	endpoint := c.baseURL + "/action/" + action
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perform %s request: %w", action, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", action, err)
	}
	var decoded actionResponse
	// The error payload is still JSON; decode failures only matter on
	// success statuses.
	decodeErr := json.Unmarshal(raw, &decoded)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || decoded.errorMessage() != "" {
		if msg := decoded.errorMessage(); msg != "" {
			return nil, fmt.Errorf("store: %s", msg)
		}
		return nil, fmt.Errorf("store: request failed with status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode %s response: %w", action, decodeErr)
	}
	return &decoded, nil
}

// FindOne decodes a single matching document into out, reporting whether
// one matched.
func (c *Client) FindOne(ctx context.Context, collection string, filter map[string]any, out any) (bool, error) {
	resp, err := c.do(ctx, actionFindOne, actionRequest{Collection: collection, Filter: filter})
	if err != nil {
		return false, err
	}
	if len(resp.Document) == 0 || string(resp.Document) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(resp.Document, out); err != nil {
		return false, fmt.Errorf("decode document: %w", err)
	}
	return true, nil
}

// Find decodes all matching documents into out, in sort order.
func (c *Client) Find(ctx context.Context, collection string, filter, sort map[string]any, out any) error {
	resp, err := c.do(ctx, actionFind, actionRequest{Collection: collection, Filter: filter, Sort: sort})
	if err != nil {
		return err
	}
	if len(resp.Documents) == 0 || string(resp.Documents) == "null" {
		return nil
	}
	if err := json.Unmarshal(resp.Documents, out); err != nil {
		return fmt.Errorf("decode documents: %w", err)
	}
	return nil
}

// InsertOne stores a new document.
func (c *Client) InsertOne(ctx context.Context, collection string, document any) error {
	_, err := c.do(ctx, actionInsertOne, actionRequest{Collection: collection, Document: document})
	return err
}

// UpdateOne applies a $set update to the first matching document and
// returns the matched count.
func (c *Client) UpdateOne(ctx context.Context, collection string, filter, set map[string]any) (int, error) {
	resp, err := c.do(ctx, actionUpdateOne, actionRequest{
		Collection: collection,
		Filter:     filter,
		Update:     map[string]any{"$set": set},
	})
	if err != nil {
		return 0, err
	}
	return resp.MatchedCount, nil
}
