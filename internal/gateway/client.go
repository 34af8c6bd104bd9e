// Package gateway implements the remote REST adapter consumed by the
// sync engine. All network I/O for the module flows through here.
package gateway

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

	"github.com/roach88/undertow/internal/engine"
	"github.com/roach88/undertow/internal/model"
)

// Client is a REST implementation of engine.Gateway.
//
// Error mapping: HTTP 409 becomes engine.ErrConflict so reconciliation
// phases can normalize it to success; 404 on GetPost becomes
// (nil, nil); everything else non-2xx becomes a descriptive error.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client. Used by tests
// and callers that need custom transports.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a Client for the given base URL, for example
// "https://api.example.net".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do performs one JSON request/response round trip. A nil body sends
// no payload; a nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		io.Copy(io.Discard, resp.Body)
		return engine.ErrConflict
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return errNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// errNotFound is internal; only GetPost translates it, every other
// call surfaces it as a plain error.
var errNotFound = fmt.Errorf("remote: not found")

type createPostRequest struct {
	ClientID string `json:"client_id"`
	model.PostDraft
}

// CreatePost implements engine.Gateway.
func (c *Client) CreatePost(ctx context.Context, clientID string, draft model.PostDraft) (model.Entity, error) {
	var entity model.Entity
	err := c.do(ctx, http.MethodPost, "/v1/posts", createPostRequest{ClientID: clientID, PostDraft: draft}, &entity)
	return entity, err
}

// CreatePoll implements engine.Gateway.
func (c *Client) CreatePoll(ctx context.Context, clientID string, draft model.PostDraft) (model.Entity, error) {
	var entity model.Entity
	err := c.do(ctx, http.MethodPost, "/v1/polls", createPostRequest{ClientID: clientID, PostDraft: draft}, &entity)
	return entity, err
}

// GetPost implements engine.Gateway. Returns (nil, nil) when the post
// does not exist remotely.
func (c *Client) GetPost(ctx context.Context, id string) (*model.Entity, error) {
	var entity model.Entity
	err := c.do(ctx, http.MethodGet, "/v1/posts/"+url.PathEscape(id), nil, &entity)
	if err == errNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// DeltaFeed implements engine.Gateway.
func (c *Client) DeltaFeed(ctx context.Context, since string) (model.FeedDelta, error) {
	var delta model.FeedDelta
	err := c.do(ctx, http.MethodGet, "/v1/feed/home?since="+url.QueryEscape(since), nil, &delta)
	return delta, err
}

type reactRequest struct {
	Kind model.ReactionKind `json:"kind"`
}

// React implements engine.Gateway.
func (c *Client) React(ctx context.Context, postID string, kind model.ReactionKind) error {
	return c.do(ctx, http.MethodPost, "/v1/posts/"+url.PathEscape(postID)+"/reactions", reactRequest{Kind: kind}, nil)
}

// Repost implements engine.Gateway.
func (c *Client) Repost(ctx context.Context, postID string) (model.Entity, error) {
	var entity model.Entity
	err := c.do(ctx, http.MethodPost, "/v1/posts/"+url.PathEscape(postID)+"/repost", nil, &entity)
	return entity, err
}

type bookmarkResponse struct {
	Bookmarked bool `json:"bookmarked"`
}

// ToggleBookmark implements engine.Gateway.
func (c *Client) ToggleBookmark(ctx context.Context, postID string) (bool, error) {
	var resp bookmarkResponse
	err := c.do(ctx, http.MethodPost, "/v1/posts/"+url.PathEscape(postID)+"/bookmark", nil, &resp)
	return resp.Bookmarked, err
}

// Bookmarks implements engine.Gateway.
func (c *Client) Bookmarks(ctx context.Context) ([]model.Entity, error) {
	var entities []model.Entity
	err := c.do(ctx, http.MethodGet, "/v1/bookmarks", nil, &entities)
	return entities, err
}

type voteRequest struct {
	ChoiceIndex int `json:"choice_index"`
}

// VotePoll implements engine.Gateway.
func (c *Client) VotePoll(ctx context.Context, postID string, choiceIndex int) (model.Entity, error) {
	var entity model.Entity
	err := c.do(ctx, http.MethodPost, "/v1/posts/"+url.PathEscape(postID)+"/votes", voteRequest{ChoiceIndex: choiceIndex}, &entity)
	return entity, err
}

// MyVotes implements engine.Gateway.
func (c *Client) MyVotes(ctx context.Context) ([]model.VoteRecord, error) {
	var records []model.VoteRecord
	err := c.do(ctx, http.MethodGet, "/v1/votes", nil, &records)
	return records, err
}

// compile-time interface check
var _ engine.Gateway = (*Client)(nil)
