package agent_api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	http_match "github.com/cinematch/core/internal/delivery/http/match"
	"github.com/cinematch/core/internal/model"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidVote  = errors.New("invalid vote")
	ErrExhausted    = errors.New("candidates exhausted")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNetwork      = errors.New("network error")
	ErrEmptyQueue   = errors.New("empty candidate list")
)

// Client is the request/response side of the protocol. Wire shapes are
// shared with the server's match controller.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Recommendations pulls the session's candidate queue, starting the
// session on the server if this is the group's first fetch. An empty
// list counts as a fetch failure.
func (c *Client) Recommendations(ctx context.Context, groupID model.GroupID) ([]http_match.MovieMetaDTO, error) {
	var resp http_match.RecommendationsResponseDTO
	path := fmt.Sprintf("/match/%s/recommendations", groupID)
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	if len(resp.Movies) == 0 {
		return nil, ErrEmptyQueue
	}
	return resp.Movies, nil
}

func (c *Client) Session(ctx context.Context, groupID model.GroupID) (*http_match.SessionResponseDTO, error) {
	var resp http_match.SessionResponseDTO
	path := fmt.Sprintf("/match/%s/session", groupID)
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Vote submits one ballot. A non-nil winner means this very vote
// completed the decision.
func (c *Client) Vote(ctx context.Context, groupID model.GroupID, movieID string, liked bool) (*http_match.MovieMetaDTO, error) {
	body, err := json.Marshal(http_match.VoteRequestDTO{
		MovieID: movieID,
		Liked:   &liked,
	})
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/match/%s/vote", groupID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer httpResp.Body.Close()

	if err := statusError(httpResp); err != nil {
		return nil, err
	}

	var resp http_match.VoteResponseDTO
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return resp.Winner, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer httpResp.Body.Close()

	if err := statusError(httpResp); err != nil {
		return err
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, body)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrInvalidVote, body)
	case http.StatusGone:
		return ErrExhausted
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, body)
	default:
		return fmt.Errorf("%w: %s - %s", ErrNetwork, resp.Status, body)
	}
}
