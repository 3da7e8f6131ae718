package adlinesdk

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

	"github.com/gorilla/websocket"
)

// Client is a minimal adline HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// Ad represents the API ad model.
type Ad struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	URL                string `json:"url"`
	Cover              []byte `json:"cover,omitempty"`
	Author             string `json:"author"`
	Location           string `json:"location,omitempty"`
	Language           string `json:"language,omitempty"`
	Age                int    `json:"age"`
	OS                 string `json:"os,omitempty"`
	Stake              string `json:"stake"`
	Status             string `json:"status"`
	ContentID          string `json:"content_id,omitempty"`
	VotingAddress      string `json:"voting_address,omitempty"`
	DeployVotingTxHash string `json:"deploy_voting_tx_hash,omitempty"`
	StartVotingTxHash  string `json:"start_voting_tx_hash,omitempty"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}

// AdFields is the editable part of an ad. Nil fields are left unchanged on update.
type AdFields struct {
	Title    *string `json:"title,omitempty"`
	URL      *string `json:"url,omitempty"`
	Cover    []byte  `json:"cover,omitempty"`
	Location *string `json:"location,omitempty"`
	Language *string `json:"language,omitempty"`
	Age      *int    `json:"age,omitempty"`
	OS       *string `json:"os,omitempty"`
	Stake    *string `json:"stake,omitempty"`
}

// Catalog is the catalog view.
type Catalog struct {
	Mode         string         `json:"mode"`
	Filter       string         `json:"filter"`
	Ads          []Ad           `json:"ads"`
	Total        int            `json:"total"`
	Selected     *Ad            `json:"selected,omitempty"`
	TotalSpent   string         `json:"total_spent"`
	Account      string         `json:"account"`
	LoadError    string         `json:"load_error,omitempty"`
	OracleFailed int            `json:"oracle_failed,omitempty"`
	StatusCounts map[string]int `json:"status_counts"`
}

// Review is the current review session.
type Review struct {
	State     string `json:"state"`
	Ad        *Ad    `json:"ad,omitempty"`
	Stalled   bool   `json:"stalled,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// Transition is a review state change pushed on the review stream.
type Transition struct {
	AdID string `json:"ad_id"`
	From string `json:"from"`
	To   string `json:"to"`
	At   string `json:"at"`
}

// Event represents a journal entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// ListAds returns stored ads, optionally filtered by status.
func (c *Client) ListAds(ctx context.Context, status string) ([]Ad, error) {
	endpoint := "ads"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []Ad
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) GetAd(ctx context.Context, id string) (Ad, error) {
	var resp Ad
	err := c.do(ctx, http.MethodGet, "ads/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// CreateAd saves a new draft.
func (c *Client) CreateAd(ctx context.Context, fields AdFields) (Ad, error) {
	var resp Ad
	err := c.do(ctx, http.MethodPost, "ads", fields, &resp)
	return resp, err
}

func (c *Client) UpdateAd(ctx context.Context, id string, fields AdFields) (Ad, error) {
	var resp Ad
	err := c.do(ctx, http.MethodPatch, "ads/"+url.PathEscape(id), fields, &resp)
	return resp, err
}

func (c *Client) DeleteAd(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "ads/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Catalog(ctx context.Context) (Catalog, error) {
	var resp Catalog
	err := c.do(ctx, http.MethodGet, "catalog", nil, &resp)
	return resp, err
}

// LoadCatalog reloads ads and refreshes their statuses from the voting contracts.
func (c *Client) LoadCatalog(ctx context.Context) (Catalog, error) {
	var resp Catalog
	err := c.do(ctx, http.MethodPost, "catalog/load", nil, &resp)
	return resp, err
}

func (c *Client) FilterCatalog(ctx context.Context, status string) (Catalog, error) {
	var resp Catalog
	err := c.do(ctx, http.MethodPost, "catalog/filter", map[string]string{"status": status}, &resp)
	return resp, err
}

func (c *Client) Review(ctx context.Context) (Review, error) {
	var resp Review
	err := c.do(ctx, http.MethodGet, "review", nil, &resp)
	return resp, err
}

// SelectForReview opens a review session for the ad.
func (c *Client) SelectForReview(ctx context.Context, adID string) (Review, error) {
	var resp Review
	err := c.do(ctx, http.MethodPost, "review/select", map[string]string{"ad_id": adID}, &resp)
	return resp, err
}

// SubmitReview starts the submission; follow it with Review or StreamReview.
func (c *Client) SubmitReview(ctx context.Context) (Review, error) {
	var resp Review
	err := c.do(ctx, http.MethodPost, "review/submit", nil, &resp)
	return resp, err
}

func (c *Client) CancelReview(ctx context.Context) (Review, error) {
	var resp Review
	err := c.do(ctx, http.MethodPost, "review/cancel", nil, &resp)
	return resp, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ReviewStream receives review transitions over a websocket.
type ReviewStream struct {
	conn    *websocket.Conn
	Initial Review
}

// StreamReview connects to the review stream and reads the initial snapshot.
func (c *Client) StreamReview(ctx context.Context) (*ReviewStream, error) {
	u, err := url.Parse(c.base() + "/" + c.path("review/stream"))
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	header := http.Header{}
	c.authorize(header)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, decodeError(resp)
		}
		return nil, err
	}
	var hello struct {
		Type     string `json:"type"`
		Snapshot Review `json:"snapshot"`
	}
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return &ReviewStream{conn: conn, Initial: hello.Snapshot}, nil
}

// Next blocks until the next transition arrives.
func (s *ReviewStream) Next() (Transition, error) {
	var msg struct {
		Type string `json:"type"`
		Transition
	}
	for {
		if err := s.conn.ReadJSON(&msg); err != nil {
			return Transition{}, err
		}
		if msg.Type == "transition" {
			return msg.Transition, nil
		}
	}
}

func (s *ReviewStream) Close() error {
	return s.conn.Close()
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + c.path(endpoint)
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req.Header)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) authorize(h http.Header) {
	switch {
	case c.BearerToken != "":
		h.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		h.Set("X-Api-Key", c.APIKey)
	}
}

func decodeError(resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(b, &env) == nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	}
	return apiErr
}

func (c *Client) path(p string) string {
	return strings.TrimLeft(strings.TrimRight(c.BasePath, "/")+"/"+strings.TrimLeft(p, "/"), "/")
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
