package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"adline/internal/app"
	"adline/internal/catalog"
	"adline/internal/config"
	"adline/internal/db"
	"adline/internal/domain"
	"adline/internal/events"
	"adline/internal/migrate"
	"adline/internal/repo"
	"adline/internal/review"
)

const (
	testAccount = "0xabc"
	testSecret  = "test-secret"
)

// fakeNode mines every transaction on the first lookup.
type fakeNode struct {
	mu      sync.Mutex
	deploys int
	invokes int
}

func (n *fakeNode) Put(ctx context.Context, data []byte) (string, error) { return "bafy-ad", nil }

func (n *fakeNode) EstimateDeploy(ctx context.Context, req domain.DeployRequest) (domain.DeployEstimate, error) {
	return domain.DeployEstimate{ContractAddress: "0xC1", GasCost: decimal.NewFromInt(1), TxFee: decimal.NewFromInt(1)}, nil
}

func (n *fakeNode) Deploy(ctx context.Context, req domain.DeployRequest, est domain.DeployEstimate) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deploys++
	return "0xA", nil
}

func (n *fakeNode) EstimateCall(ctx context.Context, req domain.CallRequest) (domain.CallEstimate, error) {
	return domain.CallEstimate{GasCost: decimal.NewFromInt(1)}, nil
}

func (n *fakeNode) InvokeCall(ctx context.Context, req domain.CallRequest, est domain.CallEstimate) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.invokes++
	return "0xB", nil
}

func (n *fakeNode) counts() (deploys, invokes int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.deploys, n.invokes
}

func (n *fakeNode) TransactionByHash(ctx context.Context, hash string) (*domain.Transaction, error) {
	return &domain.Transaction{Hash: hash, BlockHash: "0x01"}, nil
}

func (n *fakeNode) Receipt(ctx context.Context, hash string) (*domain.Receipt, error) {
	return &domain.Receipt{TxHash: hash, Success: true}, nil
}

func (n *fakeNode) QueryVotingState(ctx context.Context, contract string) (domain.VotingState, error) {
	return domain.VotingState{Contract: contract, Phase: domain.VotingPending}, nil
}

func (n *fakeNode) TotalSpent(ctx context.Context, account string) (decimal.Decimal, error) {
	return decimal.NewFromInt(42), nil
}

func (n *fakeNode) BurntCoins(ctx context.Context) ([]domain.BurntCoin, error) { return nil, nil }

func (n *fakeNode) ProfileCID(ctx context.Context, address string) (string, error) { return "", nil }

func (n *fakeNode) Get(ctx context.Context, cid string) ([]byte, error) { return nil, domain.ErrNotFound }

type testServer struct {
	URL    string
	App    *app.App
	Repo   repo.Repo
	Node   *fakeNode
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default(testAccount)
	cfg.Review.PollInterval = 5 * time.Millisecond
	r := repo.New(conn, testAccount)
	node := &fakeNode{}
	a := app.Build(cfg, r, r, node, nil, app.Options{})
	if err := a.Catalog.Load(context.Background()); err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	handler, err := New(Config{App: a, BasePath: "/v0", Auth: AuthConfig{JWTSecret: testSecret}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		App:    a,
		Repo:   r,
		Node:   node,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			a.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func login(t *testing.T, srv *testServer, account string) map[string]string {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{
		"account":  account,
		"age":      30,
		"stake":    "250",
		"language": "en",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %s", res.StatusCode, data)
	}
	var out DevLoginResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + out.Token}
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, data)
	}
	return env.Error.Code
}

func createAd(t *testing.T, srv *testServer, auth map[string]string, title string) domain.Ad {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/ads", map[string]any{
		"title": title,
		"url":   "https://" + strings.ToLower(title) + ".example",
		"age":   18,
		"stake": "100",
	}, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, data)
	}
	var ad domain.Ad
	if err := json.Unmarshal(data, &ad); err != nil {
		t.Fatalf("decode ad: %v", err)
	}
	return ad
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/ads", nil, nil)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	require.Equal(t, "unauthorized", errorCode(t, data))

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/ads", nil, map[string]string{"Authorization": "Bearer nope"})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	require.Equal(t, "invalid_credentials", errorCode(t, data))

	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestAdLifecycle(t *testing.T) {
	require := require.New(t)
	srv := newTestServer(t)
	auth := login(t, srv, testAccount)

	ad := createAd(t, srv, auth, "Coffee")
	require.NotEmpty(ad.ID)
	require.Equal(domain.StatusDraft, ad.Status)
	require.Equal(testAccount, ad.Author)
	require.True(ad.Stake.Equal(decimal.NewFromInt(100)))

	res, data := doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v0/ads/"+ad.ID, map[string]any{"title": "Tea"}, auth)
	require.Equal(http.StatusOK, res.StatusCode, string(data))
	var updated domain.Ad
	require.NoError(json.Unmarshal(data, &updated))
	require.Equal("Tea", updated.Title)
	require.Equal(ad.URL, updated.URL)

	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v0/ads/"+ad.ID, map[string]any{"url": "relative/path"}, auth)
	require.Equal(http.StatusUnprocessableEntity, res.StatusCode, string(data))
	require.Equal("validation_failed", errorCode(t, data))

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/ads?status=draft", nil, auth)
	require.Equal(http.StatusOK, res.StatusCode, string(data))
	var listed []domain.Ad
	require.NoError(json.Unmarshal(data, &listed))
	require.Len(listed, 1)

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/ads?status=bogus", nil, auth)
	require.Equal(http.StatusBadRequest, res.StatusCode, string(data))

	res, _ = doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/v0/ads/"+ad.ID, nil, auth)
	require.Equal(http.StatusNoContent, res.StatusCode)

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/ads/"+ad.ID, nil, auth)
	require.Equal(http.StatusNotFound, res.StatusCode)
	require.Equal("not_found", errorCode(t, data))
	require.Empty(srv.App.Catalog.All())
}

func TestMutationsRequireOwner(t *testing.T) {
	srv := newTestServer(t)
	auth := login(t, srv, "0xother")
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/ads", map[string]any{
		"title": "Coffee",
		"url":   "https://coffee.example",
	}, auth)
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))
	require.Equal(t, "forbidden", errorCode(t, data))

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil, auth)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var me WhoAmIResponse
	require.NoError(t, json.Unmarshal(data, &me))
	require.False(t, me.Owner)
	require.Equal(t, 30, me.Age)
	require.True(t, me.Stake.Equal(decimal.NewFromInt(250)))
}

func TestAPIKeyAuth(t *testing.T) {
	srv := newTestServer(t)
	_, plain, err := srv.Repo.CreateAPIKey(context.Background(), testAccount, "ci")
	require.NoError(t, err)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"X-Api-Key": plain})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var me WhoAmIResponse
	require.NoError(t, json.Unmarshal(data, &me))
	require.Equal(t, "api_key", me.Source)
	require.True(t, me.Owner)
}

func TestCatalogFilterAndPublish(t *testing.T) {
	require := require.New(t)
	srv := newTestServer(t)
	auth := login(t, srv, testAccount)
	ad := createAd(t, srv, auth, "Coffee")
	createAd(t, srv, auth, "Tea")

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/catalog", nil, auth)
	require.Equal(http.StatusOK, res.StatusCode)
	var view struct {
		Mode       string          `json:"mode"`
		Filter     string          `json:"filter"`
		Ads        []domain.Ad     `json:"ads"`
		Total      int             `json:"total"`
		TotalSpent decimal.Decimal `json:"total_spent"`
	}
	require.NoError(json.Unmarshal(data, &view))
	require.Equal("idle", view.Mode)
	require.Equal(2, view.Total)
	require.Empty(view.Ads)
	require.True(view.TotalSpent.Equal(decimal.NewFromInt(42)))

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/catalog/filter", map[string]any{"status": "Draft"}, auth)
	require.Equal(http.StatusOK, res.StatusCode, string(data))
	require.NoError(json.Unmarshal(data, &view))
	require.Len(view.Ads, 2)

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/catalog/items/"+ad.ID+"/publish", nil, auth)
	require.Equal(http.StatusOK, res.StatusCode, string(data))
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/catalog/filter", map[string]any{"status": "Active"}, auth)
	require.Equal(http.StatusConflict, res.StatusCode, string(data))
	require.Equal("invalid_transition", errorCode(t, data))

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/catalog/cancel", nil, auth)
	require.Equal(http.StatusOK, res.StatusCode, string(data))
	require.NoError(json.Unmarshal(data, &view))
	require.Equal("idle", view.Mode)
}

func TestReviewFlow(t *testing.T) {
	require := require.New(t)
	srv := newTestServer(t)
	auth := login(t, srv, testAccount)
	ad := createAd(t, srv, auth, "Coffee")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/review/submit", nil, auth)
	require.Equal(http.StatusConflict, res.StatusCode, string(data))
	require.Equal("invalid_transition", errorCode(t, data))

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/review/select", map[string]any{"ad_id": ad.ID}, auth)
	require.Equal(http.StatusOK, res.StatusCode, string(data))
	var rv ReviewResponse
	require.NoError(json.Unmarshal(data, &rv))
	require.Equal(review.Previewing, rv.State)
	require.Equal(ad.ID, rv.Ad.ID)

	res, data = doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/v0/ads/"+ad.ID, nil, auth)
	require.Equal(http.StatusConflict, res.StatusCode, string(data))

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/review/submit", nil, auth)
	require.Equal(http.StatusOK, res.StatusCode, string(data))

	require.Eventually(func() bool {
		return srv.App.Review.State() == review.Idle && srv.App.Catalog.View().Mode == catalog.ModeIdle
	}, 2*time.Second, 5*time.Millisecond)

	stored, err := srv.Repo.GetByID(context.Background(), ad.ID)
	require.NoError(err)
	require.Equal(domain.StatusReviewing, stored.Status)
	require.Equal("0xC1", stored.VotingAddress)
	require.Equal("0xA", stored.DeployVotingTxHash)
	deploys, invokes := srv.Node.counts()
	require.Equal(1, deploys)
	require.Equal(1, invokes)

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/review/select", map[string]any{"ad_id": ad.ID}, auth)
	require.Equal(http.StatusOK, res.StatusCode, string(data))
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/review/submit", nil, auth)
	require.Equal(http.StatusConflict, res.StatusCode, string(data))
	require.Equal("voting_assigned", errorCode(t, data))
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/review/cancel", nil, auth)
	require.Equal(http.StatusOK, res.StatusCode, string(data))
	require.NoError(json.Unmarshal(data, &rv))
	require.Equal(review.Idle, rv.State)
	require.Nil(rv.Ad)
}

func TestEventsPagination(t *testing.T) {
	require := require.New(t)
	srv := newTestServer(t)
	auth := login(t, srv, testAccount)
	createAd(t, srv, auth, "Coffee")
	createAd(t, srv, auth, "Tea")

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/events?limit=1", nil, auth)
	require.Equal(http.StatusOK, res.StatusCode, string(data))
	var page paginatedEvents
	require.NoError(json.Unmarshal(data, &page))
	require.Len(page.Items, 1)
	require.Equal(events.AdCreated, page.Items[0].Type)
	require.Equal("Tea", page.Items[0].Payload["title"])
	require.NotEmpty(page.NextCursor)

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/events?limit=1&cursor="+page.NextCursor, nil, auth)
	require.Equal(http.StatusOK, res.StatusCode, string(data))
	require.NoError(json.Unmarshal(data, &page))
	require.Len(page.Items, 1)
	require.Equal("Coffee", page.Items[0].Payload["title"])
	require.Empty(page.NextCursor)

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/events?cursor=abc", nil, auth)
	require.Equal(http.StatusBadRequest, res.StatusCode, string(data))
}

func TestRotationAndMetrics(t *testing.T) {
	srv := newTestServer(t)
	auth := login(t, srv, "0xviewer")
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/rotation", nil, auth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var rot RotationResponse
	require.NoError(t, json.Unmarshal(data, &rot))
	require.NotNil(t, rot.Items)
	require.Empty(t, rot.Items)

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/metrics", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(data), "adline_watcher_polls_total")
}

func TestReviewStream(t *testing.T) {
	require := require.New(t)
	srv := newTestServer(t)
	auth := login(t, srv, testAccount)
	ad := createAd(t, srv, auth, "Coffee")

	header := http.Header{}
	header.Set("Authorization", auth["Authorization"])
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v0/review/stream"
	conn, res, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(err)
	defer res.Body.Close()
	defer conn.Close()
	require.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))

	var hello streamHello
	require.NoError(conn.ReadJSON(&hello))
	require.Equal("snapshot", hello.Type)
	require.Equal(review.Idle, hello.Snapshot.State)

	_, err = srv.App.Catalog.SelectForReview(ad.ID)
	require.NoError(err)

	var msg streamTransition
	require.NoError(conn.ReadJSON(&msg))
	require.Equal("transition", msg.Type)
	require.Equal(ad.ID, msg.AdID)
	require.Equal(review.Idle, msg.From)
	require.Equal(review.Previewing, msg.To)

	_, _, err = websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(err, "stream requires credentials")
}

func TestWebhookDelivery(t *testing.T) {
	require := require.New(t)
	srv := newTestServer(t)

	type delivery struct {
		event  string
		secret string
		body   webhookEvent
	}
	var (
		mu    sync.Mutex
		calls []delivery
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body webhookEvent
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		calls = append(calls, delivery{event: r.Header.Get("X-Adline-Event"), secret: r.Header.Get("X-Adline-Secret"), body: body})
		mu.Unlock()
	}))
	defer hook.Close()

	ctx := context.Background()
	_, err := srv.Repo.Insert(ctx, domain.Ad{ID: "old", Title: "before hooks"})
	require.NoError(err)

	d := NewWebhookDispatcher(srv.Repo, testAccount, []config.WebhookConfig{
		{URL: hook.URL, Secret: "s3cret", Events: []string{events.AdCreated}},
	}, nil)
	d.DispatchAll(ctx)
	mu.Lock()
	require.Empty(calls, "hooks start at the journal head")
	mu.Unlock()

	_, err = srv.Repo.Insert(ctx, domain.Ad{ID: "new", Title: "after hooks"})
	require.NoError(err)
	require.NoError(srv.Repo.Delete(ctx, "old"))
	d.DispatchAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	require.Len(calls, 1)
	require.Equal(events.AdCreated, calls[0].event)
	require.Equal("s3cret", calls[0].secret)
	require.Equal("new", calls[0].body.EntityID)
	require.Equal(testAccount, calls[0].body.Account)
}

func TestOpenAPIIsPublic(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/openapi.json", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Contains(t, doc, "paths")
}
