package adlinesdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestClientSendsCredentialsAndDecodes(t *testing.T) {
	var gotKey, gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode([]Ad{{ID: "1", Title: "Coffee", Status: "Draft"}})
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.APIKey = "k"
	ads, err := c.ListAds(context.Background(), "Draft")
	require.NoError(t, err)
	require.Len(t, ads, 1)
	require.Equal(t, "k", gotKey)
	require.Equal(t, "/v0/ads", gotPath)
	require.Equal(t, "status=Draft", gotQuery)
}

func TestClientDecodesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":{"code":"invalid_transition","message":"invalid transition: submit in idle"}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).SubmitReview(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusConflict, apiErr.StatusCode)
	require.Equal(t, "invalid_transition", apiErr.Code)
}

func TestStreamReview(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(map[string]any{"type": "snapshot", "snapshot": map[string]any{"state": "idle"}})
		conn.WriteJSON(map[string]any{"type": "transition", "ad_id": "1", "from": "idle", "to": "previewing", "at": "2024-01-01T00:00:00Z"})
		conn.ReadMessage()
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.BearerToken = "tok"
	stream, err := c.StreamReview(context.Background())
	require.NoError(t, err)
	defer stream.Close()
	require.Equal(t, "idle", stream.Initial.State)
	tr, err := stream.Next()
	require.NoError(t, err)
	require.Equal(t, Transition{AdID: "1", From: "idle", To: "previewing", At: "2024-01-01T00:00:00Z"}, tr)

	c.BearerToken = ""
	_, err = c.StreamReview(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}
