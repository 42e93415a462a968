package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessagePayload(t *testing.T) {
	var got textPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "/pn-1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Config{AccessToken: "token-1", BaseURL: srv.URL})
	err := c.SendMessage(context.Background(), "15550001111", "pn-1", "hello")
	require.NoError(t, err)

	assert.Equal(t, "Bearer token-1", auth)
	assert.Equal(t, "whatsapp", got.MessagingProduct)
	assert.Equal(t, "individual", got.RecipientType)
	assert.Equal(t, "15550001111", got.To)
	assert.Equal(t, "text", got.Type)
	assert.Equal(t, "hello", got.Text.Body)
	assert.False(t, got.Text.PreviewURL)
}

func TestSendMessageSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": "bad token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(Config{AccessToken: "bad", BaseURL: srv.URL})
	err := c.SendMessage(context.Background(), "15550001111", "pn-1", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSendMessagesContinuesAfterFailure(t *testing.T) {
	var delivered []string
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		var p textPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		delivered = append(delivered, p.Text.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Config{AccessToken: "token-1", BaseURL: srv.URL})
	c.SendMessages(context.Background(), "15550001111", "pn-1", []string{"first", "second", "third"})

	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{"second", "third"}, delivered)
}
