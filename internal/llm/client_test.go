package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, reply string, capture *[]chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if capture != nil {
			*capture = append(*capture, req)
		}

		resp := map[string]any{
			"choices": []map[string]any{{
				"message":       map[string]string{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestClientRespond(t *testing.T) {
	var reqs []chatRequest
	srv := chatServer(t, "Hi there!", &reqs)
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithModel("test-model"))

	reply, err := c.Respond(context.Background(), "hello robot")
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", reply)

	require.Len(t, reqs, 1)
	assert.Equal(t, "test-model", reqs[0].Model)

	// System prompt first, user message last.
	msgs := reqs[0].Messages
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, RoleUser, msgs[len(msgs)-1].Role)
	assert.Equal(t, "hello robot", msgs[len(msgs)-1].Content)
}

func TestClientCarriesHistory(t *testing.T) {
	var reqs []chatRequest
	srv := chatServer(t, "ok", &reqs)
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL))

	_, err := c.Respond(context.Background(), "first")
	require.NoError(t, err)
	_, err = c.Respond(context.Background(), "second")
	require.NoError(t, err)

	// The second request includes the first exchange.
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[1].Messages, 4) // system + user + assistant + user
}

func TestClientBoundsHistory(t *testing.T) {
	var reqs []chatRequest
	srv := chatServer(t, "ok", &reqs)
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL), WithHistoryLimit(4))

	for i := 0; i < 10; i++ {
		_, err := c.Respond(context.Background(), "turn")
		require.NoError(t, err)
	}

	last := reqs[len(reqs)-1]
	// system + at most 4 history messages + current user message.
	assert.LessOrEqual(t, len(last.Messages), 6)
}

func TestClientReset(t *testing.T) {
	var reqs []chatRequest
	srv := chatServer(t, "ok", &reqs)
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL))

	_, err := c.Respond(context.Background(), "before reset")
	require.NoError(t, err)
	c.Reset()
	_, err = c.Respond(context.Background(), "after reset")
	require.NoError(t, err)

	last := reqs[len(reqs)-1]
	assert.Len(t, last.Messages, 2) // system + user only
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota exceeded"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL))

	_, err := c.Respond(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestEchoResponder(t *testing.T) {
	e := NewEcho()

	reply, err := e.Respond(context.Background(), "hello robot")
	require.NoError(t, err)
	assert.NotEmpty(t, reply)

	reply, err = e.Respond(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, reply)
}
