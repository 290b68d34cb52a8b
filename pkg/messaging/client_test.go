package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/codeready-toolchain/assistants-engine/pkg/action"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokenSource struct{ token string }

func (f fakeTokenSource) CurrentToken() string { return f.token }

func TestJoinConversation_SetsAsUserHeader(t *testing.T) {
	var gotAsUser, gotOrg string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAsUser = r.Header.Get("X-As-User-Id")
		gotOrg = r.Header.Get("X-Org-Id")
		assert.Equal(t, "/api/conversations/conv-1/join", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "org-1", "svc-engine", fakeTokenSource{token: "tok"})
	err := c.JoinConversation(context.Background(), "conv-1", "assistant:log-analyst")

	require.NoError(t, err)
	assert.Equal(t, "assistant:log-analyst", gotAsUser)
	assert.Equal(t, "org-1", gotOrg)
}

func TestSendMessage_PostsExpectedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/conversations/conv-2/messages", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "org-1", "svc-engine", fakeTokenSource{token: "tok"})
	err := c.SendMessage(context.Background(), "conv-2", action.OutboundMessage{
		ID:      "msg-1",
		Content: "hello",
	})

	require.NoError(t, err)
}

func TestSendMessage_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "org-1", "svc-engine", fakeTokenSource{token: "tok"})
	err := c.SendMessage(context.Background(), "conv-3", action.OutboundMessage{ID: "m", Content: "x"})

	assert.Error(t, err)
}

func TestPostControl_SendsToControlEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/conversations/conv-4/control", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "org-1", "svc-engine", fakeTokenSource{token: "tok"})
	err := c.PostControl(context.Background(), ControlEvent{Event: "handoff.created", ConversationID: "conv-4"})

	require.NoError(t, err)
}
