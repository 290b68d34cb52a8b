// Package messaging is a thin HTTP client for the out-of-scope Messaging
// service: conversation participation, outbound message posting, and
// control events (§6 Messaging HTTP surface consumed).
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/codeready-toolchain/assistants-engine/pkg/action"
	"github.com/codeready-toolchain/assistants-engine/pkg/identity"
)

// Client implements action.MessageSender and router.ConversationJoiner
// against the Messaging service's REST surface.
type Client struct {
	httpClient *http.Client
	baseURL    string
	orgID      string
	serviceID  string
	tokens     identity.TokenSource
}

// NewClient builds a Messaging client scoped to one org. serviceID and
// tokens are attached to every outbound request (§6 propagated headers).
func NewClient(baseURL, orgID, serviceID string, tokens identity.TokenSource) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		orgID:      orgID,
		serviceID:  serviceID,
		tokens:     tokens,
	}
}

func (c *Client) setCommonHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Org-Id", c.orgID)
	req.Header.Set("X-Service-Id", c.serviceID)
	if token := c.tokens.CurrentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// JoinConversation implements router.ConversationJoiner: "POST
// /api/conversations/:id/join as a specific userId (via X-As-User-Id)"
// (§6). An "already joined" response is the caller's responsibility to
// treat as benign — router.Route already does this by inspecting the
// error text.
func (c *Client) JoinConversation(ctx context.Context, conversationID, asUserID string) error {
	url := fmt.Sprintf("%s/api/conversations/%s/join", c.baseURL, conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("build join request: %w", err)
	}
	c.setCommonHeaders(req)
	req.Header.Set("X-As-User-Id", asUserID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &action.NetworkError{ActionType: "conversation.join", Cause: fmt.Errorf("join conversation %s: %w", conversationID, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		body, _ := io.ReadAll(resp.Body)
		return &action.NetworkError{ActionType: "conversation.join", Cause: fmt.Errorf("messaging join returned HTTP %d: %s", resp.StatusCode, string(body))}
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("messaging join returned HTTP %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// outboundMessageBody is the wire shape for POST .../messages.
type outboundMessageBody struct {
	ID            string `json:"id,omitempty"`
	Content       string `json:"content"`
	ContentType   string `json:"content_type,omitempty"`
	Priority      string `json:"priority,omitempty"`
	Interruptible bool   `json:"interruptible,omitempty"`
	RunID         string `json:"runId,omitempty"`
	TraceID       string `json:"traceId,omitempty"`
}

// SendMessage implements action.MessageSender: "POST
// /api/conversations/:id/messages — sends an outbound message; honours
// priority, interruptible, optional runId/traceId" (§6). Message creation
// is keyed by msg.ID, so the server upserts on a retried delivery.
func (c *Client) SendMessage(ctx context.Context, conversationID string, msg action.OutboundMessage) error {
	body, err := json.Marshal(outboundMessageBody{
		ID:            msg.ID,
		Content:       msg.Content,
		ContentType:   msg.ContentType,
		Priority:      msg.Priority,
		Interruptible: msg.Interruptible,
		RunID:         msg.RunID,
		TraceID:       msg.TraceID,
	})
	if err != nil {
		return fmt.Errorf("marshal outbound message: %w", err)
	}

	url := fmt.Sprintf("%s/api/conversations/%s/messages", c.baseURL, conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build send-message request: %w", err)
	}
	c.setCommonHeaders(req)
	if msg.TraceID != "" {
		req.Header.Set("X-Trace-Id", msg.TraceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &action.NetworkError{ActionType: action.TypeMessageSend, Cause: fmt.Errorf("send message to conversation %s: %w", conversationID, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		respBody, _ := io.ReadAll(resp.Body)
		return &action.NetworkError{ActionType: action.TypeMessageSend, Cause: fmt.Errorf("messaging send returned HTTP %d: %s", resp.StatusCode, string(respBody))}
	}
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("messaging send returned HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// ControlEvent is the egress control-event schema (§6 Egress events).
type ControlEvent struct {
	Event          string    `json:"event"`
	ConversationID string    `json:"conversationId"`
	Target         string    `json:"target,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	PreemptedBy    string    `json:"preemptedBy,omitempty"`
	RunID          string    `json:"runId,omitempty"`
	TraceID        string    `json:"traceId,omitempty"`
	EffectiveAt    time.Time `json:"effectiveAt"`
}

// PostControl implements "POST /api/conversations/:id/control — control
// events" (§6).
func (c *Client) PostControl(ctx context.Context, event ControlEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal control event: %w", err)
	}

	url := fmt.Sprintf("%s/api/conversations/%s/control", c.baseURL, event.ConversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build control request: %w", err)
	}
	c.setCommonHeaders(req)
	if event.TraceID != "" {
		req.Header.Set("X-Trace-Id", event.TraceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &action.NetworkError{ActionType: "conversation.control", Cause: fmt.Errorf("post control event for conversation %s: %w", event.ConversationID, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		respBody, _ := io.ReadAll(resp.Body)
		return &action.NetworkError{ActionType: "conversation.control", Cause: fmt.Errorf("messaging control returned HTTP %d: %s", resp.StatusCode, string(respBody))}
	}
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("messaging control returned HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
