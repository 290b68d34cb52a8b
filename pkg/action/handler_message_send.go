package action

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/assistants-engine/pkg/execctx"
)

const defaultMessageSendTimeout = 15 * time.Second

// messageSendParams decodes message.send's params.
type messageSendParams struct {
	Content       string `mapstructure:"content"`
	ContentType   string `mapstructure:"contentType"`
	Priority      string `mapstructure:"priority"`
	Interruptible bool   `mapstructure:"interruptible"`
}

// messageSendHandler implements message.send (§4.3): posts an outbound
// message to the Messaging collaborator unless the run already set
// SuppressResponse (e.g. an earlier route action in the same rule handed the
// conversation elsewhere and this assistant should stay silent).
type messageSendHandler struct {
	sender MessageSender
}

// NewMessageSendHandler builds the message.send handler over sender.
func NewMessageSendHandler(sender MessageSender) Handler {
	return &messageSendHandler{sender: sender}
}

func (h *messageSendHandler) Execute(ctx context.Context, execCtx *execctx.ExecutionContext, cfg Config) (Result, error) {
	var p messageSendParams
	p.ContentType = "text"
	p.Priority = "normal"
	if err := decodeParams(cfg.Type, cfg.Params, &p); err != nil {
		return Result{}, err
	}
	if p.Content == "" {
		return Result{}, &ValidationError{ActionType: cfg.Type, Reason: "content must be non-empty"}
	}

	if execCtx.SuppressResponse {
		return success(cfg.Type, map[string]interface{}{
			"sent":      false,
			"suppressed": true,
		}, time.Now()), nil
	}

	msgID := uuid.NewString()
	traceID, _ := execCtx.Metadata["traceId"].(string)

	msg := OutboundMessage{
		ID:            msgID,
		Content:       p.Content,
		ContentType:   p.ContentType,
		Priority:      p.Priority,
		Interruptible: p.Interruptible,
		TraceID:       traceID,
	}
	if execCtx.Metadata != nil {
		if runID, ok := execCtx.Metadata["runId"].(string); ok {
			msg.RunID = runID
		}
	}

	timeout := execCtx.LLMProfile.Reliability.Timeout()
	if timeout <= 0 {
		timeout = defaultMessageSendTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := withRetry(callCtx, timeout, execCtx.LLMProfile.Reliability.MaxRetries, func() error {
		return h.sender.SendMessage(callCtx, execCtx.ConversationID, msg)
	})
	if err != nil {
		if callCtx.Err() != nil {
			return Result{}, &TimeoutError{ActionType: cfg.Type, TimeoutMs: int(timeout.Milliseconds())}
		}
		return Result{}, err
	}

	return success(cfg.Type, map[string]interface{}{
		"sent":      true,
		"messageId": msgID,
	}, time.Now()), nil
}
