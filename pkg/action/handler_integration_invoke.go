package action

import (
	"context"
	"time"

	"github.com/codeready-toolchain/assistants-engine/pkg/execctx"
)

const defaultIntegrationTimeout = 30 * time.Second

// integrationInvokeParams decodes integration.invoke's params.
type integrationInvokeParams struct {
	Namespace string                 `mapstructure:"namespace"`
	Params    map[string]interface{} `mapstructure:"params"`
	TimeoutMs int                    `mapstructure:"timeoutMs"`
}

// integrationInvokeHandler implements integration.invoke (§4.3): a generic
// escape hatch that dispatches by dotted namespace (e.g.
// "slack.postMessage", "jira.createIssue") to the Integrations collaborator,
// for third-party calls that don't fit the llm.invoke/embedding.* shape.
type integrationInvokeHandler struct {
	invoker IntegrationInvoker
}

// NewIntegrationInvokeHandler builds the integration.invoke handler.
func NewIntegrationInvokeHandler(invoker IntegrationInvoker) Handler {
	return &integrationInvokeHandler{invoker: invoker}
}

func (h *integrationInvokeHandler) Execute(ctx context.Context, execCtx *execctx.ExecutionContext, cfg Config) (Result, error) {
	var p integrationInvokeParams
	if err := decodeParams(cfg.Type, cfg.Params, &p); err != nil {
		return Result{}, err
	}
	if p.Namespace == "" {
		return Result{}, &ValidationError{ActionType: cfg.Type, Reason: "namespace must be non-empty"}
	}

	timeout := defaultIntegrationTimeout
	if p.TimeoutMs > 0 {
		timeout = time.Duration(p.TimeoutMs) * time.Millisecond
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var output map[string]interface{}
	err := withRetry(callCtx, timeout, execCtx.LLMProfile.Reliability.MaxRetries, func() error {
		var invokeErr error
		output, invokeErr = h.invoker.InvokeIntegration(callCtx, p.Namespace, p.Params, timeout)
		return invokeErr
	})
	if err != nil {
		if callCtx.Err() != nil {
			return Result{}, &TimeoutError{ActionType: cfg.Type, TimeoutMs: int(timeout.Milliseconds())}
		}
		return Result{}, err
	}

	return success(cfg.Type, output, time.Now()), nil
}
