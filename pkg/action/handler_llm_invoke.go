package action

import (
	"context"
	"errors"
	"time"

	"github.com/codeready-toolchain/assistants-engine/pkg/execctx"
	"github.com/codeready-toolchain/assistants-engine/pkg/llmconfig"
)

const defaultLLMInvokeTimeout = 45 * time.Second

// llmInvokeParams carries the fields of action_config that aren't part of
// GenerationConfig/ProviderConfig overlay — everything else in cfg.Params is
// passed through to the provider untouched.
type llmInvokeParams struct {
	Operation string `mapstructure:"operation"`
}

// llmInvokeHandler implements llm.invoke (§4.3): resolve the effective
// profile, overlay action_config, call the Integrations collaborator with a
// deadline, retry network/5xx failures with backoff, and surface a
// TokenAuthError undigested when the caller's credentials are stale.
type llmInvokeHandler struct {
	invoker LLMInvoker
}

// NewLLMInvokeHandler builds the llm.invoke handler over invoker.
func NewLLMInvokeHandler(invoker LLMInvoker) Handler {
	return &llmInvokeHandler{invoker: invoker}
}

func (h *llmInvokeHandler) Execute(ctx context.Context, execCtx *execctx.ExecutionContext, cfg Config) (Result, error) {
	var p llmInvokeParams
	p.Operation = "chat"
	if err := decodeParams(cfg.Type, cfg.Params, &p); err != nil {
		return Result{}, err
	}

	gen, prov, err := llmconfig.ActionConfig(execCtx.LLMProfile, cfg.Params)
	if err != nil {
		return Result{}, &ValidationError{ActionType: cfg.Type, Reason: err.Error()}
	}
	if prov.Provider == "" || prov.Model == "" {
		return Result{}, &ValidationError{ActionType: cfg.Type, Reason: "resolved profile has no provider/model"}
	}

	reliability := execCtx.LLMProfile.Reliability
	timeout := reliability.Timeout()
	if timeout <= 0 {
		timeout = defaultLLMInvokeTimeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := LLMRequest{
		Provider:  prov.Provider,
		Model:     prov.Model,
		Operation: p.Operation,
		Params:    mergeGenerationParams(cfg.Params, gen),
		Timeout:   timeout,
	}

	var resp LLMResponse
	err = withRetry(callCtx, timeout, reliability.MaxRetries, func() error {
		var invokeErr error
		resp, invokeErr = h.invoker.Invoke(callCtx, req)
		return invokeErr
	})
	if err != nil {
		var tokenErr *TokenAuthError
		if errors.As(err, &tokenErr) {
			return Result{}, tokenErr
		}
		if callCtx.Err() != nil {
			return Result{}, &TimeoutError{ActionType: cfg.Type, TimeoutMs: int(timeout.Milliseconds())}
		}
		// err is already one of the §7 typed errors (NetworkError from the
		// last retry, or a permanent ValidationError/AuthError/NotFoundError
		// the invoker raised) — pass it through unwrapped.
		return Result{}, err
	}

	return success(cfg.Type, map[string]interface{}{
		"provider":     resp.Provider,
		"model":        resp.Model,
		"content":      resp.Content,
		"usage":        resp.Usage,
		"finishReason": resp.FinishReason,
		"metadata":     resp.Metadata,
	}, time.Now()), nil
}

// mergeGenerationParams folds the resolved generation knobs into the raw
// action params so the Integrations client sees one flat request body,
// action params taking precedence over the resolved profile for any key
// mapstructure recognizes but the caller re-specified literally.
func mergeGenerationParams(raw map[string]interface{}, gen llmconfig.GenerationConfig) map[string]interface{} {
	merged := make(map[string]interface{}, len(raw)+4)
	for k, v := range raw {
		merged[k] = v
	}
	if _, ok := merged["temperature"]; !ok {
		merged["temperature"] = gen.Temperature
	}
	if _, ok := merged["max_output_tokens"]; !ok {
		merged["max_output_tokens"] = gen.MaxOutputTokens
	}
	if _, ok := merged["response_format"]; !ok && gen.ResponseFormat != "" {
		merged["response_format"] = gen.ResponseFormat
	}
	if _, ok := merged["top_p"]; !ok {
		merged["top_p"] = gen.TopP
	}
	delete(merged, "operation")
	return merged
}
