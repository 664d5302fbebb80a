package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	conflictSystemPrompt = `You are a commercial property insurance analyst. You receive JSON policy summaries for one property and identify cross-policy conflicts. Respond with JSON only, shaped as {"conflicts":[{"conflict_type","severity","title","description","affected_policy_ids","recommendation","confidence"}],"cross_policy_analysis","portfolio_recommendations"}. conflict_type must be one of excess_primary_gap, entity_mismatch, valuation_conflict, coverage_overlap, limit_tower_gap, exclusion_conflict. severity must be critical, warning, or info. affected_policy_ids must only contain ids present in the input.`

	healthSystemPrompt = `You are a commercial property insurance analyst. You receive a pre-computed health score with six component sub-scores and their findings. Write one short reasoning sentence per component explaining the number. Respond with JSON only: an object mapping each component name to its reasoning string. Do not change any number.`
)

// OpenAIReasoner calls the OpenAI chat completions API with an explicit
// timeout per call.
type OpenAIReasoner struct {
	Client  *openai.Client
	Model   string
	Timeout time.Duration
}

func NewOpenAIReasoner(apiKey, model string, timeout time.Duration) *OpenAIReasoner {
	return &OpenAIReasoner{
		Client:  openai.NewClient(apiKey),
		Model:   model,
		Timeout: timeout,
	}
}

func (r *OpenAIReasoner) AnalyzeConflicts(ctx context.Context, req ConflictRequest) (ConflictResponse, int64, error) {
	start := time.Now()
	content, err := r.complete(ctx, conflictSystemPrompt, req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return ConflictResponse{}, latency, err
	}

	var resp ConflictResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return ConflictResponse{}, latency, fmt.Errorf("%w: malformed conflict response: %v", ErrUnavailable, err)
	}
	return resp, latency, nil
}

func (r *OpenAIReasoner) NarrateHealth(ctx context.Context, req HealthNarrationRequest) (map[string]string, error) {
	content, err := r.complete(ctx, healthSystemPrompt, req)
	if err != nil {
		return nil, err
	}

	var out map[string]string
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("%w: malformed narration response: %v", ErrUnavailable, err)
	}
	return out, nil
}

func (r *OpenAIReasoner) complete(ctx context.Context, system string, payload any) (string, error) {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	resp, err := r.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.Model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: string(body)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", ErrUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}
