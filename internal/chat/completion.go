package chat

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"
)

// FailureReason why a completion produced no text
type FailureReason string

const (
	// ReasonNone the completion succeeded
	ReasonNone FailureReason = ""
	// ReasonTransport the API could not be reached or the request was cancelled
	ReasonTransport FailureReason = "transport"
	// ReasonRejected the API answered with an error status, eg. bad key or exhausted quota
	ReasonRejected FailureReason = "rejected"
	// ReasonMalformed the API answered without any usable choice
	ReasonMalformed FailureReason = "malformed"
)

// Outcome result of a completion request
type Outcome struct {
	Text   string
	Reason FailureReason
	Err    error
}

// OK reports whether Text holds a generated reply
func (o Outcome) OK() bool {
	return o.Reason == ReasonNone
}

// Failed build a failure outcome
func Failed(reason FailureReason, err error) Outcome {
	return Outcome{Reason: reason, Err: err}
}

// Completer produces a tutor reply for one user message
type Completer interface {
	Complete(ctx context.Context, message string) Outcome
}

// default completion parameters
const (
	DefaultModel        = openai.GPT3Dot5Turbo
	DefaultSystemPrompt = "You are a helpful AI tutor."
)

// OpenAIConfig completion API options
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string // empty for the public endpoint
	Model        string
	SystemPrompt string
}

// OpenAICompleter Completer backed by the OpenAI chat completion API
type OpenAICompleter struct {
	client       *openai.Client
	model        string
	systemPrompt string
}

var _ Completer = &OpenAICompleter{}

func NewOpenAICompleter(cfg *OpenAIConfig) *OpenAICompleter {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	return &OpenAICompleter{
		client:       openai.NewClientWithConfig(oc),
		model:        model,
		systemPrompt: prompt,
	}
}

func (c *OpenAICompleter) Complete(ctx context.Context, message string) Outcome {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return Failed(ReasonRejected, err)
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
			return Failed(ReasonRejected, err)
		}
		return Failed(ReasonTransport, err)
	}
	if len(resp.Choices) == 0 {
		return Failed(ReasonMalformed, errors.New("completion returned no choices"))
	}
	return Outcome{Text: resp.Choices[0].Message.Content}
}
