package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Generation parameters of every assistant reply.
const (
	Temperature = 0.7
	MaxTokens   = 500

	// DefaultModel is used when no model is configured.
	DefaultModel = string(openai.ChatModelGPT4oMini)

	requestTimeout = 30 * time.Second
)

var (
	// ErrClientNotInitialised is returned when attempting to call the API without a configured client.
	ErrClientNotInitialised = errors.New("assistant API key not configured")
	// ErrNoOutput is returned when the endpoint answers without any candidate.
	ErrNoOutput = errors.New("no response from AI")
)

// Role tags one entry of the outbound conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged entry sent to the model.
type Message struct {
	Role    Role
	Content string
}

// Client wraps the OpenAI SDK chat completions endpoint. Any endpoint that
// speaks the same protocol can be targeted with a base URL.
type Client struct {
	client *openai.Client
	model  openai.ChatModel
}

// New returns a client for apiKey. Without a key the client is returned
// unconfigured and Reply fails with ErrClientNotInitialised.
func New(apiKey, model, baseURL string) *Client {
	if apiKey == "" {
		return &Client{}
	}
	if model == "" {
		model = DefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &Client{
		client: &client,
		model:  openai.ChatModel(model),
	}
}

// Configured reports whether an API key was supplied.
func (c *Client) Configured() bool {
	return c != nil && c.client != nil
}

// Reply sends the conversation and returns the first candidate's text.
func (c *Client) Reply(ctx context.Context, messages []Message) (string, error) {
	if !c.Configured() {
		return "", ErrClientNotInitialised
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("conversation cannot be empty")
	}

	req := openai.ChatCompletionNewParams{
		Model:               c.model,
		Messages:            toParams(messages),
		Temperature:         openai.Float(Temperature),
		MaxCompletionTokens: openai.Int(MaxTokens),
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoOutput
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrNoOutput
	}
	return reply, nil
}

func toParams(messages []Message) []openai.ChatCompletionMessageParamUnion {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params = append(params, openai.ChatCompletionMessageParamUnion{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(m.Content),
					},
				},
			})
		case RoleAssistant:
			params = append(params, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Content: openai.ChatCompletionAssistantMessageParamContentUnion{
						OfString: openai.String(m.Content),
					},
				},
			})
		default:
			params = append(params, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(m.Content),
					},
				},
			})
		}
	}
	return params
}
