// Package openai 用 OpenAI Chat Completions 实现 llm.Generator。
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/John-Robertt/BoxRec/internal/llm"
	"github.com/John-Robertt/BoxRec/internal/metrics"
)

const (
	DefaultModel = goopenai.GPT4oMini
	temperature  = 0.7
)

// ErrEmptyCompletion 表示上游返回成功但没有任何 choice。
var ErrEmptyCompletion = errors.New("openai: 空响应（0 个 choice）")

var _ llm.Generator = (*Generator)(nil)

// Options 描述 Generator 的连接参数。
type Options struct {
	APIKey string
	// BaseURL 为空时使用 go-openai 的默认地址（https://api.openai.com/v1）。
	BaseURL string
	Model   string
	HTTP    *http.Client
}

type Generator struct {
	client *goopenai.Client
	model  string
}

func New(opt Options) *Generator {
	cfg := goopenai.DefaultConfig(opt.APIKey)
	if u := strings.TrimSpace(opt.BaseURL); u != "" {
		cfg.BaseURL = strings.TrimRight(u, "/")
	}
	if opt.HTTP != nil {
		cfg.HTTPClient = opt.HTTP
	}
	model := strings.TrimSpace(opt.Model)
	if model == "" {
		model = DefaultModel
	}
	return &Generator{client: goopenai.NewClientWithConfig(cfg), model: model}
}

// Generate 发起一次 chat completion，返回第一个 choice 的文本（去首尾空白）。
func (g *Generator) Generate(ctx context.Context, seeds []string, desired int) (text string, err error) {
	defer func() { metrics.RecordUpstream("openai", err == nil, err) }()

	resp, err := g.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: g.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: llm.SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: llm.BuildPrompt(seeds, desired)},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai: chat completion 失败：%w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
