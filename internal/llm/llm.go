// Package llm 定义候选影片文本生成器（外部协作者）接口与提示词。
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Generator 根据种子影片生成自由文本（期望每行一个 "Title (Year)"）。
//
// 输出格式不做保证：解析与清洗由 pool 包负责，格式不合规的行会被丢弃。
type Generator interface {
	Generate(ctx context.Context, seeds []string, desired int) (string, error)
}

// SystemPrompt 是生成器的角色设定。
const SystemPrompt = "You are a film curator. You always answer with a plain list of movies, one per line, formatted as 'Title (Year)'."

const formatExample = `Her (2013)
The Fountain (2006)
The Fall (2006)
Spirited Away (2001)
The Matrix (1999)
Blade Runner 2049 (2017)`

// BuildPrompt 构造用户提示词：种子影片 + 期望条数 + 严格的行格式约束。
func BuildPrompt(seeds []string, desired int) string {
	if desired <= 0 {
		desired = 1
	}
	var b strings.Builder
	fmt.Fprintf(&b, "The user's favorite films are: %s.\n", strings.Join(seeds, ", "))
	fmt.Fprintf(&b, "Recommend exactly %d films they will probably enjoy, based on shared themes, aesthetics, storytelling and directors.\n", desired)
	b.WriteString("Answer ONLY with a simple list, one film per line, formatted as \"Film title (year)\": ")
	b.WriteString("no explanations, no introduction, no numbering, no bold.\n\n")
	b.WriteString("Expected format example:\n")
	b.WriteString(formatExample)
	return b.String()
}
