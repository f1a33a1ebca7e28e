// Package meta 定义电影元数据解析器（外部协作者）接口。
package meta

import (
	"context"

	"github.com/John-Robertt/BoxRec/internal/domain"
	"github.com/John-Robertt/BoxRec/internal/logging"
)

// Resolver 按标题查询电影元数据。
//
// 返回值约定：
// - (m, true, nil)：找到
// - (_, false, nil)：上游明确表示不存在
// - (_, _, err)：网络/解码等失败
type Resolver interface {
	Resolve(ctx context.Context, title string) (domain.Movie, bool, error)
}

// Placeholder 返回只带原始标题的占位记录。
func Placeholder(title string) domain.Movie { return domain.PlaceholderMovie(title) }

// None 是未配置元数据源时使用的解析器：永远返回“不存在”。
type None struct{}

func (None) Resolve(context.Context, string) (domain.Movie, bool, error) {
	return domain.Movie{}, false, nil
}

// Lookup 查询单个标题；失败或不存在时回退为 Placeholder（只记 debug 日志，不向上传播）。
func Lookup(ctx context.Context, r Resolver, title string) domain.Movie {
	if r == nil {
		return Placeholder(title)
	}
	m, ok, err := r.Resolve(ctx, title)
	switch {
	case err != nil:
		logging.C(ctx).Debug().Err(err).Str("title", title).Msg("metadata lookup failed, using placeholder")
		return Placeholder(title)
	case !ok:
		logging.C(ctx).Debug().Str("title", title).Msg("metadata not found, using placeholder")
		return Placeholder(title)
	}
	if m.Title == "" {
		m.Title = title
	}
	return m
}

// LookupAll 按输入顺序逐个查询（顺序执行，不并发）。
func LookupAll(ctx context.Context, r Resolver, titles []string) []domain.Movie {
	out := make([]domain.Movie, 0, len(titles))
	for _, t := range titles {
		out = append(out, Lookup(ctx, r, t))
	}
	return out
}
