package provider

import (
	"context"

	"github.com/John-Robertt/BoxRec/internal/domain"
)

// Profile 把“站点变化”限制在 provider 包内部；核心流程只依赖统一接口。
//
// 约束：
// - 不做缓存、不做限速；重试由 httpx 层统一实现
// - Favorites 失败必须返回 error（上层据此中止流程）
// - Watched 永不失败：抓不到就返回已收集的部分（可能为空），原因写在 WatchedResult 里
type Profile interface {
	Name() string
	Favorites(ctx context.Context, user domain.Username) ([]string, error)
	Watched(ctx context.Context, user domain.Username, maxPages int) WatchedResult
}

// StopReason 说明分页为何结束。
type StopReason string

const (
	StopNoNext      StopReason = "no_next"
	StopMaxPages    StopReason = "max_pages"
	StopFetchFailed StopReason = "fetch_failed"
	StopCanceled    StopReason = "canceled"
	StopPanic       StopReason = "panic"
)

// WatchedResult 是观看记录分页抓取的结果。
//
// Titles 为空表示“没有已知观看记录”，不是错误；Err 仅用于日志与诊断。
type WatchedResult struct {
	Titles []string
	Pages  int
	Stop   StopReason
	Err    error
}
