package domain

import (
	"time"

	"github.com/goccy/go-json"
)

const (
	ReasonInvalidUsername   = "invalid_username"
	ReasonFavoritesNotFound = "favorites_not_found"
	ReasonGeneratorFailed   = "generator_failed"
)

const (
	ErrCodeConfigInvalid    = "config_invalid"
	ErrCodeConfigMissingKey = "config_missing_key"
)

var reasonMessages = map[string]string{
	ReasonInvalidUsername:   "请输入有效的 Letterboxd 用户名。",
	ReasonFavoritesNotFound: "无法获取最爱影片，请检查用户名是否正确、主页是否公开。",
	ReasonGeneratorFailed:   "生成推荐失败，请稍后再试。",
}

// ReasonMessage 返回对外展示的固定文案；未知 reason 返回通用文案。
func ReasonMessage(reason string) string {
	if m, ok := reasonMessages[reason]; ok {
		return m
	}
	return "请求失败，请稍后再试。"
}

// Result 是对外稳定输出（CLI stdout JSON / HTTP 响应体）的结构。
type Result struct {
	Username      string `json:"username"`
	FilterWatched bool   `json:"filter_watched"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Favorites       []Movie          `json:"favorites"`
	Recommendations []Recommendation `json:"recommendations"`

	// WatchedCount 是抓到的观看记录条数（未开启过滤时为 0）。
	WatchedCount int `json:"watched_count"`
	// PoolSize 是解析后的候选池大小。
	PoolSize int `json:"pool_size"`
	// Backfilled 是从“已看过”分区补位的条数。
	Backfilled int `json:"backfilled"`
}

// Finalize 做两件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) nil 切片归一为空切片（JSON 输出 [] 而不是 null）
func (r *Result) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if r.Favorites == nil {
		r.Favorites = []Movie{}
	}
	if r.Recommendations == nil {
		r.Recommendations = []Recommendation{}
	}
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r Result) MarshalJSON() ([]byte, error) {
	type Alias Result
	return json.Marshal(Alias(r))
}
