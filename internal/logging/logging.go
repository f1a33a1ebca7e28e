// Package logging 基于 zerolog 提供进程级 logger 与请求级字段注入。
//
// 约束：日志只写 stderr（或调用方指定的 Writer），不能污染 stdout 的 JSON 输出。
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Options 配置 logger。
type Options struct {
	Level  string // trace/debug/info/warn/error（默认 info）
	Format string // console/json（默认 console）
	Writer io.Writer
}

var root atomic.Pointer[zerolog.Logger]

func init() {
	Init(Options{})
}

// Init 构建并替换进程级 logger；可重复调用（后一次覆盖前一次）。
func Init(opt Options) {
	var w io.Writer = os.Stderr
	if opt.Writer != nil {
		w = opt.Writer
	}
	if !strings.EqualFold(strings.TrimSpace(opt.Format), "json") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	l := zerolog.New(w).Level(ParseLevel(opt.Level)).With().Timestamp().Logger()
	root.Store(&l)
}

// Get 返回进程级 logger。
func Get() *zerolog.Logger { return root.Load() }

// Named 返回带 component 字段的子 logger。
func Named(component string) *zerolog.Logger {
	if component == "" {
		return Get()
	}
	l := Get().With().Str("component", component).Logger()
	return &l
}

type ctxKey struct{}

// WithRequestID 把 request_id 绑定到 ctx；C(ctx) 取出的 logger 会自动带上该字段。
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID 返回 ctx 上的 request_id（不存在时为空串）。
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(ctxKey{}).(string)
	return s
}

// C 返回基于 ctx 字段的子 logger。
func C(ctx context.Context) *zerolog.Logger {
	id := RequestID(ctx)
	if id == "" {
		return Get()
	}
	l := Get().With().Str("request_id", id).Logger()
	return &l
}

// ParseLevel 解析日志级别；无法识别时回退 info。
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
