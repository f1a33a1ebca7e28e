package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/BoxRec/internal/app/recommend"
	"github.com/John-Robertt/BoxRec/internal/config"
)

var _ recommend.Observer = (*progressUI)(nil)

// progressUI 是交互终端的阶段进度输出。
//
// 约束：
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - keepalive：单个阶段长时间无输出时定期打印一行（生成与翻页都可能很慢）
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time
	filter      bool
	current     string // 正在进行的阶段

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

// PrintConfig 打印生效配置（敏感字段只显示是否设置）。
func (p *progressUI) PrintConfig(eff config.EffectiveConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.w, "配置（生效）:")
	if eff.Source != "" {
		fmt.Fprintf(p.w, "  file: %s\n", eff.Source)
	}
	fmt.Fprintf(p.w, "  letterboxd: %s\n", truncate(eff.LetterboxdURL, 120))
	fmt.Fprintf(p.w, "  max_watched_pages: %d\n", eff.MaxWatchedPages)
	fmt.Fprintf(p.w, "  openai: model=%s key=%s\n", eff.OpenAIModel, onOff(eff.OpenAIAPIKey != ""))
	fmt.Fprintf(p.w, "  omdb: key=%s\n", onOff(eff.OMDbAPIKey != ""))
	fmt.Fprintf(p.w, "  timeout: %s\n", eff.RequestTimeout)
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintln(p.w)
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnStart(req recommend.Request) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.startedAt = now
	p.filter = req.FilterWatched
	p.current = "favorites"
	fmt.Fprintf(p.w, "[%s] boxrec recommend %s (filter_watched=%s)\n",
		now.Format("15:04:05"), truncate(req.Username, 60), onOff(req.FilterWatched),
	)
	p.lastPrinted = now
	if !p.tickerStarted {
		p.startTickerLocked()
	}
}

func (p *progressUI) OnStageDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "favorites":
		fmt.Fprintf(p.w, "最爱影片: count=%d (%s)\n", intField(fields, "count"), formatShortDuration(dur))
	case "generate":
		fmt.Fprintf(p.w, "候选池: desired=%d pool=%d (%s)\n",
			intField(fields, "desired"), intField(fields, "pool"), formatShortDuration(dur),
		)
	case "watched":
		fmt.Fprintf(p.w, "观看记录: titles=%d pages=%d stop=%s (%s)\n",
			intField(fields, "titles"), intField(fields, "pages"), stringField(fields, "stop"), formatShortDuration(dur),
		)
	case "filter":
		fmt.Fprintf(p.w, "筛选: picked=%d unseen=%d backfilled=%d (%s)\n",
			intField(fields, "picked"), intField(fields, "unseen"), intField(fields, "backfilled"), formatShortDuration(dur),
		)
	case "enrich":
		fmt.Fprintf(p.w, "补全: titles=%d (%s)\n\n", intField(fields, "titles"), formatShortDuration(dur))
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.current = nextStage(name, p.filter)
	p.lastPrinted = time.Now()
}

// Close 停止 keepalive；可重复调用。
func (p *progressUI) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

// nextStage 返回 done 之后预期进行的阶段（用于 keepalive 提示）；全部完成时为空。
func nextStage(done string, filter bool) string {
	switch done {
	case "favorites":
		return "generate"
	case "generate":
		if filter {
			return "watched"
		}
		return "filter"
	case "watched":
		return "filter"
	case "filter":
		return "enrich"
	default:
		return ""
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stop := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.current == "" {
					p.mu.Unlock()
					return
				}
				if time.Since(p.lastPrinted) > threshold {
					fmt.Fprintf(p.w, "进行中: stage=%s elapsed=%s\n", p.current, formatElapsed(time.Since(p.startedAt)))
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	switch x := fields[key].(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	default:
		return 0
	}
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	if s == "" {
		return "-"
	}
	return s
}
