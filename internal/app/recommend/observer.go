package recommend

import "time"

// Observer 把阶段进度从流水线中解耦出来。
//
// 约束：recommend 包只发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用。
	OnStart(req Request)
	// OnStageDone 在阶段结束时调用：favorites / generate / watched / filter / enrich。
	OnStageDone(name string, fields map[string]any, dur time.Duration)
}
