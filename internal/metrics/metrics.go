// Package metrics 定义推荐流水线与 HTTP API 的 Prometheus 指标。
//
// 指标通过 promauto 注册到默认 registry；/metrics 由 server 包暴露。
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 流水线
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxrec_pipeline_runs_total",
			Help: "Total number of recommendation pipeline runs by outcome",
		},
		[]string{"outcome"}, // "ok" 或失败 reason
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "boxrec_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	WatchedPages = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "boxrec_watched_pages",
			Help:    "Number of watched-list pages fetched per run",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)

	Backfilled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "boxrec_backfilled_recommendations_total",
			Help: "Total number of recommendations backfilled from already-watched titles",
		},
	)

	// 外部调用（letterboxd / omdb / openai）
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxrec_upstream_requests_total",
			Help: "Total number of upstream calls by target and result",
		},
		[]string{"target", "result"}, // result: "ok" | "miss" | "error"
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxrec_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "boxrec_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordRun 记录一次流水线结束（outcome 为 "ok" 或失败 reason）。
func RecordRun(outcome string) {
	PipelineRuns.WithLabelValues(outcome).Inc()
}

// RecordStage 记录阶段耗时。
func RecordStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordUpstream 记录一次外部调用；err 优先于 found。
func RecordUpstream(target string, found bool, err error) {
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case !found:
		result = "miss"
	}
	UpstreamRequests.WithLabelValues(target, result).Inc()
}

func RecordAPIRequest(method, endpoint string, status int, d time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}
