// Package recommend 编排一次推荐：最爱影片 -> 生成候选池 -> （可选）观看记录过滤 -> 元数据补全。
//
// 约束：单次请求内严格顺序执行，不做 goroutine 扇出；所有阻塞调用都接受 ctx。
package recommend

import (
	"context"
	"errors"
	"time"

	"github.com/John-Robertt/BoxRec/internal/domain"
	"github.com/John-Robertt/BoxRec/internal/history"
	"github.com/John-Robertt/BoxRec/internal/llm"
	"github.com/John-Robertt/BoxRec/internal/logging"
	"github.com/John-Robertt/BoxRec/internal/meta"
	"github.com/John-Robertt/BoxRec/internal/metrics"
	"github.com/John-Robertt/BoxRec/internal/pool"
	"github.com/John-Robertt/BoxRec/internal/provider"
)

const (
	// PoolSizeFiltered 是开启观看过滤时向生成器索要的候选数（过滤后仍需凑满 history.DefaultCount）。
	PoolSizeFiltered = 30
	// PoolSizeDirect 是不过滤时的候选数。
	PoolSizeDirect = history.DefaultCount
)

// Deps 是流水线的外部协作者；由调用方（CLI/server）按配置构造后注入。
type Deps struct {
	Profile   provider.Profile
	Resolver  meta.Resolver
	Generator llm.Generator

	// MaxWatchedPages <=0 时由 Profile 使用默认值。
	MaxWatchedPages int
}

type Request struct {
	Username      string
	FilterWatched bool
}

// Execute 执行一次推荐。
func Execute(ctx context.Context, deps Deps, req Request) (domain.Result, error) {
	return ExecuteWithObserver(ctx, deps, req, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 输出阶段进度。
//
// 失败时返回 *Error（ReasonOf 可取出 reason）；观看记录抓取失败不会终止流程。
func ExecuteWithObserver(ctx context.Context, deps Deps, req Request, obs Observer) (res domain.Result, err error) {
	started := time.Now().UTC()
	if obs != nil {
		obs.OnStart(req)
	}
	log := logging.C(ctx)

	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = ReasonOf(err)
			if outcome == "" {
				outcome = "internal"
			}
		}
		metrics.RecordRun(outcome)
	}()

	if deps.Profile == nil || deps.Generator == nil {
		return domain.Result{}, errors.New("recommend: Profile/Generator 未配置")
	}

	user, ok := domain.ParseUsername(req.Username)
	if !ok {
		return domain.Result{}, fail(domain.ReasonInvalidUsername, nil)
	}

	done := func(name string, t0 time.Time, fields map[string]any) {
		dur := time.Since(t0)
		metrics.RecordStage(name, dur)
		log.Info().Str("stage", name).Dur("took", dur).Fields(fields).Msg("stage done")
		if obs != nil {
			obs.OnStageDone(name, fields, dur)
		}
	}

	// 1) 最爱影片：拿不到就无法构造提示词，直接终止。
	t0 := time.Now()
	favs, err := deps.Profile.Favorites(ctx, user)
	if err == nil && len(favs) == 0 {
		err = errors.New("empty favorites")
	}
	if err != nil {
		log.Warn().Err(err).Str("user", string(user)).Msg("favorites unavailable")
		return domain.Result{}, fail(domain.ReasonFavoritesNotFound, err)
	}
	done("favorites", t0, map[string]any{"count": len(favs)})

	// 2) 生成候选池。
	t0 = time.Now()
	desired := PoolSizeDirect
	if req.FilterWatched {
		desired = PoolSizeFiltered
	}
	text, err := deps.Generator.Generate(ctx, favs, desired)
	if err != nil {
		log.Warn().Err(err).Msg("generator failed")
		return domain.Result{}, fail(domain.ReasonGeneratorFailed, err)
	}
	candidates := pool.Parse(text)
	if len(candidates) == 0 {
		log.Warn().Int("raw_bytes", len(text)).Msg("generator output has no recognizable titles")
		return domain.Result{}, fail(domain.ReasonGeneratorFailed, errors.New("生成结果中没有可识别的标题"))
	}
	done("generate", t0, map[string]any{"desired": desired, "pool": len(candidates)})

	res = domain.Result{
		Username:      string(user),
		FilterWatched: req.FilterWatched,
		StartedAt:     started,
		PoolSize:      len(candidates),
	}

	// 3) 选出最终推荐。
	var sel history.Selection
	if req.FilterWatched {
		t0 = time.Now()
		wr := deps.Profile.Watched(ctx, user, deps.MaxWatchedPages)
		if wr.Err != nil {
			log.Warn().Err(wr.Err).Str("stop", string(wr.Stop)).Int("pages", wr.Pages).Msg("watched list incomplete, continuing")
		}
		metrics.WatchedPages.Observe(float64(wr.Pages))
		res.WatchedCount = len(wr.Titles)
		done("watched", t0, map[string]any{"titles": len(wr.Titles), "pages": wr.Pages, "stop": string(wr.Stop)})

		t0 = time.Now()
		sel = history.Filter(candidates, wr.Titles, history.DefaultCount)
		metrics.Backfilled.Add(float64(sel.Backfilled))
	} else {
		t0 = time.Now()
		sel = firstN(candidates, history.DefaultCount)
	}
	res.Backfilled = sel.Backfilled
	done("filter", t0, map[string]any{"pool": len(candidates), "unseen": sel.Unseen, "picked": len(sel.Picks), "backfilled": sel.Backfilled})

	// 4) 元数据补全：单条失败回退占位，不影响整批。
	t0 = time.Now()
	res.Favorites = meta.LookupAll(ctx, deps.Resolver, favs)
	movies := meta.LookupAll(ctx, deps.Resolver, sel.Titles())
	res.Recommendations = make([]domain.Recommendation, 0, len(movies))
	for i, m := range movies {
		res.Recommendations = append(res.Recommendations, domain.Recommendation{Movie: m, Seen: sel.Picks[i].Seen})
	}
	done("enrich", t0, map[string]any{"titles": len(favs) + len(movies)})

	res.FinishedAt = time.Now().UTC()
	res.Finalize()
	return res, nil
}

// firstN 不做过滤，直接取 pool 前 n 条。
func firstN(candidates []string, n int) history.Selection {
	if n > len(candidates) {
		n = len(candidates)
	}
	sel := history.Selection{Picks: make([]history.Pick, 0, n), Unseen: len(candidates)}
	for _, c := range candidates[:n] {
		sel.Picks = append(sel.Picks, history.Pick{Title: c})
	}
	return sel
}
