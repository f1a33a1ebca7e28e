package letterboxd

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/BoxRec/internal/domain"
	"github.com/John-Robertt/BoxRec/internal/logging"
	providerx "github.com/John-Robertt/BoxRec/internal/provider"
	"github.com/John-Robertt/BoxRec/internal/title"
)

// Cursor 是分页状态：URL 为空表示 Done，否则表示“即将抓取第 Page 页”。
type Cursor struct {
	URL  string
	Page int
}

func (c Cursor) Done() bool { return c.URL == "" }

// advance 计算下一个状态。
// next 为空（无下一页链接/无 href）或页码超过 maxPages 时返回 Done 以及结束原因。
func advance(cur Cursor, next string, maxPages int) (Cursor, providerx.StopReason) {
	if strings.TrimSpace(next) == "" {
		return Cursor{}, providerx.StopNoNext
	}
	if cur.Page+1 > maxPages {
		return Cursor{}, providerx.StopMaxPages
	}
	return Cursor{URL: next, Page: cur.Page + 1}, ""
}

// Watched 沿 "next" 链接逐页抓取观看记录，最多 maxPages 页（<=0 时使用 DefaultMaxPages）。
//
// 永不返回错误：任一页抓取失败即停止并返回已收集的部分；结果做一次全局大小写不敏感去重（保留首次出现）。
func (s Site) Watched(ctx context.Context, user domain.Username, maxPages int) (res providerx.WatchedResult) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	log := logging.C(ctx)

	defer func() {
		if r := recover(); r != nil {
			res = providerx.WatchedResult{
				Titles: []string{},
				Pages:  res.Pages,
				Stop:   providerx.StopPanic,
				Err:    &providerx.Error{Provider: s.Name(), Stage: "parse", Err: fmt.Errorf("panic: %v", r)},
			}
		}
	}()

	var all []string
	cur := Cursor{URL: s.FilmsURL(user), Page: 1}
	for !cur.Done() {
		if err := ctx.Err(); err != nil {
			res.Stop, res.Err = providerx.StopCanceled, err
			break
		}

		html, err := providerx.FetchHTML(ctx, s.Client, cur.URL)
		if err != nil {
			res.Stop = providerx.StopFetchFailed
			res.Err = &providerx.Error{Provider: s.Name(), Stage: "fetch", Err: err}
			log.Warn().Err(err).Str("url", cur.URL).Int("page", cur.Page).Msg("watched page fetch failed, keeping partial result")
			break
		}

		titles, next, err := ParseWatchedPage(html, cur.URL)
		if err != nil {
			res.Stop = providerx.StopFetchFailed
			res.Err = &providerx.Error{Provider: s.Name(), Stage: "parse", Err: err}
			break
		}
		all = append(all, titles...)
		res.Pages = cur.Page
		log.Debug().Str("url", cur.URL).Int("page", cur.Page).Int("titles", len(titles)).Msg("watched page parsed")

		cur, res.Stop = advance(cur, next, maxPages)
	}

	res.Titles = title.DedupFold(all)
	return res
}

// ParseWatchedPage 解析一页观看记录并返回本页标题与下一页绝对 URL（无下一页时为空）。
//
// 主策略：带 data-film-slug 的海报容器，slug -> 标题；
// 兜底：主策略 0 条时，收集整页所有非空 img[alt]。
func ParseWatchedPage(html []byte, pageURL string) (titles []string, next string, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, "", err
	}

	doc.Find("[data-film-slug]").Each(func(_ int, s *goquery.Selection) {
		if t := title.FromSlug(s.AttrOr("data-film-slug", "")); t != "" {
			titles = append(titles, t)
		}
	})
	if len(titles) == 0 {
		doc.Find("img[alt]").Each(func(_ int, s *goquery.Selection) {
			if alt := normSpace(s.AttrOr("alt", "")); alt != "" {
				titles = append(titles, alt)
			}
		})
	}

	if href, ok := doc.Find("a.next, a[rel='next']").First().Attr("href"); ok {
		next = providerx.ResolveURL(pageURL, href)
	}
	return titles, next, nil
}
