package letterboxd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/BoxRec/internal/domain"
	"github.com/John-Robertt/BoxRec/internal/logging"
	providerx "github.com/John-Robertt/BoxRec/internal/provider"
)

// MaxFavorites 是主页“最爱影片”的最大条数。
const MaxFavorites = 4

// ErrFavoritesNotFound 表示页面可访问但没有任何可识别的最爱影片。
var ErrFavoritesNotFound = errors.New("未找到最爱影片")

// StrategyResult 记录一次提取策略的执行情况（用于解释“标题从哪来”）。
type StrategyResult struct {
	Name  string
	Found int // 策略命中的候选数（含重复）
	Added int // 去重后实际追加的条数
}

// favoriteScope 是策略执行时的定位上下文。
type favoriteScope struct {
	doc *goquery.Document
	// section 是 "Favorite films" 标题最近的 section/div 祖先；未找到标题时为 nil。
	section *goquery.Selection
}

// favoriteStrategy 是一个独立的提取策略：只负责“找候选”，不负责去重与截断。
type favoriteStrategy struct {
	name string
	find func(sc favoriteScope) []string
}

// favoriteStrategies 按优先级排列；前面的策略凑满 MaxFavorites 后，后面的不再执行。
var favoriteStrategies = []favoriteStrategy{
	{name: "heading-images", find: findHeadingImages},
	{name: "container-posters", find: findContainerPosters},
	{name: "page-posters", find: findPagePosters},
}

const posterSelector = "li.poster-container[data-film-name]"

// Favorites 抓取主页并解析最爱影片（最多 4 条）。
//
// 返回：
// - 非 2xx / 网络错误：*providerx.Error{Stage:"fetch"}
// - 页面可解析但 0 条：ErrFavoritesNotFound
func (s Site) Favorites(ctx context.Context, user domain.Username) (titles []string, err error) {
	if user == "" {
		return nil, errors.New("username 不能为空")
	}
	pageURL := s.ProfileURL(user)

	html, err := providerx.FetchHTML(ctx, s.Client, pageURL)
	if err != nil {
		return nil, &providerx.Error{Provider: s.Name(), Stage: "fetch", Err: err}
	}

	defer func() {
		if r := recover(); r != nil {
			titles = nil
			err = &providerx.Error{Provider: s.Name(), Stage: "parse", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	titles, trace, err := ParseFavorites(html)
	if err != nil {
		return nil, &providerx.Error{Provider: s.Name(), Stage: "parse", Err: err}
	}

	ev := logging.C(ctx).Debug().Str("url", pageURL)
	for _, st := range trace {
		ev = ev.Int(st.Name, st.Added)
	}
	ev.Int("total", len(titles)).Msg("favorites parsed")

	if len(titles) == 0 {
		return nil, ErrFavoritesNotFound
	}
	return titles, nil
}

// ParseFavorites 按策略顺序提取最爱影片，精确文本去重，最多返回 MaxFavorites 条。
// 0 条不是错误（由调用方决定如何处理）；trace 只包含实际执行过的策略。
func ParseFavorites(html []byte) ([]string, []StrategyResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, nil, err
	}

	sc := favoriteScope{doc: doc, section: findFavoritesSection(doc)}

	titles := make([]string, 0, MaxFavorites)
	seen := make(map[string]struct{}, MaxFavorites)
	trace := make([]StrategyResult, 0, len(favoriteStrategies))

	for _, st := range favoriteStrategies {
		if len(titles) >= MaxFavorites {
			break
		}
		cands := st.find(sc)
		res := StrategyResult{Name: st.name, Found: len(cands)}
		for _, c := range cands {
			if len(titles) >= MaxFavorites {
				break
			}
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			titles = append(titles, c)
			res.Added++
		}
		trace = append(trace, res)
	}
	return titles, trace, nil
}

// findFavoritesSection 定位 "Favorite films" 标题（h2/h3，去空白后小写前缀匹配）最近的 section/div 祖先。
func findFavoritesSection(doc *goquery.Document) *goquery.Selection {
	var heading *goquery.Selection
	doc.Find("h2, h3").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		txt := strings.ToLower(normSpace(s.Text()))
		if strings.HasPrefix(txt, "favorite films") || strings.HasPrefix(txt, "favourite films") {
			heading = s
			return false
		}
		return true
	})
	if heading == nil {
		return nil
	}
	sec := heading.Closest("section, div")
	if sec.Length() == 0 {
		return nil
	}
	return sec
}

func findHeadingImages(sc favoriteScope) []string {
	if sc.section == nil {
		return nil
	}
	var out []string
	sc.section.Find("img[alt]").Each(func(_ int, s *goquery.Selection) {
		if alt := strings.TrimSpace(s.AttrOr("alt", "")); alt != "" {
			out = append(out, alt)
		}
	})
	return out
}

func findContainerPosters(sc favoriteScope) []string {
	scope := sc.doc.Selection
	if sc.section != nil {
		scope = sc.section
	}
	return posterNames(scope)
}

func findPagePosters(sc favoriteScope) []string {
	return posterNames(sc.doc.Selection)
}

func posterNames(scope *goquery.Selection) []string {
	var out []string
	scope.Find(posterSelector).Each(func(_ int, s *goquery.Selection) {
		if name := strings.TrimSpace(s.AttrOr("data-film-name", "")); name != "" {
			out = append(out, name)
		}
	})
	return out
}
