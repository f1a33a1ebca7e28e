package letterboxd

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/John-Robertt/BoxRec/internal/domain"
	providerx "github.com/John-Robertt/BoxRec/internal/provider"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("读取 fixture 失败：%v", err)
	}
	return b
}

func serveFixtures(t *testing.T, routes map[string]string) (*httptest.Server, Site) {
	t.Helper()
	mux := http.NewServeMux()
	for path, name := range routes {
		path := path
		body := readFixture(t, name)
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != path {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write(body)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, Site{BaseURL: srv.URL, Client: srv.Client()}
}

func TestParseFavorites_HeadingImagesCappedAtFour(t *testing.T) {
	titles, trace, err := ParseFavorites(readFixture(t, "profile.html"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := []string{"Parasite", "In the Mood for Love", "Spirited Away", "Amélie"}
	if !reflect.DeepEqual(titles, want) {
		t.Fatalf("期望 %v，实际 %v", want, titles)
	}
	if len(trace) != 1 || trace[0].Name != "heading-images" || trace[0].Found != 5 || trace[0].Added != 4 {
		t.Fatalf("trace 不符合预期：%+v", trace)
	}
}

func TestParseFavorites_FallsBackToPosterContainers(t *testing.T) {
	titles, trace, err := ParseFavorites(readFixture(t, "profile_no_alt.html"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := []string{"Her (2013)", "Heat (1995)"}
	if !reflect.DeepEqual(titles, want) {
		t.Fatalf("期望 %v，实际 %v", want, titles)
	}
	if len(trace) != len(favoriteStrategies) {
		t.Fatalf("未凑满时应执行全部策略：%+v", trace)
	}
	if trace[1].Found != 3 || trace[1].Added != 2 || trace[2].Added != 0 {
		t.Fatalf("去重计数不符合预期：%+v", trace)
	}
}

func TestParseFavorites_PageWidePosters(t *testing.T) {
	html := []byte(`<html><body><ul>
<li class="poster-container" data-film-name="Alien (1979)"></li>
<li class="poster-container" data-film-name=" "></li>
</ul></body></html>`)
	titles, _, err := ParseFavorites(html)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !reflect.DeepEqual(titles, []string{"Alien (1979)"}) {
		t.Fatalf("期望整页兜底命中，实际 %v", titles)
	}
}

func TestFavorites_NotFound(t *testing.T) {
	_, site := serveFixtures(t, map[string]string{"/alice/": "profile_empty.html"})

	_, err := site.Favorites(context.Background(), domain.Username("alice"))
	if !errors.Is(err, ErrFavoritesNotFound) {
		t.Fatalf("期望 ErrFavoritesNotFound，实际 %v", err)
	}
}

func TestFavorites_OK(t *testing.T) {
	_, site := serveFixtures(t, map[string]string{"/alice/": "profile.html"})

	titles, err := site.Favorites(context.Background(), domain.Username("alice"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(titles) != MaxFavorites || titles[0] != "Parasite" {
		t.Fatalf("结果不符合预期：%v", titles)
	}
}

func TestFavorites_HTTP404IsFetchError(t *testing.T) {
	_, site := serveFixtures(t, map[string]string{"/alice/": "profile.html"})

	_, err := site.Favorites(context.Background(), domain.Username("nobody"))
	var pe *providerx.Error
	if !errors.As(err, &pe) || pe.Stage != "fetch" {
		t.Fatalf("期望 fetch 阶段错误，实际 %v", err)
	}
	var se *providerx.HTTPStatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Fatalf("期望 404 HTTPStatusError，实际 %v", err)
	}
	if errors.Is(err, ErrFavoritesNotFound) {
		t.Fatalf("抓取失败不应被当成“没有最爱影片”")
	}
}

func TestParseWatchedPage_SlugsAndNext(t *testing.T) {
	titles, next, err := ParseWatchedPage(readFixture(t, "films_page1.html"), "https://letterboxd.com/alice/films/")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := []string{"Parasite 2019", "The Godfather", "Her"}
	if !reflect.DeepEqual(titles, want) {
		t.Fatalf("期望 %v，实际 %v", want, titles)
	}
	if next != "https://letterboxd.com/alice/films/page/2/" {
		t.Fatalf("next 不符合预期：%q", next)
	}
}

func TestParseWatchedPage_ImgFallbackNoNext(t *testing.T) {
	titles, next, err := ParseWatchedPage(readFixture(t, "films_page2.html"), "https://letterboxd.com/alice/films/page/2/")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !reflect.DeepEqual(titles, []string{"Heat", "HER"}) {
		t.Fatalf("img 兜底结果不符合预期：%v", titles)
	}
	if next != "" {
		t.Fatalf("span.next 不是链接，期望无下一页，实际 %q", next)
	}
}

func TestWatched_FollowsPaginationAndDedups(t *testing.T) {
	_, site := serveFixtures(t, map[string]string{
		"/alice/films/":        "films_page1.html",
		"/alice/films/page/2/": "films_page2.html",
	})

	res := site.Watched(context.Background(), domain.Username("alice"), 0)
	want := []string{"Parasite 2019", "The Godfather", "Her", "Heat"}
	if !reflect.DeepEqual(res.Titles, want) {
		t.Fatalf("期望 %v，实际 %v", want, res.Titles)
	}
	if res.Pages != 2 || res.Stop != providerx.StopNoNext || res.Err != nil {
		t.Fatalf("分页状态不符合预期：%+v", res)
	}
}

func TestWatched_SelfLinkStopsAtMaxPages(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`<html><body>
<div data-film-slug="loop-film"></div>
<a class="next" href="` + r.URL.Path + `">next</a>
</body></html>`))
	}))
	t.Cleanup(srv.Close)
	site := Site{BaseURL: srv.URL, Client: srv.Client()}

	res := site.Watched(context.Background(), domain.Username("loop"), 3)
	if hits.Load() != 3 {
		t.Fatalf("期望恰好抓取 3 页，实际 %d", hits.Load())
	}
	if res.Stop != providerx.StopMaxPages || res.Pages != 3 {
		t.Fatalf("期望 max_pages 结束，实际 %+v", res)
	}
	if !reflect.DeepEqual(res.Titles, []string{"Loop Film"}) {
		t.Fatalf("重复页应被去重：%v", res.Titles)
	}
}

func TestWatched_FetchFailureKeepsPartial(t *testing.T) {
	page1 := readFixture(t, "films_page1.html")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/alice/films/" {
			_, _ = w.Write(page1)
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	site := Site{BaseURL: srv.URL, Client: srv.Client()}

	res := site.Watched(context.Background(), domain.Username("alice"), 5)
	if len(res.Titles) != 3 || res.Pages != 1 {
		t.Fatalf("应保留第一页结果：%+v", res)
	}
	if res.Stop != providerx.StopFetchFailed || res.Err == nil {
		t.Fatalf("期望 fetch_failed，实际 %+v", res)
	}
}

func TestWatched_FirstPageFailureIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	site := Site{BaseURL: srv.URL, Client: srv.Client()}

	res := site.Watched(context.Background(), domain.Username("ghost"), 5)
	if len(res.Titles) != 0 || res.Titles == nil {
		t.Fatalf("期望空（非 nil）结果，实际 %#v", res.Titles)
	}
	if res.Stop != providerx.StopFetchFailed {
		t.Fatalf("期望 fetch_failed，实际 %s", res.Stop)
	}
}

func TestWatched_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := Site{Client: http.DefaultClient}.Watched(ctx, domain.Username("alice"), 5)
	if res.Stop != providerx.StopCanceled || len(res.Titles) != 0 {
		t.Fatalf("期望 canceled，实际 %+v", res)
	}
}

func TestAdvance(t *testing.T) {
	cur := Cursor{URL: "u1", Page: 1}
	if next, stop := advance(cur, "", 5); !next.Done() || stop != providerx.StopNoNext {
		t.Fatalf("无 next 应结束：%+v %s", next, stop)
	}
	if next, stop := advance(cur, "u2", 1); !next.Done() || stop != providerx.StopMaxPages {
		t.Fatalf("超过上限应结束：%+v %s", next, stop)
	}
	next, stop := advance(cur, "u2", 5)
	if next.Done() || next.Page != 2 || next.URL != "u2" || stop != "" {
		t.Fatalf("应推进到第 2 页：%+v %s", next, stop)
	}
}
