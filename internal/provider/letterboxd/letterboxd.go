// Package letterboxd 实现 Letterboxd 公开主页的抓取与 HTML 解析。
//
// 约束：
// - 抓取不做缓存/限速（重试由 httpx 统一控制）
// - Parse* 必须是纯函数（只依赖输入 html + pageURL）
package letterboxd

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/John-Robertt/BoxRec/internal/domain"
	providerx "github.com/John-Robertt/BoxRec/internal/provider"
)

const (
	defaultBaseURL = "https://letterboxd.com"
	// DefaultMaxPages 是观看记录分页的默认上限。
	DefaultMaxPages = 20
)

var _ providerx.Profile = Site{}

// Site 是 Letterboxd 站点的抓取入口。
type Site struct {
	// BaseURL 允许切换站点根地址（测试指向 httptest；为空时使用 https://letterboxd.com）。
	BaseURL string
	Client  *http.Client
}

func (Site) Name() string { return "letterboxd" }

func (s Site) baseURL() string {
	u := strings.TrimSpace(s.BaseURL)
	if u == "" {
		return defaultBaseURL
	}
	return strings.TrimRight(u, "/")
}

// ProfileURL 返回主页地址：<base>/<user>/
func (s Site) ProfileURL(user domain.Username) string {
	return s.baseURL() + "/" + url.PathEscape(string(user)) + "/"
}

// FilmsURL 返回“看过的电影”列表首页：<base>/<user>/films/
func (s Site) FilmsURL(user domain.Username) string {
	return s.baseURL() + "/" + url.PathEscape(string(user)) + "/films/"
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }
