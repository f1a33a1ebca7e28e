package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxPageBytes 限制单页 HTML 的读取上限，避免异常响应拖垮内存。
const maxPageBytes = 8 << 20

// Error 是抓取阶段的可追溯错误。
// 上层可以据此把失败归类为 fetch / parse，并写入日志。
type Error struct {
	Provider string // provider name（小写）
	Stage    string // "fetch" 或 "parse"
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider=%s stage=%s: %v", e.Provider, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// FetchHTML 发起一次 GET 并返回 body。
//
// - 非 2xx：返回 *HTTPStatusError（403/503 且 body 是质询页时返回 *BlockedError）
// - 2xx 但 body 为空：返回错误
func FetchHTML(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	if c == nil {
		return nil, errors.New("http client 不能为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if isChallenge(resp, b) {
			return nil, &BlockedError{URL: u, Reason: "cf-challenge"}
		}
		return nil, &HTTPStatusError{URL: u, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	if len(b) == 0 {
		return nil, errors.New("empty response body")
	}
	return b, nil
}

func isChallenge(resp *http.Response, body []byte) bool {
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusServiceUnavailable {
		return false
	}
	if strings.EqualFold(resp.Header.Get("cf-mitigated"), "challenge") {
		return true
	}
	return bytes.Contains(body, []byte("challenge-platform")) || bytes.Contains(body, []byte("<title>Just a moment...</title>"))
}

// ResolveURL 把 href 解析为绝对 URL：
// - "//host/x" 补 https:
// - "http(s)://..." 原样返回
// - 其它（含 "/x" 这种站点根相对路径）按 base 解析
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	ru, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(ru).String()
}
