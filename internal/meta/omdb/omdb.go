// Package omdb 实现基于 OMDb API 的元数据解析器。
package omdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/John-Robertt/BoxRec/internal/domain"
	"github.com/John-Robertt/BoxRec/internal/meta"
	"github.com/John-Robertt/BoxRec/internal/metrics"
	"github.com/John-Robertt/BoxRec/internal/title"
)

// DefaultBaseURL 是 OMDb 的公开入口。
const DefaultBaseURL = "http://www.omdbapi.com/"

const maxBodyBytes = 1 << 20

var _ meta.Resolver = (*Client)(nil)

// Client 按 "t=<name>&y=<year>" 查询单部电影。
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// New 构造 Client；baseURL 为空时使用 DefaultBaseURL。
func New(baseURL, apiKey string, c *http.Client) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{BaseURL: baseURL, APIKey: apiKey, HTTP: c}
}

// StatusError 表示 OMDb 返回了非 2xx。
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string { return fmt.Sprintf("omdb: http %d", e.StatusCode) }

type response struct {
	Response string `json:"Response"`
	Error    string `json:"Error"`
	Title    string `json:"Title"`
	Year     string `json:"Year"`
	Poster   string `json:"Poster"`
	IMDbID   string `json:"imdbID"`
	Genre    string `json:"Genre"`
}

// Resolve 查询标题；"Name (2020)" 会拆成 t=Name&y=2020。
// Response=="False" 视为不存在（非错误）。
func (c *Client) Resolve(ctx context.Context, t string) (m domain.Movie, found bool, err error) {
	defer func() { metrics.RecordUpstream("omdb", found, err) }()

	if c.HTTP == nil {
		return domain.Movie{}, false, errors.New("omdb: http client 不能为空")
	}
	name, year := title.SplitYear(t)
	if name == "" {
		return domain.Movie{}, false, nil
	}

	u, err := c.queryURL(name, year)
	if err != nil {
		return domain.Movie{}, false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Movie{}, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return domain.Movie{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return domain.Movie{}, false, &StatusError{StatusCode: resp.StatusCode}
	}

	var r response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&r); err != nil {
		return domain.Movie{}, false, fmt.Errorf("omdb: 解码响应失败：%w", err)
	}
	if strings.EqualFold(r.Response, "False") {
		return domain.Movie{}, false, nil
	}

	return domain.Movie{
		Title:  na(r.Title),
		Year:   na(r.Year),
		Poster: na(r.Poster),
		IMDbID: na(r.IMDbID),
		Genre:  na(r.Genre),
	}, true, nil
}

func (c *Client) queryURL(name, year string) (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("omdb: base url 无效：%w", err)
	}
	q := u.Query()
	q.Set("apikey", c.APIKey)
	q.Set("t", name)
	if year != "" {
		q.Set("y", year)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// na 把 OMDb 的缺省占位 "N/A" 归一为空串。
func na(s string) string {
	s = strings.TrimSpace(s)
	if s == "N/A" {
		return ""
	}
	return s
}
