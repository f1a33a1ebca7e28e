package httpx

import (
	"errors"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	DefaultTimeout    = 15 * time.Second
	defaultRetryMax   = 2
	defaultRetryDelay = 300 * time.Millisecond

	// AcceptLanguage 固定为英文优先：Letterboxd 会按语言头调整部分标记文本（例如 "Favorite films"）。
	AcceptLanguage = "en-US,en;q=0.9,pt-BR;q=0.8,pt;q=0.7"
	acceptHTML     = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

// Transport 把“UA 池 + 浏览器请求头 + 代理 + keep-alive 策略 + 有界重试”固化为统一策略。
//
// 设计目标：站点抓取只负责“定位页面 + 解析 HTML”，不关心网络策略细节。
type Transport struct {
	Base *http.Transport

	ua *uaPool

	// BrowserHeaders 为 true 时补齐 UA/Accept-Language/Accept（调用方已设置的头不覆盖）。
	BrowserHeaders bool

	// RetryMax 表示最大重试次数（不含首次尝试）。例如 2 表示最多 3 次尝试。
	RetryMax   int
	RetryDelay time.Duration

	// DisableKeepAlives 决定是否对 Request 设置 Close=true。
	// 真正禁用 keep-alive 依赖 Base.DisableKeepAlives。
	DisableKeepAlives bool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// 只对“可重放”的请求做重试：GET/HEAD 且无 body。
	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
	max := t.RetryMax
	if max < 0 || !canRetry {
		max = 0
	}
	delay := t.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	return retry.DoWithData(
		func() (*http.Response, error) {
			return t.Base.RoundTrip(t.prepare(req))
		},
		retry.Attempts(uint(max+1)),
		retry.Context(req.Context()),
		retry.Delay(delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}

func (t *Transport) prepare(req *http.Request) *http.Request {
	// Clone 会复制 Header 等，避免在 RoundTripper 内部“污染”调用方的 request。
	r := req.Clone(req.Context())
	if t.BrowserHeaders {
		if r.Header.Get("User-Agent") == "" && t.ua != nil {
			r.Header.Set("User-Agent", t.ua.random())
		}
		if r.Header.Get("Accept-Language") == "" {
			r.Header.Set("Accept-Language", AcceptLanguage)
		}
		if r.Header.Get("Accept") == "" {
			r.Header.Set("Accept", acceptHTML)
		}
	}
	if t.DisableKeepAlives {
		r.Close = true
	}
	return r
}

// NewScrapeClient 构造用于抓取 Letterboxd 页面的 HTTP client。
//
// 规则：
// - 每个请求随机浏览器 UA + 固定 Accept-Language（部分站点按这两个头返回不同标记）
// - proxyURL 非空：必须走代理，且禁用 keep-alive（每请求新连接）
// - 有界重试 + 总超时（timeout<=0 时使用 DefaultTimeout）
func NewScrapeClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	return newClient(strings.TrimSpace(proxyURL), timeout, true)
}

// NewAPIClient 构造用于 OMDb/OpenAI 等 JSON API 的 HTTP client（不伪装浏览器）。
func NewAPIClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	return newClient(strings.TrimSpace(proxyURL), timeout, false)
}

func newClient(proxyURL string, timeout time.Duration, browser bool) (*http.Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	disableKeepAlives := false
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		base.Proxy = http.ProxyURL(u)
		base.DisableKeepAlives = true
		disableKeepAlives = true
	}

	tr := &Transport{
		Base:              base,
		ua:                globalUA,
		BrowserHeaders:    browser,
		RetryMax:          defaultRetryMax,
		RetryDelay:        defaultRetryDelay,
		DisableKeepAlives: disableKeepAlives,
	}
	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

type uaPool struct {
	mu  sync.Mutex
	rnd *rand.Rand
	uas []string
}

func (p *uaPool) random() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uas[p.rnd.Intn(len(p.uas))]
}

var globalUA = newUAPool()

func newUAPool() *uaPool {
	uas := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	}
	return &uaPool{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		uas: uas,
	}
}
