package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewScrapeClient_ProxyDisablesKeepAlive(t *testing.T) {
	c, err := NewScrapeClient("http://127.0.0.1:8080", 0)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr, ok := c.Transport.(*Transport)
	if !ok {
		t.Fatalf("期望 *Transport，实际 %T", c.Transport)
	}
	if tr.Base.Proxy == nil {
		t.Fatalf("期望启用代理，但 Proxy=nil")
	}
	if !tr.Base.DisableKeepAlives || !tr.DisableKeepAlives {
		t.Fatalf("代理模式应禁用 keep-alive：base=%v tr=%v", tr.Base.DisableKeepAlives, tr.DisableKeepAlives)
	}
	if c.Timeout != DefaultTimeout {
		t.Fatalf("timeout<=0 应回退默认值，实际 %v", c.Timeout)
	}
}

func TestNewAPIClient_NoBrowserHeaders(t *testing.T) {
	c, err := NewAPIClient("", 3*time.Second)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr := c.Transport.(*Transport)
	if tr.BrowserHeaders {
		t.Fatalf("API client 不应伪装浏览器")
	}
	if tr.Base.Proxy != nil || tr.Base.DisableKeepAlives {
		t.Fatalf("无代理时不应改变默认连接策略")
	}
	if c.Timeout != 3*time.Second {
		t.Fatalf("期望 timeout=3s，实际 %v", c.Timeout)
	}
}

func TestNewScrapeClient_InvalidProxyURL(t *testing.T) {
	if _, err := NewScrapeClient("http://[::1", 0); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}

func TestScrapeClient_SendsBrowserHeaders(t *testing.T) {
	var gotUA, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c, err := NewScrapeClient("", time.Second)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("请求失败：%v", err)
	}
	resp.Body.Close()

	if !strings.HasPrefix(gotUA, "Mozilla/5.0") {
		t.Fatalf("期望浏览器 UA，实际 %q", gotUA)
	}
	if gotLang != AcceptLanguage {
		t.Fatalf("期望 Accept-Language=%q，实际 %q", AcceptLanguage, gotLang)
	}
}

func TestScrapeClient_KeepsCallerHeaders(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	c, _ := NewScrapeClient("", time.Second)
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("User-Agent", "custom/1.0")
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("请求失败：%v", err)
	}
	resp.Body.Close()
	if gotUA != "custom/1.0" {
		t.Fatalf("不应覆盖调用方 UA，实际 %q", gotUA)
	}
}

func TestTransport_CanceledContextStopsRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close() // 之后的连接都会被拒绝

	tr := &Transport{Base: &http.Transport{}, RetryMax: 5, RetryDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	done := make(chan error, 1)
	go func() {
		_, err := tr.RoundTrip(req)
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("期望错误，但得到 nil")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("ctx 已取消时不应继续等待重试")
	}
}
