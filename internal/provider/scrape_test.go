package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchHTML_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	b, err := FetchHTML(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if string(b) != "<html>ok</html>" {
		t.Fatalf("body 不符合预期：%q", string(b))
	}
}

func TestFetchHTML_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := FetchHTML(context.Background(), srv.Client(), srv.URL)
	var se *HTTPStatusError
	if !errors.As(err, &se) {
		t.Fatalf("期望 *HTTPStatusError，实际 %T: %v", err, err)
	}
	if se.StatusCode != http.StatusNotFound {
		t.Fatalf("期望 404，实际 %d", se.StatusCode)
	}
}

func TestFetchHTML_ChallengeIsBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<html><head><title>Just a moment...</title></head></html>`))
	}))
	defer srv.Close()

	_, err := FetchHTML(context.Background(), srv.Client(), srv.URL)
	var be *BlockedError
	if !errors.As(err, &be) {
		t.Fatalf("期望 *BlockedError，实际 %T: %v", err, err)
	}
	if be.Reason != "cf-challenge" {
		t.Fatalf("期望 reason=cf-challenge，实际 %q", be.Reason)
	}
}

func TestFetchHTML_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	if _, err := FetchHTML(context.Background(), srv.Client(), srv.URL); err == nil {
		t.Fatalf("空 body 应返回错误")
	}
}

func TestFetchHTML_NilClient(t *testing.T) {
	if _, err := FetchHTML(context.Background(), nil, "http://example.test"); err == nil {
		t.Fatalf("nil client 应返回错误")
	}
}

func TestResolveURL(t *testing.T) {
	cases := []struct {
		base, href, want string
	}{
		{"https://letterboxd.com/u/films/", "/u/films/page/2/", "https://letterboxd.com/u/films/page/2/"},
		{"https://letterboxd.com/u/films/", "page/2/", "https://letterboxd.com/u/films/page/2/"},
		{"https://letterboxd.com/u/films/", "//cdn.example/x", "https://cdn.example/x"},
		{"https://letterboxd.com/u/films/", "https://other.test/y", "https://other.test/y"},
		{"https://letterboxd.com/u/films/", "  ", ""},
	}
	for _, c := range cases {
		if got := ResolveURL(c.base, c.href); got != c.want {
			t.Fatalf("ResolveURL(%q,%q) 期望 %q，实际 %q", c.base, c.href, c.want, got)
		}
	}
}

func TestError_Unwrap(t *testing.T) {
	inner := &HTTPStatusError{StatusCode: 500}
	err := error(&Error{Provider: "letterboxd", Stage: "fetch", Err: inner})
	var se *HTTPStatusError
	if !errors.As(err, &se) || se.StatusCode != 500 {
		t.Fatalf("Error 应可 Unwrap 到内部错误：%v", err)
	}
}
