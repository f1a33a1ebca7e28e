// Package server 提供推荐流水线的 JSON HTTP API。
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/John-Robertt/BoxRec/internal/app/recommend"
	"github.com/John-Robertt/BoxRec/internal/domain"
	"github.com/John-Robertt/BoxRec/internal/logging"
)

const (
	codeBadRequest  = "bad_request"
	codeInternal    = "internal"
	messageInternal = "服务内部错误，请稍后再试。"

	maxBodyBytes    = 1 << 16
	slowRequest     = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// RecommendRequest 是 POST /api/recommend 的请求体。
type RecommendRequest struct {
	Username      string `json:"username" validate:"required,max=64"`
	FilterWatched bool   `json:"filter_watched"`
}

type errorBody struct {
	Error     errorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Server struct {
	deps     recommend.Deps
	validate *validator.Validate
}

func New(deps recommend.Deps) *Server {
	return &Server{deps: deps, validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Handler 返回挂好中间件与路由的 http.Handler。
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID, accessLog(slowRequest), recoverJSON)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/api/recommend", s.handleRecommend)
	return r
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "请求体必须是合法 JSON：{\"username\": string, \"filter_watched\": bool}")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, domain.ReasonInvalidUsername, domain.ReasonMessage(domain.ReasonInvalidUsername))
		return
	}

	res, err := recommend.Execute(r.Context(), s.deps, recommend.Request{
		Username:      req.Username,
		FilterWatched: req.FilterWatched,
	})
	if err != nil {
		var e *recommend.Error
		if !errors.As(err, &e) {
			logging.C(r.Context()).Error().Err(err).Msg("recommend failed")
			writeError(w, r, http.StatusInternalServerError, codeInternal, messageInternal)
			return
		}
		writeError(w, r, StatusFor(e.Reason), e.Reason, e.Message())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// StatusFor 把流水线失败 reason 映射为 HTTP 状态码。
func StatusFor(reason string) int {
	switch reason {
	case domain.ReasonInvalidUsername:
		return http.StatusBadRequest
	case domain.ReasonFavoritesNotFound:
		return http.StatusNotFound
	case domain.ReasonGeneratorFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, errorBody{
		Error:     errorDetail{Code: code, Message: msg},
		RequestID: logging.RequestID(r.Context()),
	})
}

// ListenAndServe 启动 HTTP 服务，ctx 取消时优雅关闭。
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	logging.Named("server").Info().Str("addr", addr).Msg("listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shCtx)
	}
}
