package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"pumpfun-indexer-sol/internal/logic/core"
	"pumpfun-indexer-sol/internal/logic/decoder"
	"pumpfun-indexer-sol/internal/logic/txadapter"
	"pumpfun-indexer-sol/internal/pkg/logger"

	"github.com/blocto/solana-go-sdk/rpc"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 4 << 20

// Server 运维 HTTP 服务：健康检查、Prometheus 指标、单笔交易解析
type Server struct {
	router  *chi.Mux
	srv     *http.Server
	rpc     *rpc.RpcClient // 为 nil 时 /v1/tx/{sig} 返回 503
	started time.Time
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewServer(addr string, gatherer prometheus.Gatherer, rpcClient *rpc.RpcClient) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		rpc:     rpcClient,
		started: time.Now(),
	}

	s.router.Get("/healthz", s.healthzHandler)
	if gatherer != nil {
		s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/decode", s.decodeHandler)
		r.Get("/tx/{sig}", s.txHandler)
	})

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler 暴露路由，便于测试
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() {
	logger.Infof("[Admin] HTTP 服务启动: addr=%s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("[Admin] HTTP 服务异常退出: %v", err)
	}
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

func (s *Server) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Millisecond).String(),
	})
}

// decodeHandler 请求体为 getTransaction 的 JSON 响应
func (s *Server) decodeHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	res, err := decoder.DecodeJSON(body)
	if err != nil {
		writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) txHandler(w http.ResponseWriter, r *http.Request) {
	if s.rpc == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "rpc endpoint not configured"})
		return
	}
	sig := chi.URLParam(r, "sig")
	raw, err := txadapter.FetchRawTransaction(r.Context(), s.rpc, sig)
	if err != nil {
		writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
		return
	}
	res, err := decoder.DecodeRaw(raw)
	if err != nil {
		writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func statusFor(err error) int {
	if errors.Is(err, core.ErrMalformedTransaction) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnf("[Admin] 写响应失败: %v", err)
	}
}
