// Package stub serves the backend's /api/chat contract for local runs and
// tests. It does no retrieval or synthesis.
package stub

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// EmptyQueryText 与真实后端对空查询的回复一致
const EmptyQueryText = "Please enter a question."

var citationPattern = regexp.MustCompile(`\[.*?\]`)

// Answerer 为一次查询生成回答文本
type Answerer func(ctx context.Context, query string) (string, error)

// EchoAnswerer 原样复述问题
func EchoAnswerer(_ context.Context, query string) (string, error) {
	return fmt.Sprintf("You asked: %s", query), nil
}

type Options struct {
	Answerer Answerer
	// Audio 非空时随每个回答返回（原始字节，传输时编码为 base64）
	Audio  []byte
	Logger *zap.Logger
}

type Handler struct {
	answer Answerer
	audio  string
	logger *zap.Logger
}

func New(opts Options) *Handler {
	h := &Handler{
		answer: opts.Answerer,
		logger: opts.Logger,
	}
	if h.answer == nil {
		h.answer = EchoAnswerer
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if len(opts.Audio) > 0 {
		h.audio = base64.StdEncoding.EncodeToString(opts.Audio)
	}
	return h
}

// RegisterRoutes 把接口挂到 r 上
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.chat)
}

// NewRouter 返回挂在 /api 下的完整路由
func NewRouter(opts Options) http.Handler {
	h := New(opts)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Route("/api", func(api chi.Router) {
		h.RegisterRoutes(api)
	})
	return r
}

type chatRequest struct {
	Query string `json:"query"`
}

type chatResponse struct {
	Response string `json:"response"`
	Audio    string `json:"audio"`
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		respondJSON(w, chatResponse{Response: EmptyQueryText, Audio: ""})
		return
	}

	text, err := h.answer(r.Context(), req.Query)
	if err != nil {
		h.logger.Warn("answer failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, chatResponse{Response: CleanResponse(text), Audio: h.audio})
}

// CleanResponse 去掉 [doc1] 之类的引用标记
func CleanResponse(text string) string {
	return strings.TrimSpace(citationPattern.ReplaceAllString(text, ""))
}

func respondJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Info("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	})
}
