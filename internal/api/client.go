package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Zacy-Sokach/RagChat/internal/utils"
	"go.uber.org/zap"
)

const (
	apiSuffix    = "/api"
	chatEndpoint = "/chat"
)

// ErrDecodeResponse 表示 2xx 响应体无法解析
var ErrDecodeResponse = errors.New("解析响应失败")

// APIError 表示后端返回了非 2xx 状态码，Body 原样保留
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API请求失败 (状态码: %d): %s", e.StatusCode, e.Body)
}

// TransportError 表示没有拿到响应（网络、DNS、超时）或响应无法解析
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return "transport error"
	}
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// 全局共享的HTTP客户端，实现连接池化。
// 不设置 Timeout：请求的超时由传输层默认值决定。
var (
	sharedHTTPClient *http.Client
	httpClientOnce   sync.Once
)

func sharedTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// getSharedHTTPClient 返回共享的HTTP客户端实例
func getSharedHTTPClient() *http.Client {
	httpClientOnce.Do(func() {
		sharedHTTPClient = &http.Client{Transport: sharedTransport()}
	})
	return sharedHTTPClient
}

type Client struct {
	endpoint string
	doer     utils.Doer
	logger   *zap.Logger
}

type ClientOption func(*Client)

// WithDoer 替换底层 HTTP 执行者，测试时使用
func WithDoer(d utils.Doer) ClientOption {
	return func(c *Client) {
		if d != nil {
			c.doer = d
		}
	}
}

// WithTimeout 为客户端显式设置超时；d <= 0 时保持无超时
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.doer = &http.Client{Timeout: d, Transport: sharedTransport()}
		}
	}
}

func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient 创建后端客户端
// origin: 页面来源，例如 http://localhost:8000，会自动追加 /api
func NewClient(origin string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: BaseURL(origin) + chatEndpoint,
		doer:     getSharedHTTPClient(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL 由 origin 推导出 API 根地址
func BaseURL(origin string) string {
	return strings.TrimRight(origin, "/") + apiSuffix
}

// Endpoint 返回聊天接口的完整地址
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Chat 发送一次查询并返回后端响应。
// 非 2xx 返回 *APIError，拿不到响应或响应无法解析时返回 *TransportError。
func (c *Client) Chat(ctx context.Context, query string) (*ChatResponse, error) {
	body, err := json.Marshal(ChatRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("创建请求失败: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.doer.Do(httpReq)
	if err != nil {
		c.logger.Debug("chat request failed", zap.String("endpoint", c.endpoint), zap.Error(err))
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("chat response",
		zap.String("endpoint", c.endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(bodyBytes),
		}
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("%w: %v", ErrDecodeResponse, err)}
	}

	return &chatResp, nil
}
