// Package transport provides transport channel definitions for client operations.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	logiface "github.com/easyapi/easyaccess/pkg/interfaces/infrastructure/log"
)

// Kind 传输通道类型
type Kind string

const (
	// KindHTTP 普通请求/响应通道
	KindHTTP Kind = "http"
	// KindWebSocket 持久化双向通道
	KindWebSocket Kind = "websocket"
)

// DefaultTimeout 默认请求超时时间
const DefaultTimeout = 30 * time.Second

// Endpoint 服务端端点配置，客户端构造后不可变
type Endpoint struct {
	BaseURL string `json:"base_url"`
	Kind    Kind   `json:"kind"`
}

// Request 一次出站请求
type Request struct {
	Method  string            // GET 或 POST
	Path    string            // 相对于端点的路径，如 "entries/"
	Query   map[string]string // GET 查询参数
	Payload interface{}       // POST 请求体，JSON序列化
	Headers http.Header       // 附加请求头（认证头由通道统一附加）
}

// Response 服务端响应原文
type Response struct {
	Status int
	Body   json.RawMessage
}

// Decode 将响应体解析到result
func (r *Response) Decode(result interface{}) error {
	if err := json.Unmarshal(r.Body, result); err != nil {
		return &Error{Kind: KindProtocol, Message: "decode response", Err: err}
	}
	return nil
}

// Decorator 为出站请求附加认证信息
// 由auth.Context实现；HTTP通道对每个请求调用，WebSocket通道在握手时调用
type Decorator interface {
	Decorate(header http.Header)
}

// Options 通道构造选项
type Options struct {
	Timeout time.Duration   // 请求超时，零值使用DefaultTimeout
	Auth    Decorator       // 认证装饰器，可为nil
	Logger  logiface.Logger // 日志记录器
}

// Channel 统一传输通道接口 - 调用方与服务端通信的唯一通道
// 调用点不得依据具体实现分支，HTTP与WebSocket语义一致
type Channel interface {
	// Send 发送一次请求并等待响应
	// 多个逻辑调用方可并发共用同一通道
	Send(ctx context.Context, req *Request) (*Response, error)

	// Ping 检查通道存活状态
	Ping(ctx context.Context) error

	// Close 关闭通道，未完成的发送以连接错误结束
	Close() error
}
