package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorKind 传输错误分类，调用方据此决定是否重试
type ErrorKind string

const (
	// KindConnection 连接失败（拒绝连接、连接中断）
	KindConnection ErrorKind = "connection"
	// KindTimeout 请求超时
	KindTimeout ErrorKind = "timeout"
	// KindAuth 认证被拒绝（HTTP 401/403）
	KindAuth ErrorKind = "auth"
	// KindProtocol 协议错误（畸形帧、无法解析的响应）
	KindProtocol ErrorKind = "protocol"
	// KindServer 服务端错误响应
	KindServer ErrorKind = "server"
)

// Error 传输层错误，携带分类与底层诊断信息
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("transport %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// statusError 将非2xx状态码映射为传输错误
func statusError(status int, body []byte) *Error {
	message := serverMessage(body)
	if message == "" {
		message = http.StatusText(status)
	}

	kind := KindServer
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		kind = KindAuth
	}

	return &Error{Kind: kind, Message: fmt.Sprintf("http %d: %s", status, message)}
}

// serverMessage 尽力从错误响应体中提取可读信息
func serverMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var payload struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Detail != "" {
			return payload.Detail
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	var text string
	if err := json.Unmarshal(body, &text); err == nil {
		return text
	}
	return string(body)
}
