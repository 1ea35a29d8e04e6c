package transport

import "fmt"

// New 根据端点配置创建传输通道
// 通道类型在构造时选定，调用点不感知具体实现
func New(endpoint Endpoint, opts Options) (Channel, error) {
	if endpoint.BaseURL == "" {
		return nil, &Error{Kind: KindConnection, Message: "no endpoint configured"}
	}

	switch endpoint.Kind {
	case KindHTTP, "":
		return NewHTTPChannel(endpoint.BaseURL, opts), nil
	case KindWebSocket:
		return NewWSChannel(endpoint.BaseURL, opts)
	default:
		return nil, &Error{Kind: KindConnection, Message: fmt.Sprintf("unsupported transport kind %q", endpoint.Kind)}
	}
}
