package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPChannel 请求/响应通道实现
// 每次Send对应一次HTTP往返，调用之间不保留状态，可并发使用
type HTTPChannel struct {
	baseURL    string
	auth       Decorator
	httpClient *http.Client
}

// NewHTTPChannel 创建HTTP通道
func NewHTTPChannel(baseURL string, opts Options) *HTTPChannel {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &HTTPChannel{
		baseURL: strings.TrimRight(baseURL, "/"),
		auth:    opts.Auth,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Send 发送一次请求并等待响应
func (c *HTTPChannel) Send(ctx context.Context, req *Request) (*Response, error) {
	u := c.buildURL(req)

	var bodyReader io.Reader
	if req.Method == http.MethodPost && req.Payload != nil {
		data, err := json.Marshal(req.Payload)
		if err != nil {
			return nil, &Error{Kind: KindProtocol, Message: "marshal payload", Err: err}
		}
		bodyReader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, bodyReader)
	if err != nil {
		return nil, &Error{Kind: KindProtocol, Message: "create request", Err: err}
	}

	if bodyReader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for key, values := range req.Headers {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	if c.auth != nil {
		c.auth.Decorate(httpReq.Header)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifySendError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindConnection, Message: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, body)
	}

	return &Response{Status: resp.StatusCode, Body: body}, nil
}

// Ping 请求服务端根路径检查存活
func (c *HTTPChannel) Ping(ctx context.Context) error {
	_, err := c.Send(ctx, &Request{Method: http.MethodGet, Path: ""})
	return err
}

// Close 关闭空闲连接
func (c *HTTPChannel) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// buildURL 拼接请求URL与查询参数
func (c *HTTPChannel) buildURL(req *Request) string {
	u := c.baseURL
	if req.Path != "" {
		u += "/" + strings.TrimLeft(req.Path, "/")
	}
	if len(req.Query) > 0 {
		params := url.Values{}
		for key, value := range req.Query {
			params.Set(key, value)
		}
		u += "?" + params.Encode()
	}
	return u
}

// classifySendError 区分超时与连接失败
func classifySendError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "http request", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Message: "http request", Err: err}
	}
	return &Error{Kind: KindConnection, Message: "http request", Err: err}
}

// 确保实现了Channel接口
var _ Channel = (*HTTPChannel)(nil)
