package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	logiface "github.com/easyapi/easyaccess/pkg/interfaces/infrastructure/log"
)

// wsFrame WebSocket消息帧
// 请求与响应通过相同的ID关联，同一连接上可同时存在多个未完成请求
type wsFrame struct {
	ID      string            `json:"id"`
	Method  string            `json:"method,omitempty"`
	Path    string            `json:"path,omitempty"`
	Query   map[string]string `json:"query,omitempty"`
	Payload json.RawMessage   `json:"payload,omitempty"`
	Status  int               `json:"status,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// WSChannel 持久化WebSocket通道实现
// 单连接多路复用：Send登记关联ID后写入帧，readLoop按ID分发响应
type WSChannel struct {
	endpoint string
	conn     *websocket.Conn
	logger   logiface.Logger

	writeMu sync.Mutex // 串行化帧写入

	mu       sync.Mutex
	pending  map[string]chan *wsFrame
	closeErr error

	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewWSChannel 建立WebSocket连接并启动读取循环
func NewWSChannel(endpoint string, opts Options) (*WSChannel, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
	}

	header := http.Header{}
	if opts.Auth != nil {
		opts.Auth.Decorate(header)
	}

	wsURL := toWSScheme(endpoint)
	conn, resp, err := dialer.Dial(wsURL, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return nil, &Error{Kind: KindAuth, Message: "websocket handshake rejected", Err: err}
			}
		}
		return nil, &Error{Kind: KindConnection, Message: "dial websocket", Err: err}
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c := &WSChannel{
		endpoint: wsURL,
		conn:     conn,
		logger:   opts.Logger,
		pending:  make(map[string]chan *wsFrame),
		closeCh:  make(chan struct{}),
	}

	go c.readLoop()

	return c, nil
}

// Send 发送一帧并等待匹配的响应帧
func (c *WSChannel) Send(ctx context.Context, req *Request) (*Response, error) {
	frame := wsFrame{
		ID:     uuid.NewString(),
		Method: req.Method,
		Path:   req.Path,
		Query:  req.Query,
	}
	if req.Payload != nil {
		data, err := json.Marshal(req.Payload)
		if err != nil {
			return nil, &Error{Kind: KindProtocol, Message: "marshal payload", Err: err}
		}
		frame.Payload = data
	}

	ch := make(chan *wsFrame, 1)
	c.mu.Lock()
	if c.isClosed() {
		err := c.closeErr
		c.mu.Unlock()
		return nil, &Error{Kind: KindConnection, Message: "channel closed", Err: err}
	}
	c.pending[frame.ID] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(&frame)
	c.writeMu.Unlock()
	if err != nil {
		c.removePending(frame.ID)
		return nil, &Error{Kind: KindConnection, Message: "write frame", Err: err}
	}

	select {
	case reply := <-ch:
		return c.parseReply(reply)
	case <-ctx.Done():
		c.removePending(frame.ID)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &Error{Kind: KindTimeout, Message: "await response", Err: ctx.Err()}
		}
		return nil, &Error{Kind: KindConnection, Message: "await response", Err: ctx.Err()}
	case <-c.closeCh:
		c.mu.Lock()
		err := c.closeErr
		c.mu.Unlock()
		return nil, &Error{Kind: KindConnection, Message: "channel closed", Err: err}
	}
}

// Ping 请求服务端根路径检查存活
func (c *WSChannel) Ping(ctx context.Context) error {
	_, err := c.Send(ctx, &Request{Method: http.MethodGet, Path: ""})
	return err
}

// Close 关闭连接，未完成的发送以连接错误结束
func (c *WSChannel) Close() error {
	c.shutdown(nil)
	return nil
}

// parseReply 将响应帧转换为Response
func (c *WSChannel) parseReply(reply *wsFrame) (*Response, error) {
	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	if reply.Error != "" || status < 200 || status >= 300 {
		body := reply.Body
		if len(body) == 0 && reply.Error != "" {
			data, _ := json.Marshal(reply.Error)
			body = data
		}
		return nil, statusError(status, body)
	}
	return &Response{Status: status, Body: reply.Body}, nil
}

// readLoop 消息读取循环，按关联ID分发响应帧
func (c *WSChannel) readLoop() {
	for {
		var frame wsFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			c.shutdown(err)
			return
		}

		if frame.ID == "" {
			// 服务端主动推送的帧不在请求/响应模型内
			if c.logger != nil {
				c.logger.Debugf("websocket: dropping frame without correlation id")
			}
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[frame.ID]
		if ok {
			delete(c.pending, frame.ID)
		}
		c.mu.Unlock()

		if !ok {
			// 调用方已放弃等待（超时或取消），迟到响应丢弃
			if c.logger != nil {
				c.logger.Debugf("websocket: no pending send for frame %s", frame.ID)
			}
			continue
		}

		ch <- &frame
	}
}

// shutdown 记录关闭原因并唤醒所有等待者，幂等
func (c *WSChannel) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeErr = cause
		c.pending = make(map[string]chan *wsFrame)
		c.mu.Unlock()

		close(c.closeCh)
		c.conn.Close()
	})
}

func (c *WSChannel) removePending(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// isClosed 调用方必须持有c.mu
func (c *WSChannel) isClosed() bool {
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}

// toWSScheme 将http(s)端点转换为ws(s)端点
func toWSScheme(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(endpoint, "http://")
	default:
		return endpoint
	}
}

// 确保实现了Channel接口
var _ Channel = (*WSChannel)(nil)
