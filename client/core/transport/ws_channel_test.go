package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newWSTestServer 启动回显帧的WebSocket测试服务端
// handler对每个入站帧返回响应帧；返回nil表示不响应（模拟丢帧）
func newWSTestServer(t *testing.T, handler func(frame *wsFrame) *wsFrame) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var writeMu sync.Mutex
		for {
			var frame wsFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			go func(frame wsFrame) {
				reply := handler(&frame)
				if reply == nil {
					return
				}
				writeMu.Lock()
				defer writeMu.Unlock()
				conn.WriteJSON(reply)
			}(frame)
		}
	}))
}

func TestWSChannelSend(t *testing.T) {
	t.Run("请求与响应按关联ID匹配", func(t *testing.T) {
		server := newWSTestServer(t, func(frame *wsFrame) *wsFrame {
			return &wsFrame{
				ID:   frame.ID,
				Body: json.RawMessage(fmt.Sprintf(`{"path":%q}`, frame.Path)),
			}
		})
		defer server.Close()

		ch, err := NewWSChannel(server.URL, Options{})
		require.NoError(t, err)
		defer ch.Close()

		resp, err := ch.Send(context.Background(), &Request{Method: http.MethodGet, Path: "entries/"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.Status)

		var body struct {
			Path string `json:"path"`
		}
		require.NoError(t, resp.Decode(&body))
		assert.Equal(t, "entries/", body.Path)
	})

	t.Run("并发请求在单连接上多路复用", func(t *testing.T) {
		server := newWSTestServer(t, func(frame *wsFrame) *wsFrame {
			// 打乱响应时序，验证按ID而非顺序匹配
			time.Sleep(time.Duration(len(frame.Path)%5) * 10 * time.Millisecond)
			return &wsFrame{ID: frame.ID, Body: json.RawMessage(fmt.Sprintf(`{"echo":%q}`, frame.Path))}
		})
		defer server.Close()

		ch, err := NewWSChannel(server.URL, Options{})
		require.NoError(t, err)
		defer ch.Close()

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				path := fmt.Sprintf("tasks/w%d", i)
				resp, err := ch.Send(context.Background(), &Request{Method: http.MethodGet, Path: path})
				if !assert.NoError(t, err) {
					return
				}
				var body struct {
					Echo string `json:"echo"`
				}
				if assert.NoError(t, resp.Decode(&body)) {
					assert.Equal(t, path, body.Echo)
				}
			}(i)
		}
		wg.Wait()
	})

	t.Run("错误帧映射为传输错误", func(t *testing.T) {
		server := newWSTestServer(t, func(frame *wsFrame) *wsFrame {
			return &wsFrame{ID: frame.ID, Status: http.StatusNotFound, Error: "no such task"}
		})
		defer server.Close()

		ch, err := NewWSChannel(server.URL, Options{})
		require.NoError(t, err)
		defer ch.Close()

		_, err = ch.Send(context.Background(), &Request{Method: http.MethodGet, Path: "tasks/missing"})
		var terr *Error
		require.True(t, errors.As(err, &terr))
		assert.Equal(t, KindServer, terr.Kind)
		assert.Contains(t, terr.Message, "no such task")
	})

	t.Run("上下文超时返回超时错误", func(t *testing.T) {
		server := newWSTestServer(t, func(frame *wsFrame) *wsFrame {
			return nil // 不响应
		})
		defer server.Close()

		ch, err := NewWSChannel(server.URL, Options{})
		require.NoError(t, err)
		defer ch.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err = ch.Send(ctx, &Request{Method: http.MethodGet, Path: "entries/"})
		var terr *Error
		require.True(t, errors.As(err, &terr))
		assert.Equal(t, KindTimeout, terr.Kind)
	})

	t.Run("关闭后发送返回连接错误", func(t *testing.T) {
		server := newWSTestServer(t, func(frame *wsFrame) *wsFrame {
			return &wsFrame{ID: frame.ID, Body: json.RawMessage(`{}`)}
		})
		defer server.Close()

		ch, err := NewWSChannel(server.URL, Options{})
		require.NoError(t, err)
		require.NoError(t, ch.Close())

		_, err = ch.Send(context.Background(), &Request{Method: http.MethodGet, Path: "entries/"})
		var terr *Error
		require.True(t, errors.As(err, &terr))
		assert.Equal(t, KindConnection, terr.Kind)
	})
}

func TestWSChannelHandshakeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("easyapi-key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer server.Close()

	_, err := NewWSChannel(server.URL, Options{
		Auth: headerDecorator{"easyapi-id": "demo", "easyapi-key": "wrong"},
	})
	var terr *Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, KindAuth, terr.Kind)
}

func TestToWSScheme(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{"http://example.org/api", "ws://example.org/api"},
		{"https://example.org/api", "wss://example.org/api"},
		{"ws://example.org/api", "ws://example.org/api"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, toWSScheme(tt.endpoint))
	}
}
