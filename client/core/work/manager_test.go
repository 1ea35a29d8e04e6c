package work

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyapi/easyaccess/client/core/transport"
)

// scriptChannel 按路径回放预置响应序列
type scriptChannel struct {
	mu       sync.Mutex
	scripts  map[string][]*transport.Response
	errs     map[string]error
	requests []*transport.Request
}

func newScriptChannel() *scriptChannel {
	return &scriptChannel{
		scripts: make(map[string][]*transport.Response),
		errs:    make(map[string]error),
	}
}

// on 为路径追加一条响应
func (s *scriptChannel) on(path, body string) *scriptChannel {
	s.scripts[path] = append(s.scripts[path], &transport.Response{Status: http.StatusOK, Body: []byte(body)})
	return s
}

func (s *scriptChannel) fail(path string, err error) *scriptChannel {
	s.errs[path] = err
	return s
}

func (s *scriptChannel) Send(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)

	if err, ok := s.errs[req.Path]; ok {
		return nil, err
	}
	queue := s.scripts[req.Path]
	if len(queue) == 0 {
		return nil, &transport.Error{Kind: transport.KindServer, Message: "no scripted response for " + req.Path}
	}
	resp := queue[0]
	if len(queue) > 1 {
		s.scripts[req.Path] = queue[1:]
	}
	return resp, nil
}

func (s *scriptChannel) Ping(ctx context.Context) error { return nil }
func (s *scriptChannel) Close() error                   { return nil }

func (s *scriptChannel) requestCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, req := range s.requests {
		if req.Path == path {
			n++
		}
	}
	return n
}

func TestSubmitPollFetch(t *testing.T) {
	ch := newScriptChannel().
		on("entries/fold", `{"task_id":"w1"}`).
		on("tasks/w1", `{"status":"running"}`).
		on("tasks/w1", `{"status":"running"}`).
		on("tasks/w1", `{"success":true,"output":{"score":0.9}}`)

	m := New(ch, nil)
	ctx := context.Background()

	item, err := m.Submit(ctx, "fold", map[string]interface{}{"sequence": "MKV"})
	require.NoError(t, err)
	assert.Equal(t, "w1", item.ID())
	assert.Equal(t, "fold", item.Algorithm())
	assert.Equal(t, StatusSubmitted, item.Status())

	// 未终态时Fetch立即返回PendingError，绝不阻塞
	_, err = m.Fetch(item)
	var pending *PendingError
	require.True(t, errors.As(err, &pending))
	assert.Equal(t, StatusSubmitted, pending.Status)

	st, err := m.Poll(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, st)

	st, err = m.Poll(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, st)

	st, err = m.Poll(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, st)

	outcome, err := m.Fetch(item)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, outcome.Status)
	assert.JSONEq(t, `{"score":0.9}`, string(outcome.Result))

	// 终态后Poll是幂等空操作，不再访问服务端
	before := ch.requestCount("tasks/w1")
	st, err = m.Poll(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, st)
	assert.Equal(t, before, ch.requestCount("tasks/w1"))

	// 终态后Cancel是空操作，返回当前状态
	st, err = m.Cancel(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, st)
	assert.Zero(t, ch.requestCount("tasks/w1/cancel"))
}

func TestSubmitErrors(t *testing.T) {
	t.Run("缺少任务标识", func(t *testing.T) {
		ch := newScriptChannel().on("entries/fold", `{}`)
		m := New(ch, nil)

		_, err := m.Submit(context.Background(), "fold", nil)
		var serr *SubmissionError
		require.True(t, errors.As(err, &serr))
		assert.Equal(t, "fold", serr.Algorithm)
	})

	t.Run("传输失败原样透传", func(t *testing.T) {
		wantErr := &transport.Error{Kind: transport.KindConnection, Message: "down"}
		ch := newScriptChannel().fail("entries/fold", wantErr)
		m := New(ch, nil)

		_, err := m.Submit(context.Background(), "fold", nil)
		var terr *transport.Error
		require.True(t, errors.As(err, &terr))
		assert.Equal(t, transport.KindConnection, terr.Kind)
	})
}

func TestPollFailure(t *testing.T) {
	ch := newScriptChannel().
		on("entries/fold", `{"task_id":"w1"}`).
		on("tasks/w1", `{"success":false,"error":"model blew up"}`)

	m := New(ch, nil)
	ctx := context.Background()

	item, err := m.Submit(ctx, "fold", nil)
	require.NoError(t, err)

	st, err := m.Poll(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, st)

	outcome, err := m.Fetch(item)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Equal(t, "model blew up", outcome.Failure)
}

func TestPollUnknownStatus(t *testing.T) {
	ch := newScriptChannel().
		on("entries/fold", `{"task_id":"w1"}`).
		on("tasks/w1", `{"status":"levitating"}`)

	m := New(ch, nil)
	ctx := context.Background()

	item, err := m.Submit(ctx, "fold", nil)
	require.NoError(t, err)

	_, err = m.Poll(ctx, item)
	var terr *transport.Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, transport.KindProtocol, terr.Kind)
	// 解析失败不推进状态机
	assert.Equal(t, StatusSubmitted, item.Status())
}

func TestCancel(t *testing.T) {
	t.Run("服务端确认后转入cancelled", func(t *testing.T) {
		ch := newScriptChannel().
			on("entries/fold", `{"task_id":"w1"}`).
			on("tasks/w1/cancel", `{"success":true}`)

		m := New(ch, nil)
		ctx := context.Background()

		item, err := m.Submit(ctx, "fold", nil)
		require.NoError(t, err)

		st, err := m.Cancel(ctx, item)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, st)

		outcome, err := m.Fetch(item)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, outcome.Status)
	})

	t.Run("取消被拒后补轮询对齐终态", func(t *testing.T) {
		ch := newScriptChannel().
			on("entries/fold", `{"task_id":"w1"}`).
			on("tasks/w1/cancel", `{"success":false}`).
			on("tasks/w1", `{"success":true,"output":{"score":1}}`)

		m := New(ch, nil)
		ctx := context.Background()

		item, err := m.Submit(ctx, "fold", nil)
		require.NoError(t, err)

		st, err := m.Cancel(ctx, item)
		require.NoError(t, err)
		assert.Equal(t, StatusSucceeded, st)
	})

	t.Run("取消被拒且任务仍在运行报错", func(t *testing.T) {
		ch := newScriptChannel().
			on("entries/fold", `{"task_id":"w1"}`).
			on("tasks/w1/cancel", `{"success":false}`).
			on("tasks/w1", `{"status":"running"}`)

		m := New(ch, nil)
		ctx := context.Background()

		item, err := m.Submit(ctx, "fold", nil)
		require.NoError(t, err)

		st, err := m.Cancel(ctx, item)
		require.Error(t, err)
		assert.Equal(t, StatusRunning, st)
	})
}

func TestStatusMonotonic(t *testing.T) {
	item := &Item{id: "w1", algorithm: "fold", status: StatusSubmitted}

	assert.Equal(t, StatusRunning, item.apply(StatusRunning, nil, "", nil))
	// running之后迟到的submitted被丢弃
	assert.Equal(t, StatusRunning, item.apply(StatusSubmitted, nil, "", nil))

	assert.Equal(t, StatusSucceeded, item.apply(StatusSucceeded, []byte(`{}`), "", nil))
	// 终态后任何冲突状态被丢弃
	assert.Equal(t, StatusSucceeded, item.apply(StatusFailed, nil, "late failure", nil))
	assert.Equal(t, StatusSucceeded, item.apply(StatusRunning, nil, "", nil))

	outcome := item.snapshot()
	assert.Equal(t, StatusSucceeded, outcome.Status)
	assert.Empty(t, outcome.Failure)
}

func TestManagerTracking(t *testing.T) {
	ch := newScriptChannel().
		on("entries/fold", `{"task_id":"w1"}`).
		on("entries/fold2", `{"task_id":"w2"}`)

	m := New(ch, nil)
	ctx := context.Background()

	item1, err := m.Submit(ctx, "fold", nil)
	require.NoError(t, err)
	_, err = m.Submit(ctx, "fold2", nil)
	require.NoError(t, err)

	got, ok := m.Get("w1")
	require.True(t, ok)
	assert.Same(t, item1, got)
	assert.Len(t, m.Items(), 2)

	m.Evict("w1")
	_, ok = m.Get("w1")
	assert.False(t, ok)
	assert.Len(t, m.Items(), 1)

	m.Close()
	assert.Empty(t, m.Items())
}
