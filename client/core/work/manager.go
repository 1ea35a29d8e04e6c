package work

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/easyapi/easyaccess/client/core/transport"
	logiface "github.com/easyapi/easyaccess/pkg/interfaces/infrastructure/log"
)

// Manager 异步工作项管理器
// 提交、轮询、取结果、取消均可跨工作项并发调用，互不干扰
type Manager struct {
	channel transport.Channel
	logger  logiface.Logger

	mu    sync.RWMutex
	items map[string]*Item
}

// New 创建工作项管理器
func New(channel transport.Channel, logger logiface.Logger) *Manager {
	return &Manager{
		channel: channel,
		logger:  logger,
		items:   make(map[string]*Item),
	}
}

// Submit 提交一次调用，返回处于submitted状态的工作项
func (m *Manager) Submit(ctx context.Context, algorithm string, params interface{}) (*Item, error) {
	resp, err := m.channel.Send(ctx, &transport.Request{
		Method:  http.MethodPost,
		Path:    "entries/" + algorithm,
		Payload: params,
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		TaskID string `json:"task_id"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, &SubmissionError{Algorithm: algorithm, Message: fmt.Sprintf("unreadable submit response: %v", err)}
	}
	if out.TaskID == "" {
		return nil, &SubmissionError{Algorithm: algorithm, Message: "server did not return a task id"}
	}

	item := &Item{
		id:          out.TaskID,
		algorithm:   algorithm,
		submittedAt: time.Now(),
		status:      StatusSubmitted,
	}

	m.mu.Lock()
	m.items[item.id] = item
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Debugf("work: submitted task %s for %q", item.id, algorithm)
	}
	return item, nil
}

// Poll 查询当前状态并推进本地状态机
// 对已终态的工作项是幂等空操作，直接返回缓存状态
func (m *Manager) Poll(ctx context.Context, item *Item) (Status, error) {
	if st := item.Status(); st.Terminal() {
		return st, nil
	}

	resp, err := m.channel.Send(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   "tasks/" + item.id,
	})
	if err != nil {
		return item.Status(), err
	}

	next, result, failure, err := parseTaskState(resp)
	if err != nil {
		return item.Status(), err
	}

	return item.apply(next, result, failure, m.logger), nil
}

// Fetch 返回终态载荷；未到终态返回PendingError，绝不阻塞等待
func (m *Manager) Fetch(item *Item) (*Outcome, error) {
	outcome := item.snapshot()
	if !outcome.Status.Terminal() {
		return nil, &PendingError{ID: item.id, Status: outcome.Status}
	}
	return &outcome, nil
}

// Cancel 请求取消
//
// 仅对submitted/running有效；对已终态的工作项是空操作，返回当前状态。
// 取消是协作式的：只有服务端确认后才转入cancelled。
func (m *Manager) Cancel(ctx context.Context, item *Item) (Status, error) {
	if st := item.Status(); st.Terminal() {
		return st, nil
	}

	resp, err := m.channel.Send(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   "tasks/" + item.id + "/cancel",
	})
	if err != nil {
		return item.Status(), err
	}

	var out struct {
		Success bool `json:"success"`
	}
	if err := resp.Decode(&out); err != nil {
		return item.Status(), err
	}

	if out.Success {
		return item.apply(StatusCancelled, nil, "", m.logger), nil
	}

	// 服务端拒绝取消通常意味着任务已自行终止，补一次轮询对齐状态
	st, pollErr := m.Poll(ctx, item)
	if pollErr != nil {
		return st, pollErr
	}
	if st.Terminal() {
		return st, nil
	}
	return st, fmt.Errorf("cancel of task %s not acknowledged", item.id)
}

// Get 按标识查找被跟踪的工作项
func (m *Manager) Get(id string) (*Item, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	return item, ok
}

// Items 返回当前跟踪的全部工作项
func (m *Manager) Items() []*Item {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]*Item, 0, len(m.items))
	for _, item := range m.items {
		items = append(items, item)
	}
	return items
}

// Evict 停止本地跟踪
// 只影响本地缓存；工作项本身是否存在由服务端决定
func (m *Manager) Evict(id string) {
	m.mu.Lock()
	delete(m.items, id)
	m.mu.Unlock()
}

// Close 清空本地跟踪
func (m *Manager) Close() {
	m.mu.Lock()
	m.items = make(map[string]*Item)
	m.mu.Unlock()
}

// taskStateResponse 服务端任务状态响应
// 终态以success标志表达（原始协议），status字段表达中间状态与取消
type taskStateResponse struct {
	Status  string          `json:"status,omitempty"`
	Success *bool           `json:"success,omitempty"`
	Output  json.RawMessage `json:"output,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// parseTaskState 将状态响应映射到生命周期状态
func parseTaskState(resp *transport.Response) (Status, json.RawMessage, string, error) {
	var state taskStateResponse
	if err := resp.Decode(&state); err != nil {
		return "", nil, "", err
	}

	if state.Success != nil {
		if *state.Success {
			return StatusSucceeded, state.Output, "", nil
		}
		return StatusFailed, nil, failureMessage(state), nil
	}

	status, ok := ParseStatus(state.Status)
	if !ok {
		return "", nil, "", &transport.Error{
			Kind:    transport.KindProtocol,
			Message: fmt.Sprintf("unknown task status %q", state.Status),
		}
	}
	return status, nil, "", nil
}

// failureMessage 从失败响应中提取错误信息
func failureMessage(state taskStateResponse) string {
	if state.Error != "" {
		return state.Error
	}
	var text string
	if err := json.Unmarshal(state.Output, &text); err == nil {
		return text
	}
	return string(state.Output)
}
