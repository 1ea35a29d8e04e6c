package work

import (
	"encoding/json"
	"sync"
	"time"

	logiface "github.com/easyapi/easyaccess/pkg/interfaces/infrastructure/log"
)

// Item 一个被跟踪的异步工作项
// 状态只由Manager依据服务端响应变更，调用方只读
type Item struct {
	id          string
	algorithm   string
	submittedAt time.Time

	mu      sync.Mutex
	status  Status
	result  json.RawMessage
	failure string
}

// Outcome 工作项的一次状态快照
type Outcome struct {
	Status  Status
	Result  json.RawMessage
	Failure string
}

// ID 服务端签发的工作项标识
func (it *Item) ID() string {
	return it.id
}

// Algorithm 所属算法名
func (it *Item) Algorithm() string {
	return it.algorithm
}

// SubmittedAt 提交时间
func (it *Item) SubmittedAt() time.Time {
	return it.submittedAt
}

// Status 当前状态
func (it *Item) Status() Status {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.status
}

// snapshot 返回状态与载荷的一致快照
func (it *Item) snapshot() Outcome {
	it.mu.Lock()
	defer it.mu.Unlock()
	return Outcome{Status: it.status, Result: it.result, Failure: it.failure}
}

// apply 应用服务端报告的状态，返回应用后的状态
//
// 终态不接受任何后退：迟到的冲突响应记录日志后丢弃。
// running之后不接受submitted（并发poll响应乱序时的保护）。
func (it *Item) apply(next Status, result json.RawMessage, failure string, logger logiface.Logger) Status {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.status.Terminal() {
		if next != it.status && logger != nil {
			logger.Warnf("work: discarding conflicting status %q for task %s: already %q", next, it.id, it.status)
		}
		return it.status
	}

	if it.status == StatusRunning && next == StatusSubmitted {
		return it.status
	}

	it.status = next
	switch next {
	case StatusSucceeded:
		it.result = result
	case StatusFailed:
		it.failure = failure
	}
	return it.status
}
