// Package work 跟踪异步工作项的客户端生命周期
//
// 权威状态在服务端；本包实现拉取式状态机：submitted → running →
// {succeeded, failed, cancelled}。终态不可变，对单个工作项状态只会单调前进。
package work

// Status 工作项生命周期状态
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal 是否为终态
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// ParseStatus 解析服务端状态字符串
func ParseStatus(raw string) (Status, bool) {
	switch Status(raw) {
	case StatusSubmitted, StatusRunning, StatusSucceeded, StatusFailed, StatusCancelled:
		return Status(raw), true
	default:
		return "", false
	}
}
