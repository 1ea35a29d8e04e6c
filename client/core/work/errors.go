package work

import "fmt"

// SubmissionError 提交后服务端未返回工作项标识
type SubmissionError struct {
	Algorithm string
	Message   string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit %q: %s", e.Algorithm, e.Message)
}

// PendingError 工作项尚未到达终态，调用方需继续轮询
type PendingError struct {
	ID     string
	Status Status
}

func (e *PendingError) Error() string {
	return fmt.Sprintf("task %s is still %s", e.ID, e.Status)
}
