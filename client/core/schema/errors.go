package schema

import "fmt"

// ValidationKind 参数校验错误分类
// 校验错误全部在本地产生，不会到达网络
type ValidationKind string

const (
	// KindMissingRequired 必填参数缺失
	KindMissingRequired ValidationKind = "missing_required"
	// KindUnknownParameter 调用方提供了声明之外的参数
	KindUnknownParameter ValidationKind = "unknown_parameter"
	// KindTypeMismatch 参数值类型与声明不符
	KindTypeMismatch ValidationKind = "type_mismatch"
	// KindConditionMismatch 参数值不满足约束条件（正则/取值范围）
	KindConditionMismatch ValidationKind = "condition_mismatch"
)

// ValidationError 参数校验错误
type ValidationError struct {
	Kind    ValidationKind
	Param   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("validation %s: parameter %q: %s", e.Kind, e.Param, e.Message)
	}
	return fmt.Sprintf("validation %s: %s", e.Kind, e.Message)
}

// MalformedResponseError 服务端响应违反其声明的返回模式
// 属于致命契约错误，按原样上抛，不重试
type MalformedResponseError struct {
	Algorithm string
	Field     string
	Message   string
}

func (e *MalformedResponseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("malformed response from %q: field %q: %s", e.Algorithm, e.Field, e.Message)
	}
	return fmt.Sprintf("malformed response from %q: %s", e.Algorithm, e.Message)
}
