package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// NormalizedArgs 校验后的参数集合
// 保持模式声明顺序而非调用方传参顺序，保证线上载荷序列化确定性
type NormalizedArgs struct {
	names  []string
	values map[string]interface{}
}

// Names 按声明顺序返回参数名
func (a *NormalizedArgs) Names() []string {
	names := make([]string, len(a.names))
	copy(names, a.names)
	return names
}

// Get 返回参数值
func (a *NormalizedArgs) Get(name string) (interface{}, bool) {
	v, ok := a.values[name]
	return v, ok
}

// Len 返回参数数量
func (a *NormalizedArgs) Len() int {
	return len(a.names)
}

// MarshalJSON 按声明顺序序列化为JSON对象
func (a *NormalizedArgs) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range a.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(a.values[name])
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Validate 将调用方参数对照声明列表校验并规整
//
// 对每个声明：调用方提供了值则做类型与约束检查；未提供且可选则代入默认值；
// 未提供且必填则失败。声明之外的参数名一律拒绝，不静默忽略。
func Validate(specs []ParameterSpec, args map[string]interface{}) (*NormalizedArgs, error) {
	known := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		known[spec.Name] = struct{}{}
	}

	var unknown []string
	for name := range args {
		if _, ok := known[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &ValidationError{
			Kind:    KindUnknownParameter,
			Param:   unknown[0],
			Message: "not declared by the algorithm",
		}
	}

	normalized := &NormalizedArgs{
		names:  make([]string, 0, len(specs)),
		values: make(map[string]interface{}, len(specs)),
	}

	for i := range specs {
		spec := &specs[i]
		value, supplied := args[spec.Name]
		if !supplied {
			if !spec.Optional {
				return nil, &ValidationError{
					Kind:    KindMissingRequired,
					Param:   spec.Name,
					Message: "required parameter is missing",
				}
			}
			normalized.names = append(normalized.names, spec.Name)
			normalized.values[spec.Name] = spec.Default
			continue
		}

		coerced, err := spec.Type.Coerce(value)
		if err != nil {
			if ve, ok := err.(*ValidationError); ok && ve.Param == "" {
				ve.Param = spec.Name
			}
			return nil, err
		}
		normalized.names = append(normalized.names, spec.Name)
		normalized.values[spec.Name] = coerced
	}

	return normalized, nil
}

// ParseReturns 将响应体对照返回值声明解析为按名索引的结果
//
// 缺失必需返回字段说明服务端违反了自身契约，整个结果作废，不返回部分映射。
// 声明之外的多余字段忽略。
func ParseReturns(algorithm string, specs []ReturnSpec, body []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &MalformedResponseError{
			Algorithm: algorithm,
			Message:   fmt.Sprintf("output is not an object: %v", err),
		}
	}

	result := make(map[string]interface{}, len(specs))
	for i := range specs {
		spec := &specs[i]
		value, ok := raw[spec.Name]
		if !ok {
			if spec.Optional {
				result[spec.Name] = spec.Default
				continue
			}
			return nil, &MalformedResponseError{
				Algorithm: algorithm,
				Field:     spec.Name,
				Message:   "declared return field missing",
			}
		}
		coerced, err := spec.Type.Coerce(value)
		if err != nil {
			return nil, &MalformedResponseError{
				Algorithm: algorithm,
				Field:     spec.Name,
				Message:   err.Error(),
			}
		}
		result[spec.Name] = coerced
	}

	return result, nil
}
