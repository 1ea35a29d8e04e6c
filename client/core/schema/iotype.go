// Package schema 定义算法描述符、参数模式与参数校验
// 模式由服务端在运行时下发，获取后不可变
package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// Meta IO元类型
type Meta string

const (
	MetaString   Meta = "string"
	MetaNumber   Meta = "number"
	MetaNumArray Meta = "numarray"
)

// IOType 单个输入/输出类型定义
// Condition依元类型解释：string为正则模式，number/numarray为[min,max]闭区间
type IOType struct {
	Meta      Meta            `json:"meta"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Doc       string          `json:"doc,omitempty"`
	Condition json.RawMessage `json:"condition,omitempty"`
	Version   string          `json:"version,omitempty"`
}

// Coerce 按元类型校验并规整数据
func (t *IOType) Coerce(value interface{}) (interface{}, error) {
	switch t.Meta {
	case MetaString:
		return t.coerceString(value)
	case MetaNumber:
		return t.coerceNumber(value)
	case MetaNumArray:
		return t.coerceNumArray(value)
	default:
		return nil, &ValidationError{
			Kind:    KindTypeMismatch,
			Message: fmt.Sprintf("unsupported meta type %q", t.Meta),
		}
	}
}

func (t *IOType) coerceString(value interface{}) (interface{}, error) {
	s, ok := value.(string)
	if !ok {
		return nil, &ValidationError{
			Kind:    KindTypeMismatch,
			Message: fmt.Sprintf("expected string, got %T", value),
		}
	}

	pattern, ok, err := t.stringCondition()
	if err != nil {
		return nil, err
	}
	if ok {
		re, err := regexp.Compile(`\A(?:` + pattern + `)\z`)
		if err != nil {
			return nil, &ValidationError{
				Kind:    KindConditionMismatch,
				Message: fmt.Sprintf("invalid pattern %q: %v", pattern, err),
			}
		}
		if !re.MatchString(s) {
			return nil, &ValidationError{
				Kind:    KindConditionMismatch,
				Message: fmt.Sprintf("value does not match pattern %q", pattern),
			}
		}
	}

	return s, nil
}

func (t *IOType) coerceNumber(value interface{}) (interface{}, error) {
	n, ok := asFloat(value)
	if !ok {
		return nil, &ValidationError{
			Kind:    KindTypeMismatch,
			Message: fmt.Sprintf("expected number, got %T", value),
		}
	}

	bounds, ok, err := t.numberCondition()
	if err != nil {
		return nil, err
	}
	if ok && (n < bounds[0] || n > bounds[1]) {
		return nil, &ValidationError{
			Kind:    KindConditionMismatch,
			Message: fmt.Sprintf("value %v outside range [%v, %v]", n, bounds[0], bounds[1]),
		}
	}

	return n, nil
}

func (t *IOType) coerceNumArray(value interface{}) (interface{}, error) {
	var raw []interface{}
	switch v := value.(type) {
	case []interface{}:
		raw = v
	case []float64:
		raw = make([]interface{}, len(v))
		for i, n := range v {
			raw[i] = n
		}
	case []int:
		raw = make([]interface{}, len(v))
		for i, n := range v {
			raw[i] = n
		}
	default:
		return nil, &ValidationError{
			Kind:    KindTypeMismatch,
			Message: fmt.Sprintf("expected number array, got %T", value),
		}
	}

	bounds, hasBounds, err := t.numberCondition()
	if err != nil {
		return nil, err
	}

	result := make([]float64, len(raw))
	for i, item := range raw {
		n, ok := asFloat(item)
		if !ok {
			return nil, &ValidationError{
				Kind:    KindTypeMismatch,
				Message: fmt.Sprintf("element %d: expected number, got %T", i, item),
			}
		}
		if hasBounds && (n < bounds[0] || n > bounds[1]) {
			return nil, &ValidationError{
				Kind:    KindConditionMismatch,
				Message: fmt.Sprintf("element %d: value %v outside range [%v, %v]", i, n, bounds[0], bounds[1]),
			}
		}
		result[i] = n
	}

	return result, nil
}

// stringCondition 解析字符串类型的正则约束
func (t *IOType) stringCondition() (string, bool, error) {
	if !t.hasCondition() {
		return "", false, nil
	}
	var pattern string
	if err := json.Unmarshal(t.Condition, &pattern); err != nil {
		return "", false, &ValidationError{
			Kind:    KindConditionMismatch,
			Message: fmt.Sprintf("invalid string condition %s", t.Condition),
		}
	}
	return pattern, pattern != "", nil
}

// numberCondition 解析数值类型的[min,max]约束
func (t *IOType) numberCondition() ([2]float64, bool, error) {
	var bounds [2]float64
	if !t.hasCondition() {
		return bounds, false, nil
	}
	var raw []float64
	if err := json.Unmarshal(t.Condition, &raw); err != nil || len(raw) != 2 {
		return bounds, false, &ValidationError{
			Kind:    KindConditionMismatch,
			Message: fmt.Sprintf("invalid number condition %s", t.Condition),
		}
	}
	bounds[0], bounds[1] = raw[0], raw[1]
	return bounds, true, nil
}

func (t *IOType) hasCondition() bool {
	return len(t.Condition) > 0 && string(t.Condition) != "null"
}

// asFloat 接受JSON解码及调用方常用的数值表示
func asFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		n, err := v.Float64()
		return n, err == nil
	default:
		return 0, false
	}
}
