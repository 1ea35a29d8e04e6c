package schema

import "fmt"

// Mode 算法执行模式
type Mode string

const (
	// ModeSync 快速同步调用，Invoke内部等待完成
	ModeSync Mode = "sync"
	// ModeAsync 长耗时异步调用，以工作项方式跟踪
	ModeAsync Mode = "async"
)

// ParameterSpec 单个参数声明
// 不变式：可选参数必有默认值，必填参数不得有默认值
type ParameterSpec struct {
	Name     string      `json:"name"`
	Type     IOType      `json:"io"`
	Desc     string      `json:"desc,omitempty"`
	Default  interface{} `json:"default,omitempty"`
	Optional bool        `json:"optional,omitempty"`
}

// ReturnSpec 返回值声明，与参数声明同构
type ReturnSpec = ParameterSpec

// AlgorithmDescriptor 一个远程算法的完整契约
// 由注册表在快照刷新时获取，此后不可变；名称在单个快照内唯一
type AlgorithmDescriptor struct {
	ID          string          `json:"id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Version     string          `json:"version,omitempty"`
	Mode        Mode            `json:"mode,omitempty"`
	Inputs      []ParameterSpec `json:"inputs"`
	Outputs     []ReturnSpec    `json:"outputs"`
	References  []string        `json:"references,omitempty"`
}

// Async 算法是否以异步工作项方式执行
func (d *AlgorithmDescriptor) Async() bool {
	return d.Mode == ModeAsync
}

// Validate 检查描述符自身的结构约束
// 注册表在刷新时调用，违例视为目录损坏
func (d *AlgorithmDescriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("descriptor without name")
	}
	if err := validateSpecs(d.Name, "input", d.Inputs); err != nil {
		return err
	}
	return validateSpecs(d.Name, "output", d.Outputs)
}

func validateSpecs(algorithm, role string, specs []ParameterSpec) error {
	seen := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		if spec.Name == "" {
			return fmt.Errorf("algorithm %q: unnamed %s", algorithm, role)
		}
		if _, dup := seen[spec.Name]; dup {
			return fmt.Errorf("algorithm %q: duplicate %s %q", algorithm, role, spec.Name)
		}
		seen[spec.Name] = struct{}{}
		if spec.Optional && spec.Default == nil {
			return fmt.Errorf("algorithm %q: optional %s %q without default", algorithm, role, spec.Name)
		}
		if !spec.Optional && spec.Default != nil {
			return fmt.Errorf("algorithm %q: required %s %q carries default", algorithm, role, spec.Name)
		}
	}
	return nil
}
