// Package batch 将多个代理调用聚合为单次批量请求
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/easyapi/easyaccess/client/core/proxy"
	"github.com/easyapi/easyaccess/client/core/registry"
	"github.com/easyapi/easyaccess/client/core/schema"
	"github.com/easyapi/easyaccess/client/core/transport"
	"github.com/easyapi/easyaccess/client/core/work"
	logiface "github.com/easyapi/easyaccess/pkg/interfaces/infrastructure/log"
)

// Call 批量中的一次调用
type Call struct {
	Algorithm string
	Arguments map[string]interface{}
}

// Result 单次调用的结果，Output与Err互斥
type Result struct {
	Output map[string]interface{}
	Err    error
}

// Coordinator 批量调用协调器
type Coordinator struct {
	channel  transport.Channel
	registry *registry.Registry
	logger   logiface.Logger
}

// New 创建批量调用协调器
func New(channel transport.Channel, reg *registry.Registry, logger logiface.Logger) *Coordinator {
	return &Coordinator{
		channel:  channel,
		registry: reg,
		logger:   logger,
	}
}

// wireCall 批量请求中的单项
type wireCall struct {
	Entry  string                 `json:"entry"`
	Params *schema.NormalizedArgs `json:"params"`
}

// wireOutcome 批量响应中的单项，按位置与请求对应
type wireOutcome struct {
	Success bool            `json:"success"`
	Output  json.RawMessage `json:"output,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Execute 执行一批调用，返回与输入等长、同序的结果
//
// 每项参数独立校验：单项校验失败原位记录为该项错误，不阻止其余项发送。
// 批量按位置而非名称解复用，同一算法可在批中出现多次。
// 整批传输失败时，所有仍未决的项得到同一个底层错误。
func (c *Coordinator) Execute(ctx context.Context, calls []Call) []Result {
	results := make([]Result, len(calls))
	if len(calls) == 0 {
		return results
	}

	var (
		wire    []wireCall
		descs   []*schema.AlgorithmDescriptor
		pending []int // wire下标 → 原始calls下标
	)

	for i, call := range calls {
		desc, err := c.registry.Describe(call.Algorithm)
		if err != nil {
			results[i].Err = err
			continue
		}
		normalized, err := schema.Validate(desc.Inputs, call.Arguments)
		if err != nil {
			results[i].Err = err
			continue
		}
		wire = append(wire, wireCall{Entry: call.Algorithm, Params: normalized})
		descs = append(descs, desc)
		pending = append(pending, i)
	}

	if len(wire) == 0 {
		return results
	}

	resp, err := c.channel.Send(ctx, &transport.Request{
		Method:  http.MethodPost,
		Path:    "batch/",
		Payload: struct {
			Calls []wireCall `json:"calls"`
		}{Calls: wire},
	})
	if err != nil {
		c.failPending(results, pending, err)
		return results
	}

	var payload struct {
		Results []wireOutcome `json:"results"`
	}
	if err := resp.Decode(&payload); err != nil {
		c.failPending(results, pending, err)
		return results
	}
	if len(payload.Results) != len(wire) {
		c.failPending(results, pending, &transport.Error{
			Kind:    transport.KindProtocol,
			Message: fmt.Sprintf("batch returned %d results for %d calls", len(payload.Results), len(wire)),
		})
		return results
	}

	for pos, outcome := range payload.Results {
		idx := pending[pos]
		if !outcome.Success {
			results[idx].Err = &proxy.ExecutionError{
				Algorithm: calls[idx].Algorithm,
				Status:    work.StatusFailed,
				Message:   outcome.Error,
			}
			continue
		}
		output, err := schema.ParseReturns(calls[idx].Algorithm, descs[pos].Outputs, outcome.Output)
		if err != nil {
			results[idx].Err = err
			continue
		}
		results[idx].Output = output
	}

	return results
}

// failPending 将同一底层错误记录到所有仍未决的项
func (c *Coordinator) failPending(results []Result, pending []int, err error) {
	if c.logger != nil {
		c.logger.Warnf("batch: whole-batch failure: %v", err)
	}
	for _, idx := range pending {
		if results[idx].Err == nil && results[idx].Output == nil {
			results[idx].Err = err
		}
	}
}
