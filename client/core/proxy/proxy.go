// Package proxy 将一个算法描述符封装为可调用对象
package proxy

import (
	"context"
	"fmt"
	"time"

	"github.com/easyapi/easyaccess/client/core/schema"
	"github.com/easyapi/easyaccess/client/core/transport"
	"github.com/easyapi/easyaccess/client/core/work"
	logiface "github.com/easyapi/easyaccess/pkg/interfaces/infrastructure/log"
)

// DefaultPollInterval 默认轮询间隔
const DefaultPollInterval = 100 * time.Millisecond

// ExecutionError 服务端执行失败或任务被取消
type ExecutionError struct {
	Algorithm string
	Status    work.Status
	Message   string
}

func (e *ExecutionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("algorithm %q %s: %s", e.Algorithm, e.Status, e.Message)
	}
	return fmt.Sprintf("algorithm %q %s", e.Algorithm, e.Status)
}

// CallProxy 绑定单个算法描述符的调用代理
//
// 描述符在创建时捕获：注册表刷新不影响已创建的代理，调用中不会发生契约替换。
type CallProxy struct {
	desc          *schema.AlgorithmDescriptor
	manager       *work.Manager
	logger        logiface.Logger
	pollInterval  time.Duration
	cancelTimeout time.Duration
}

// New 创建调用代理
// cancelTimeout限定中断后通知服务端取消的时长，与客户端请求超时对齐
func New(desc *schema.AlgorithmDescriptor, manager *work.Manager, logger logiface.Logger, pollInterval, cancelTimeout time.Duration) *CallProxy {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if cancelTimeout <= 0 {
		cancelTimeout = transport.DefaultTimeout
	}
	return &CallProxy{
		desc:          desc,
		manager:       manager,
		logger:        logger,
		pollInterval:  pollInterval,
		cancelTimeout: cancelTimeout,
	}
}

// Name 算法名
func (p *CallProxy) Name() string {
	return p.desc.Name
}

// Descriptor 返回绑定的描述符（只读）
func (p *CallProxy) Descriptor() *schema.AlgorithmDescriptor {
	return p.desc
}

// Submit 校验参数并提交，返回工作项交由调用方跟踪
// 异步算法的首选入口；同步算法也可用它绕过Invoke的内部等待
func (p *CallProxy) Submit(ctx context.Context, args map[string]interface{}) (*work.Item, error) {
	normalized, err := schema.Validate(p.desc.Inputs, args)
	if err != nil {
		return nil, err
	}
	return p.manager.Submit(ctx, p.desc.Name, normalized)
}

// Invoke 执行一次完整调用：校验 → 提交 → 等待终态 → 解析返回值
//
// 校验失败在任何网络调用之前返回。ctx取消时向服务端请求取消后返回。
// 结果对照返回值声明解析；缺失必需字段返回MalformedResponseError。
func (p *CallProxy) Invoke(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	item, err := p.Submit(ctx, args)
	if err != nil {
		return nil, err
	}

	for {
		status, err := p.manager.Poll(ctx, item)
		if err != nil {
			return nil, err
		}
		if status.Terminal() {
			break
		}

		select {
		case <-ctx.Done():
			p.cancelOnInterrupt(item)
			return nil, ctx.Err()
		case <-time.After(p.pollInterval):
		}
	}

	outcome, err := p.manager.Fetch(item)
	if err != nil {
		return nil, err
	}

	switch outcome.Status {
	case work.StatusSucceeded:
		return schema.ParseReturns(p.desc.Name, p.desc.Outputs, outcome.Result)
	case work.StatusFailed:
		return nil, &ExecutionError{Algorithm: p.desc.Name, Status: outcome.Status, Message: outcome.Failure}
	default:
		return nil, &ExecutionError{Algorithm: p.desc.Name, Status: outcome.Status}
	}
}

// cancelOnInterrupt 调用被中断时尽力通知服务端取消
func (p *CallProxy) cancelOnInterrupt(item *work.Item) {
	cancelCtx, cancel := context.WithTimeout(context.Background(), p.cancelTimeout)
	defer cancel()
	if _, err := p.manager.Cancel(cancelCtx, item); err != nil && p.logger != nil {
		p.logger.Warnf("proxy: cancel after interrupt failed for task %s: %v", item.ID(), err)
	}
}
