// Package client EasyAccess客户端 - 统一的客户端入口
// 连接EasyAPI服务端，发现算法目录，以本地可调用对象的方式执行远程算法
package client

import (
	"context"
	"time"

	"github.com/easyapi/easyaccess/client/core/auth"
	"github.com/easyapi/easyaccess/client/core/batch"
	"github.com/easyapi/easyaccess/client/core/proxy"
	"github.com/easyapi/easyaccess/client/core/registry"
	"github.com/easyapi/easyaccess/client/core/schema"
	"github.com/easyapi/easyaccess/client/core/transport"
	"github.com/easyapi/easyaccess/client/core/work"
	ilog "github.com/easyapi/easyaccess/internal/core/infrastructure/log"
	logiface "github.com/easyapi/easyaccess/pkg/interfaces/infrastructure/log"
)

// Options 客户端行为选项
type Options struct {
	// Mode 传输通道类型，默认transport.KindHTTP
	Mode transport.Kind
	// Timeout 单次请求超时，默认transport.DefaultTimeout
	Timeout time.Duration
	// PollInterval 同步调用内部轮询间隔，默认proxy.DefaultPollInterval
	PollInterval time.Duration
	// Logger 日志记录器，默认使用全局记录器
	Logger logiface.Logger
}

// EasyAccess EasyAPI客户端实例
//
// 一个实例共享一组Endpoint+凭据；由它派生的代理、工作项管理器、
// 批量协调器共享同一通道与目录快照，Close使它们全部失效。
type EasyAccess struct {
	endpoint transport.Endpoint
	auth     *auth.Context
	channel  transport.Channel
	registry *registry.Registry
	manager  *work.Manager
	batch    *batch.Coordinator
	logger   logiface.Logger

	timeout      time.Duration
	pollInterval time.Duration
}

// New 连接服务端并加载算法目录
// host: 服务端地址，如 "https://easyapi.example.org/api"
func New(ctx context.Context, host, apiID, apiKey string) (*EasyAccess, error) {
	return NewWithOptions(ctx, host, apiID, apiKey, Options{})
}

// NewWithOptions 使用自定义选项连接服务端
func NewWithOptions(ctx context.Context, host, apiID, apiKey string, opts Options) (*EasyAccess, error) {
	authCtx, err := auth.NewContext(apiID, apiKey)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = ilog.L()
	}

	endpoint := transport.Endpoint{BaseURL: host, Kind: opts.Mode}
	channel, err := transport.New(endpoint, transport.Options{
		Timeout: opts.Timeout,
		Auth:    authCtx,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	c, err := assemble(ctx, endpoint, authCtx, channel, logger, opts)
	if err != nil {
		channel.Close()
		return nil, err
	}
	return c, nil
}

// NewWithChannel 使用自定义通道创建客户端
// 通道需自行负责认证装饰；用于测试或非标准传输
func NewWithChannel(ctx context.Context, channel transport.Channel, opts Options) (*EasyAccess, error) {
	logger := opts.Logger
	if logger == nil {
		logger = ilog.L()
	}
	return assemble(ctx, transport.Endpoint{}, nil, channel, logger, opts)
}

// assemble 组装客户端并完成初次目录刷新
func assemble(ctx context.Context, endpoint transport.Endpoint, authCtx *auth.Context, channel transport.Channel, logger logiface.Logger, opts Options) (*EasyAccess, error) {
	reg := registry.New(channel, logger)
	if err := reg.Refresh(ctx); err != nil {
		return nil, err
	}

	manager := work.New(channel, logger)

	return &EasyAccess{
		endpoint:     endpoint,
		auth:         authCtx,
		channel:      channel,
		registry:     reg,
		manager:      manager,
		batch:        batch.New(channel, reg, logger),
		logger:       logger,
		timeout:      opts.Timeout,
		pollInterval: opts.PollInterval,
	}, nil
}

// Algorithms 返回可用算法名列表
func (c *EasyAccess) Algorithms() []string {
	return c.registry.Names()
}

// Descriptors 以只读形式暴露缓存的算法描述符集合
// 供文档渲染等外部协作方消费，核心不依赖渲染方
func (c *EasyAccess) Descriptors() []*schema.AlgorithmDescriptor {
	return c.registry.List()
}

// ServerInfo 返回连接时捕获的服务端信息
func (c *EasyAccess) ServerInfo() (registry.ServerInfo, bool) {
	return c.registry.ServerInfo()
}

// Algorithm 按名称返回调用代理
// 代理绑定当前快照中的描述符；之后的Refresh不影响已返回的代理
func (c *EasyAccess) Algorithm(name string) (*proxy.CallProxy, error) {
	desc, err := c.registry.Describe(name)
	if err != nil {
		return nil, err
	}
	return proxy.New(desc, c.manager, c.logger, c.pollInterval, c.timeout), nil
}

// Refresh 重新拉取算法目录并原子替换快照
func (c *EasyAccess) Refresh(ctx context.Context) error {
	return c.registry.Refresh(ctx)
}

// Batch 将多个调用聚合为单次批量请求执行
func (c *EasyAccess) Batch(ctx context.Context, calls []batch.Call) []batch.Result {
	return c.batch.Execute(ctx, calls)
}

// Work 返回工作项管理器，用于手动跟踪异步调用
func (c *EasyAccess) Work() *work.Manager {
	return c.manager
}

// Registry 返回目录缓存
func (c *EasyAccess) Registry() *registry.Registry {
	return c.registry
}

// Ping 检查通道存活状态
func (c *EasyAccess) Ping(ctx context.Context) error {
	return c.channel.Ping(ctx)
}

// Close 关闭通道并清空本地工作项跟踪
func (c *EasyAccess) Close() error {
	c.manager.Close()
	return c.channel.Close()
}
