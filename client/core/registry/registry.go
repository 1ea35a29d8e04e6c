// Package registry 缓存服务端暴露的算法目录
//
// 刷新将完整替换上一份快照，绝不部分更新；损坏的刷新不影响旧快照。
// 已创建的CallProxy持有创建时刻的描述符，刷新不会替换其契约。
package registry

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/easyapi/easyaccess/client/core/schema"
	"github.com/easyapi/easyaccess/client/core/transport"
	logiface "github.com/easyapi/easyaccess/pkg/interfaces/infrastructure/log"
)

// ServerInfo 服务端自述信息，连接时捕获
type ServerInfo struct {
	Server string `json:"server"`
	ID     string `json:"id"`
}

// NotFoundError 算法不存在（或首次刷新前查询）
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("algorithm %q does not exist", e.Name)
}

// RegistryError 目录获取或解析失败
type RegistryError struct {
	Message string
	Err     error
}

func (e *RegistryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("registry: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("registry: %s", e.Message)
}

func (e *RegistryError) Unwrap() error {
	return e.Err
}

// snapshot 一份完整的目录快照，构建后不可变
type snapshot struct {
	info    ServerInfo
	hasInfo bool
	order   []string
	byName  map[string]*schema.AlgorithmDescriptor
}

// Registry 算法目录缓存
type Registry struct {
	channel transport.Channel
	logger  logiface.Logger

	mu   sync.RWMutex
	snap *snapshot
}

// New 创建目录缓存，首次Refresh前Describe返回NotFoundError、List返回空
func New(channel transport.Channel, logger logiface.Logger) *Registry {
	return &Registry{
		channel: channel,
		logger:  logger,
	}
}

// Refresh 拉取目录并原子替换快照
//
// 整个目录解析且校验通过后才发生替换；任何目录失败都保留旧快照不变。
// 服务端自述信息是辅助数据：获取失败只降级记录，不阻断目录刷新。
func (r *Registry) Refresh(ctx context.Context) error {
	info, hasInfo := r.fetchServerInfo(ctx)

	catalogResp, err := r.channel.Send(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   "entries/",
		Query:  map[string]string{"io": "full"},
	})
	if err != nil {
		return &RegistryError{Message: "fetch catalog", Err: err}
	}

	var payload struct {
		Records []*schema.AlgorithmDescriptor `json:"records"`
	}
	if err := catalogResp.Decode(&payload); err != nil {
		return &RegistryError{Message: "parse catalog", Err: err}
	}

	next := &snapshot{
		info:    info,
		hasInfo: hasInfo,
		order:   make([]string, 0, len(payload.Records)),
		byName:  make(map[string]*schema.AlgorithmDescriptor, len(payload.Records)),
	}
	for _, desc := range payload.Records {
		if desc == nil {
			return &RegistryError{Message: "catalog contains empty record"}
		}
		if err := desc.Validate(); err != nil {
			return &RegistryError{Message: "invalid descriptor", Err: err}
		}
		if _, dup := next.byName[desc.Name]; dup {
			return &RegistryError{Message: fmt.Sprintf("duplicate algorithm %q in catalog", desc.Name)}
		}
		next.order = append(next.order, desc.Name)
		next.byName[desc.Name] = desc
	}

	r.mu.Lock()
	r.snap = next
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.Infof("registry: loaded %d algorithms from %s", len(next.order), info.Server)
	}
	return nil
}

// fetchServerInfo 获取服务端自述信息，失败时降级为空
func (r *Registry) fetchServerInfo(ctx context.Context) (ServerInfo, bool) {
	resp, err := r.channel.Send(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   "",
	})
	if err != nil {
		if r.logger != nil {
			r.logger.Warnf("registry: server info unavailable: %v", err)
		}
		return ServerInfo{}, false
	}
	var info ServerInfo
	if err := resp.Decode(&info); err != nil {
		if r.logger != nil {
			r.logger.Warnf("registry: unreadable server info: %v", err)
		}
		return ServerInfo{}, false
	}
	return info, true
}

// Describe 返回指定算法的描述符
func (r *Registry) Describe(name string) (*schema.AlgorithmDescriptor, error) {
	r.mu.RLock()
	snap := r.snap
	r.mu.RUnlock()

	if snap == nil {
		return nil, &NotFoundError{Name: name}
	}
	desc, ok := snap.byName[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return desc, nil
}

// List 按目录顺序返回全部描述符
func (r *Registry) List() []*schema.AlgorithmDescriptor {
	r.mu.RLock()
	snap := r.snap
	r.mu.RUnlock()

	if snap == nil {
		return nil
	}
	descs := make([]*schema.AlgorithmDescriptor, 0, len(snap.order))
	for _, name := range snap.order {
		descs = append(descs, snap.byName[name])
	}
	return descs
}

// Names 按目录顺序返回算法名
func (r *Registry) Names() []string {
	r.mu.RLock()
	snap := r.snap
	r.mu.RUnlock()

	if snap == nil {
		return nil
	}
	names := make([]string, len(snap.order))
	copy(names, snap.order)
	return names
}

// ServerInfo 返回最近一次刷新捕获的服务端信息
func (r *Registry) ServerInfo() (ServerInfo, bool) {
	r.mu.RLock()
	snap := r.snap
	r.mu.RUnlock()

	if snap == nil {
		return ServerInfo{}, false
	}
	return snap.info, snap.hasInfo
}

// Len 返回当前快照中的算法数量
func (r *Registry) Len() int {
	r.mu.RLock()
	snap := r.snap
	r.mu.RUnlock()

	if snap == nil {
		return 0
	}
	return len(snap.order)
}
