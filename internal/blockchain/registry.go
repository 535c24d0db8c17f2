package blockchain

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/meridian-commerce/meridian-chain/internal/config"
	"github.com/meridian-commerce/meridian-chain/pkg/logger"
)

// Registry 网络客户端注册表
//
// 启动时按配置构建全部客户端，按网络名称解析。
// 通过依赖注入传递，不使用包级单例。
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	tokens  map[string]string // 网络 -> ERC20 代币合约地址，空为原生币结算
	mgrs    map[string]string // 网络 -> 返现管理合约地址
}

// NewRegistry 按配置创建注册表
func NewRegistry(networks []config.NetworkConfig, nonces *NonceManager) (*Registry, error) {
	r := &Registry{
		clients: make(map[string]*Client),
		tokens:  make(map[string]string),
		mgrs:    make(map[string]string),
	}
	for _, nc := range networks {
		c, err := NewClient(nc, nonces)
		if err != nil {
			return nil, err
		}
		r.clients[nc.Name] = c
		if nc.TokenContract != "" {
			r.tokens[nc.Name] = nc.TokenContract
		}
		if nc.ManagerContract != "" {
			r.mgrs[nc.Name] = nc.ManagerContract
		}
	}
	return r, nil
}

// Get 按名称解析客户端
func (r *Registry) Get(network string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[network]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedNetwork, network)
	}
	return c, nil
}

// TokenContract 网络的 ERC20 结算代币地址，空字符串表示原生币结算
func (r *Registry) TokenContract(network string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tokens[network]
}

// ManagerContract 网络的返现管理合约地址
func (r *Registry) ManagerContract(network string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mgrs[network]
}

// Networks 全部已注册网络名称，排序保证遍历顺序稳定
func (r *Registry) Networks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConnectAll 启动时预连接全部网络，单网络失败不阻塞其余网络
func (r *Registry) ConnectAll(ctx context.Context) {
	for _, name := range r.Networks() {
		c, _ := r.Get(name)
		if err := c.Connect(ctx); err != nil {
			logger.Warn("网络预连接失败，将在首次使用时重连",
				zap.String("network", name),
				zap.Error(err))
		}
	}
}

// HealthCheck 逐网络健康检查，返回网络名到错误的映射
func (r *Registry) HealthCheck(ctx context.Context) map[string]error {
	result := make(map[string]error)
	for _, name := range r.Networks() {
		c, _ := r.Get(name)
		result[name] = c.HealthCheck(ctx)
	}
	return result
}

// Close 关闭全部连接
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		c.Close()
	}
}
