package blockchain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/meridian-commerce/meridian-chain/pkg/logger"
)

const (
	nonceLockTTL       = 30 * time.Second
	nonceLockWait      = 10 * time.Second
	nonceLockRetryGap  = 100 * time.Millisecond
	nonceCacheKeyspace = "meridian:chain:nonce"
)

// ErrNonceLockTimeout 获取 nonce 锁超时
var ErrNonceLockTimeout = errors.New("nonce lock timeout")

// NonceManager 管理各签名钱包的 nonce 分配
//
// 同一 (钱包, 链) 的交易提交必须串行：Acquire 持有 Redis 分布式锁，
// Confirm/Release/OnTxFailed 释放。多实例部署时由锁保证全局串行。
type NonceManager struct {
	rdb *redis.Client

	mu    sync.Mutex
	next  map[string]uint64 // 本地 nonce 缓存，key = wallet:chainID
	locks map[string]string // 持有中的锁 token
}

// NewNonceManager 创建 nonce 管理器
func NewNonceManager(rdb *redis.Client) *NonceManager {
	return &NonceManager{
		rdb:   rdb,
		next:  make(map[string]uint64),
		locks: make(map[string]string),
	}
}

func nonceKey(wallet common.Address, chainID string) string {
	return fmt.Sprintf("%s:%s:%s", nonceCacheKeyspace, wallet.Hex(), chainID)
}

// AcquireNonce 锁定钱包并分配下一个 nonce
// 本地缓存为空或落后于链上时从链同步
func (m *NonceManager) AcquireNonce(ctx context.Context, c *Client) (uint64, error) {
	wallet, ok := c.SignerAddress()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrWalletNotConfigured, c.Network())
	}
	key := nonceKey(wallet, c.ChainID().String())

	if err := m.lock(ctx, key); err != nil {
		return 0, err
	}

	chainNonce, err := c.PendingNonceAt(ctx, wallet)
	if err != nil {
		m.unlock(ctx, key)
		return 0, err
	}

	m.mu.Lock()
	cached, exists := m.next[key]
	nonce := chainNonce
	if exists && cached > chainNonce {
		nonce = cached
	}
	m.mu.Unlock()
	return nonce, nil
}

// ConfirmNonce 广播成功，推进缓存并释放锁
func (m *NonceManager) ConfirmNonce(ctx context.Context, c *Client, nonce uint64) {
	wallet, _ := c.SignerAddress()
	key := nonceKey(wallet, c.ChainID().String())

	m.mu.Lock()
	m.next[key] = nonce + 1
	m.mu.Unlock()
	m.unlock(ctx, key)
}

// ReleaseNonce 广播前失败，nonce 未消耗，仅释放锁
func (m *NonceManager) ReleaseNonce(ctx context.Context, c *Client, nonce uint64) {
	wallet, _ := c.SignerAddress()
	key := nonceKey(wallet, c.ChainID().String())
	m.unlock(ctx, key)
}

// OnTxFailed 广播失败，nonce 过期类错误时丢弃缓存从链重新同步
func (m *NonceManager) OnTxFailed(ctx context.Context, c *Client, nonce uint64, cause error) {
	wallet, _ := c.SignerAddress()
	key := nonceKey(wallet, c.ChainID().String())

	if errors.Is(cause, ErrNonceExpired) {
		m.mu.Lock()
		delete(m.next, key)
		m.mu.Unlock()
		logger.Warn("nonce 过期，已丢弃本地缓存",
			zap.String("network", c.Network()),
			zap.String("wallet", wallet.Hex()),
			zap.Uint64("nonce", nonce))
	}
	m.unlock(ctx, key)
}

// lock 获取分布式锁，SET NX + 过期时间
func (m *NonceManager) lock(ctx context.Context, key string) error {
	token := fmt.Sprintf("%d", time.Now().UnixNano())
	lockKey := key + ":lock"
	deadline := time.Now().Add(nonceLockWait)

	for {
		ok, err := m.rdb.SetNX(ctx, lockKey, token, nonceLockTTL).Result()
		if err != nil {
			return fmt.Errorf("acquire nonce lock: %w", err)
		}
		if ok {
			m.mu.Lock()
			m.locks[lockKey] = token
			m.mu.Unlock()
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", ErrNonceLockTimeout, key)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(nonceLockRetryGap):
		}
	}
}

// unlock 仅释放自己持有的锁
func (m *NonceManager) unlock(ctx context.Context, key string) {
	lockKey := key + ":lock"
	m.mu.Lock()
	token, held := m.locks[lockKey]
	delete(m.locks, lockKey)
	m.mu.Unlock()
	if !held {
		return
	}

	// token 不匹配说明锁已过期被他人持有，不能删
	val, err := m.rdb.Get(ctx, lockKey).Result()
	if err == nil && val == token {
		m.rdb.Del(ctx, lockKey)
	}
}
