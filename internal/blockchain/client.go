package blockchain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/meridian-commerce/meridian-chain/internal/config"
	"github.com/meridian-commerce/meridian-chain/pkg/logger"
)

const (
	defaultGasLimit    = 300_000
	receiptPollBackoff = 3 * time.Second
	receiptMaxWait     = 5 * time.Minute
)

// Client 单一网络的链客户端
//
// 持有主备 RPC 端点，网络类错误自动切换端点重试。
// 私钥未配置时为只读客户端，签名发送返回 ErrWalletNotConfigured。
type Client struct {
	network   string
	chainID   *big.Int
	endpoints []string
	gasLimit  uint64

	privateKey *ecdsa.PrivateKey
	from       common.Address

	nonces *NonceManager

	mu      sync.RWMutex
	eth     *ethclient.Client
	current int
}

// NewClient 按网络配置创建客户端，不立即建连
func NewClient(cfg config.NetworkConfig, nonces *NonceManager) (*Client, error) {
	c := &Client{
		network:   cfg.Name,
		chainID:   big.NewInt(cfg.ChainID),
		endpoints: append([]string{cfg.RPCURL}, cfg.BackupRPCURLs...),
		gasLimit:  cfg.GasLimit,
		nonces:    nonces,
	}
	if c.gasLimit == 0 {
		c.gasLimit = defaultGasLimit
	}
	if cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("parse private key for %s: %w", cfg.Name, err)
		}
		c.privateKey = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}
	return c, nil
}

// Network 网络名称
func (c *Client) Network() string {
	return c.network
}

// ChainID 链 ID
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// SignerAddress 签名钱包地址，未配置私钥时 ok=false
func (c *Client) SignerAddress() (common.Address, bool) {
	return c.from, c.privateKey != nil
}

// Connect 建立连接并校验链 ID
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	var lastErr error
	for i := 0; i < len(c.endpoints); i++ {
		idx := (c.current + i) % len(c.endpoints)
		eth, err := ethclient.DialContext(ctx, c.endpoints[idx])
		if err != nil {
			lastErr = err
			continue
		}
		chainID, err := eth.ChainID(ctx)
		if err != nil {
			eth.Close()
			lastErr = err
			continue
		}
		if chainID.Cmp(c.chainID) != 0 {
			eth.Close()
			lastErr = fmt.Errorf("endpoint %s reports chain id %s, expected %s",
				c.endpoints[idx], chainID, c.chainID)
			continue
		}
		if c.eth != nil {
			c.eth.Close()
		}
		c.eth = eth
		c.current = idx
		logger.Info("链客户端已连接",
			zap.String("network", c.network),
			zap.String("endpoint", c.endpoints[idx]))
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrNetworkUnavailable, c.network, lastErr)
}

// client 获取当前连接，未连接时建连
func (c *Client) client(ctx context.Context) (*ethclient.Client, error) {
	c.mu.RLock()
	eth := c.eth
	c.mu.RUnlock()
	if eth != nil {
		return eth, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eth == nil {
		if err := c.connectLocked(ctx); err != nil {
			return nil, err
		}
	}
	return c.eth, nil
}

// withRetry 网络类错误时切换端点重试
func (c *Client) withRetry(ctx context.Context, fn func(eth *ethclient.Client) error) error {
	var lastErr error
	for attempt := 0; attempt < len(c.endpoints); attempt++ {
		eth, err := c.client(ctx)
		if err != nil {
			return err
		}
		err = ClassifyRPCError(fn(eth))
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return err
		}
		logger.Warn("链调用失败，切换端点",
			zap.String("network", c.network),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		c.mu.Lock()
		c.current = (c.current + 1) % len(c.endpoints)
		if c.eth != nil {
			c.eth.Close()
			c.eth = nil
		}
		c.mu.Unlock()
	}
	return lastErr
}

// GetBalance 查询原生币余额 (wei)
func (c *Client) GetBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var balance *big.Int
	err := c.withRetry(ctx, func(eth *ethclient.Client) error {
		var err error
		balance, err = eth.BalanceAt(ctx, addr, nil)
		return err
	})
	return balance, err
}

// PendingNonceAt 查询待定 nonce
func (c *Client) PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	var nonce uint64
	err := c.withRetry(ctx, func(eth *ethclient.Client) error {
		var err error
		nonce, err = eth.PendingNonceAt(ctx, addr)
		return err
	})
	return nonce, err
}

// SuggestGasPrice 查询建议 gas 价格
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var price *big.Int
	err := c.withRetry(ctx, func(eth *ethclient.Client) error {
		var err error
		price, err = eth.SuggestGasPrice(ctx)
		return err
	})
	return price, err
}

// EstimateGas 估算 gas 用量
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	var gas uint64
	err := c.withRetry(ctx, func(eth *ethclient.Client) error {
		var err error
		gas, err = eth.EstimateGas(ctx, msg)
		return err
	})
	return gas, err
}

// CallContract 只读合约调用
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var out []byte
	err := c.withRetry(ctx, func(eth *ethclient.Client) error {
		var err error
		out, err = eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
		return err
	})
	return out, err
}

// BlockNumber 查询最新区块号
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var n uint64
	err := c.withRetry(ctx, func(eth *ethclient.Client) error {
		var err error
		n, err = eth.BlockNumber(ctx)
		return err
	})
	return n, err
}

// SendTransaction 构造、签名并广播交易
//
// nonce 由 NonceManager 分配，同一签名钱包在同一网络上串行提交。
// to 为 nil 时为合约部署交易。
func (c *Client) SendTransaction(ctx context.Context, to *common.Address, value *big.Int, data []byte) (*types.Transaction, error) {
	if c.privateKey == nil {
		return nil, fmt.Errorf("%w: %s", ErrWalletNotConfigured, c.network)
	}

	nonce, err := c.nonces.AcquireNonce(ctx, c)
	if err != nil {
		return nil, err
	}

	gasPrice, err := c.SuggestGasPrice(ctx)
	if err != nil {
		c.nonces.ReleaseNonce(ctx, c, nonce)
		return nil, err
	}

	msg := ethereum.CallMsg{From: c.from, To: to, Value: value, GasPrice: gasPrice, Data: data}
	gasLimit, err := c.EstimateGas(ctx, msg)
	if err != nil {
		// 估算失败时使用配置上限兜底，revert 类错误直接失败
		if !IsRetryable(err) && len(data) > 0 {
			c.nonces.ReleaseNonce(ctx, c, nonce)
			return nil, err
		}
		gasLimit = c.gasLimit
	}
	if gasLimit > c.gasLimit {
		gasLimit = c.gasLimit
	}

	var tx *types.Transaction
	if to != nil {
		tx = types.NewTransaction(nonce, *to, value, gasLimit, gasPrice, data)
	} else {
		tx = types.NewContractCreation(nonce, value, gasLimit, gasPrice, data)
	}
	signed, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.privateKey)
	if err != nil {
		c.nonces.ReleaseNonce(ctx, c, nonce)
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	err = c.withRetry(ctx, func(eth *ethclient.Client) error {
		return eth.SendTransaction(ctx, signed)
	})
	if err != nil {
		c.nonces.OnTxFailed(ctx, c, nonce, err)
		return nil, err
	}
	c.nonces.ConfirmNonce(ctx, c, nonce)

	logger.Info("交易已广播",
		zap.String("network", c.network),
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce))
	return signed, nil
}

// TransactionReceipt 查询交易回执，未上链返回 ErrTxNotFound
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := c.withRetry(ctx, func(eth *ethclient.Client) error {
		var err error
		receipt, err = eth.TransactionReceipt(ctx, txHash)
		if err == ethereum.NotFound {
			return fmt.Errorf("%w: %s", ErrTxNotFound, txHash.Hex())
		}
		return err
	})
	return receipt, err
}

// WaitForReceipt 轮询等待回执并达到确认数
func (c *Client) WaitForReceipt(ctx context.Context, txHash common.Hash, confirmations uint64) (*types.Receipt, error) {
	deadline := time.NewTimer(receiptMaxWait)
	defer deadline.Stop()
	ticker := time.NewTicker(receiptPollBackoff)
	defer ticker.Stop()

	for {
		receipt, err := c.TransactionReceipt(ctx, txHash)
		if err == nil {
			if confirmations <= 1 {
				return receipt, nil
			}
			head, err := c.BlockNumber(ctx)
			if err == nil && head >= receipt.BlockNumber.Uint64()+confirmations-1 {
				return receipt, nil
			}
		} else if !errors.Is(err, ErrTxNotFound) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("%w: receipt wait timeout for %s", ErrTxNotFound, txHash.Hex())
		case <-ticker.C:
		}
	}
}

// VerifyTransaction 校验交易最终状态：已确认且未回滚
func (c *Client) VerifyTransaction(ctx context.Context, txHash common.Hash, confirmations uint64) (*types.Receipt, error) {
	receipt, err := c.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s", ErrTxReverted, txHash.Hex())
	}
	if confirmations > 1 {
		head, err := c.BlockNumber(ctx)
		if err != nil {
			return receipt, err
		}
		if head < receipt.BlockNumber.Uint64()+confirmations-1 {
			return receipt, fmt.Errorf("%w: %s awaiting confirmations", ErrTxNotFound, txHash.Hex())
		}
	}
	return receipt, nil
}

// SubscribeFilterLogs 订阅合约日志，需要 websocket 端点
func (c *Client) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	eth, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := eth.SubscribeFilterLogs(ctx, q, ch)
	if err != nil {
		return nil, ClassifyRPCError(err)
	}
	return sub, nil
}

// FilterLogs 拉取历史日志
func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := c.withRetry(ctx, func(eth *ethclient.Client) error {
		var err error
		logs, err = eth.FilterLogs(ctx, q)
		return err
	})
	return logs, err
}

// HealthCheck 检查节点可达性与链 ID 一致性
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.withRetry(ctx, func(eth *ethclient.Client) error {
		chainID, err := eth.ChainID(ctx)
		if err != nil {
			return err
		}
		if chainID.Cmp(c.chainID) != 0 {
			return fmt.Errorf("chain id mismatch: got %s, expected %s", chainID, c.chainID)
		}
		_, err = eth.BlockNumber(ctx)
		return err
	})
}

// Close 关闭连接
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}
}
