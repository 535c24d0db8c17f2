package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/meridian-commerce/meridian-chain/internal/blockchain"
	"github.com/meridian-commerce/meridian-chain/internal/contract"
	"github.com/meridian-commerce/meridian-chain/internal/metrics"
	"github.com/meridian-commerce/meridian-chain/internal/model"
	"github.com/meridian-commerce/meridian-chain/internal/repository"
	"github.com/meridian-commerce/meridian-chain/pkg/logger"
)

// ErrCashbackNotFound 返现记录不存在
var ErrCashbackNotFound = errors.New("cashback not found")

const nativeDecimals = 18

// ChainClient 结算路径需要的链客户端能力
type ChainClient interface {
	Network() string
	SignerAddress() (common.Address, bool)
	GetBalance(ctx context.Context, addr common.Address) (*big.Int, error)
	SendTransaction(ctx context.Context, to *common.Address, value *big.Int, data []byte) (*types.Transaction, error)
	WaitForReceipt(ctx context.Context, txHash common.Hash, confirmations uint64) (*types.Receipt, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// ChainRegistry 网络解析
type ChainRegistry interface {
	Get(network string) (ChainClient, error)
	TokenContract(network string) string
	ManagerContract(network string) string
}

// ContractGateway 合约交互
type ContractGateway interface {
	Execute(ctx context.Context, network, address string, method contract.Method, params contract.ExecuteParams) (*types.Transaction, error)
	TokenDecimals(ctx context.Context, network, token string) (uint8, error)
	TokenSymbol(ctx context.Context, network, token string) (string, error)
	TokenBalance(ctx context.Context, network, token string, owner common.Address) (*big.Int, error)
}

// EventPublisher 结算结果发布
type EventPublisher interface {
	SendCashbackSettled(event *model.CashbackSettled) error
	SendCashbackFailed(event *model.CashbackSettled) error
}

// CashbackStore 返现仓储能力
type CashbackStore interface {
	GetByCashbackID(ctx context.Context, cashbackID string) (*model.Cashback, error)
	GetByTxHash(ctx context.Context, txHash string) (*model.Cashback, error)
	ListPending(ctx context.Context, limit int) ([]*model.Cashback, error)
	ListFailedRetryable(ctx context.Context, maxRetries, limit int) ([]*model.Cashback, error)
	ListExpired(ctx context.Context, limit int) ([]*model.Cashback, error)
	MarkProcessing(ctx context.Context, cashbackID string) (bool, error)
	UpdateTxHash(ctx context.Context, cashbackID, txHash string) error
	MarkCompleted(ctx context.Context, cashbackID, txHash string, blockNumber int64) error
	MarkFailed(ctx context.Context, cashbackID, reason string) error
	MarkCancelled(ctx context.Context, cashbackID string) (bool, error)
}

// WalletStore 用户钱包查询
type WalletStore interface {
	GetByUserID(ctx context.Context, userID string) (*model.UserWallet, error)
}

// TransactionStore 链上交易仓储能力
type TransactionStore interface {
	Create(ctx context.Context, tx *model.BlockchainTransaction) error
	GetByTxHash(ctx context.Context, txHash string) (*model.BlockchainTransaction, error)
	ListPending(ctx context.Context, network string, limit int) ([]*model.BlockchainTransaction, error)
	MarkConfirmed(ctx context.Context, txHash string, blockNumber int64, blockHash string, gasUsed int64, gasPrice, gasFee decimal.Decimal) error
	MarkFailed(ctx context.Context, txHash string, blockNumber int64, blockHash string, gasUsed int64, gasPrice, gasFee decimal.Decimal) error
}

// TxRunner 数据库事务执行
type TxRunner interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SettlementOptions 结算参数
type SettlementOptions struct {
	BatchSize     int
	MaxRetries    int
	Confirmations uint64
}

// BatchResult 批处理聚合结果
type BatchResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// SettlementService 返现结算服务
//
// 状态机：PENDING -> PROCESSING -> COMPLETED/FAILED，
// FAILED -> PROCESSING (重试)，PENDING -> CANCELLED (过期)。
// 终态单调：COMPLETED/CANCELLED 之后不再迁移。
type SettlementService struct {
	cashbacks    CashbackStore
	wallets      WalletStore
	transactions TransactionStore
	runner       TxRunner
	registry     ChainRegistry
	gateway      ContractGateway
	publisher    EventPublisher
	opts         SettlementOptions
}

// NewSettlementService 创建结算服务
func NewSettlementService(
	cashbacks CashbackStore,
	wallets WalletStore,
	transactions TransactionStore,
	runner TxRunner,
	registry ChainRegistry,
	gateway ContractGateway,
	publisher EventPublisher,
	opts SettlementOptions,
) *SettlementService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Confirmations == 0 {
		opts.Confirmations = 1
	}
	return &SettlementService{
		cashbacks:    cashbacks,
		wallets:      wallets,
		transactions: transactions,
		runner:       runner,
		registry:     registry,
		gateway:      gateway,
		publisher:    publisher,
		opts:         opts,
	}
}

// HandleCashbackCreated Kafka 消费入口
func (s *SettlementService) HandleCashbackCreated(ctx context.Context, event *model.CashbackCreated) error {
	return s.ProcessCashback(ctx, event.CashbackID)
}

// ProcessCashback 结算单笔返现
//
// 仅 PENDING 和未达重试上限的 FAILED 记录会被处理，其余状态静默跳过，
// 重复触发不会造成二次转账。校验失败在状态迁移前直接返回，不污染记录。
func (s *SettlementService) ProcessCashback(ctx context.Context, cashbackID string) error {
	cb, err := s.cashbacks.GetByCashbackID(ctx, cashbackID)
	if err != nil {
		if repository.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrCashbackNotFound, cashbackID)
		}
		return err
	}

	switch cb.Status {
	case model.CashbackStatusPending:
	case model.CashbackStatusFailed:
		if cb.RetryCount >= s.opts.MaxRetries {
			logger.Warn("返现重试次数已达上限，跳过",
				zap.String("cashback_id", cashbackID),
				zap.Int("retry_count", cb.RetryCount))
			return nil
		}
		// 上次广播可能已经上链（等待确认超时的场景），
		// 重新提交前先按哈希对账，避免重复转账
		if cb.TxHash != "" {
			if err := s.MonitorTransaction(ctx, cb.TxHash); err != nil && !errors.Is(err, blockchain.ErrTxNotFound) {
				return err
			}
			fresh, err := s.cashbacks.GetByCashbackID(ctx, cashbackID)
			if err != nil {
				return err
			}
			if fresh.Status != model.CashbackStatusFailed {
				logger.Info("失败返现经对账闭环，不再重试",
					zap.String("cashback_id", cashbackID),
					zap.String("status", fresh.Status.String()))
				return nil
			}
			cb = fresh
		}
	default:
		// PROCESSING/COMPLETED/CANCELLED 一律跳过
		logger.Debug("返现状态不可结算，跳过",
			zap.String("cashback_id", cashbackID),
			zap.String("status", cb.Status.String()))
		return nil
	}

	now := time.Now().UnixMilli()
	if cb.ExpiresAt > 0 && cb.ExpiresAt <= now {
		// 过期记录交给取消扫描
		return nil
	}
	if cb.EligibleAt > now {
		return nil
	}

	// 迁移状态前完成全部校验
	client, err := s.registry.Get(cb.Network)
	if err != nil {
		return err
	}
	recipient, err := s.resolveWallet(ctx, cb)
	if err != nil {
		return err
	}
	if !cb.Amount.IsPositive() {
		return fmt.Errorf("invalid cashback amount %s for %s", cb.Amount, cashbackID)
	}

	ok, err := s.cashbacks.MarkProcessing(ctx, cashbackID)
	if err != nil {
		return err
	}
	if !ok {
		// 并发抢占，另一路径已在处理
		return nil
	}

	start := time.Now()
	txHash, err := s.submit(ctx, client, cb, recipient)
	if err != nil {
		s.failSettlement(ctx, cb, err)
		return err
	}

	if err := s.cashbacks.UpdateTxHash(ctx, cashbackID, txHash.Hex()); err != nil {
		logger.Error("记录交易哈希失败", zap.String("cashback_id", cashbackID), zap.Error(err))
	}

	receipt, err := client.WaitForReceipt(ctx, txHash, s.opts.Confirmations)
	if err != nil {
		s.failSettlement(ctx, cb, err)
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		err := fmt.Errorf("%w: %s", blockchain.ErrTxReverted, txHash.Hex())
		s.reconcileFailed(ctx, cb, txHash.Hex(), receipt)
		return err
	}

	if err := s.completeSettlement(ctx, cb, txHash.Hex(), receipt); err != nil {
		return err
	}

	metrics.CashbacksProcessed.WithLabelValues(cb.Network, "completed").Inc()
	metrics.SettlementDuration.WithLabelValues(cb.Network).Observe(time.Since(start).Seconds())
	logger.Info("返现结算完成",
		zap.String("cashback_id", cashbackID),
		zap.String("network", cb.Network),
		zap.String("tx_hash", txHash.Hex()),
		zap.Int64("block", receipt.BlockNumber.Int64()))
	return nil
}

// resolveWallet 解析收款地址：记录自带优先，否则回查用户钱包绑定
func (s *SettlementService) resolveWallet(ctx context.Context, cb *model.Cashback) (common.Address, error) {
	addr := cb.WalletAddress
	if addr == "" {
		w, err := s.wallets.GetByUserID(ctx, cb.UserID)
		if err != nil {
			if repository.IsNotFound(err) {
				return common.Address{}, fmt.Errorf("%w: user %s has no wallet", blockchain.ErrInvalidAddress, cb.UserID)
			}
			return common.Address{}, err
		}
		addr = w.WalletAddress
	}
	if !common.IsHexAddress(addr) {
		return common.Address{}, fmt.Errorf("%w: %s", blockchain.ErrInvalidAddress, addr)
	}
	return common.HexToAddress(addr), nil
}

// submit 广播结算交易，按网络配置选择路径：
// 管理合约 allocateCashback > ERC20 transfer > 原生转账
func (s *SettlementService) submit(ctx context.Context, client ChainClient, cb *model.Cashback, recipient common.Address) (common.Hash, error) {
	network := cb.Network

	if manager := s.registry.ManagerContract(network); manager != "" {
		token := s.registry.TokenContract(network)
		amount, err := s.tokenUnits(ctx, network, token, cb.Amount)
		if err != nil {
			return common.Hash{}, err
		}
		tx, err := s.gateway.Execute(ctx, network, manager, contract.MethodAllocateCashback, contract.ExecuteParams{
			Recipient:  recipient,
			CashbackID: cb.CashbackID,
			Amount:     amount,
			RefType:    model.TxRefTypeCashback,
			RefID:      cb.CashbackID,
		})
		if err != nil {
			return common.Hash{}, err
		}
		metrics.TxBroadcasts.WithLabelValues(network, "manager").Inc()
		return tx.Hash(), nil
	}

	signer, ok := client.SignerAddress()
	if !ok {
		return common.Hash{}, fmt.Errorf("%w: %s", blockchain.ErrWalletNotConfigured, network)
	}

	if token := s.registry.TokenContract(network); token != "" {
		amount, err := s.tokenUnits(ctx, network, token, cb.Amount)
		if err != nil {
			return common.Hash{}, err
		}
		// 代币符号仅用于日志标识，读取失败不阻塞结算
		symbol, err := s.gateway.TokenSymbol(ctx, network, token)
		if err != nil {
			logger.Debug("读取代币符号失败",
				zap.String("token", token),
				zap.Error(err))
		}
		balance, err := s.gateway.TokenBalance(ctx, network, token, signer)
		if err != nil {
			return common.Hash{}, err
		}
		if balance.Cmp(amount) < 0 {
			return common.Hash{}, fmt.Errorf("%w: token balance %s < %s", blockchain.ErrInsufficientFunds, balance, amount)
		}
		data, err := contract.PackTransfer(recipient, amount)
		if err != nil {
			return common.Hash{}, err
		}
		tokenAddr := common.HexToAddress(token)
		tx, err := client.SendTransaction(ctx, &tokenAddr, big.NewInt(0), data)
		if err != nil {
			return common.Hash{}, err
		}
		s.recordBroadcast(ctx, cb, tx, signer, token)
		metrics.TxBroadcasts.WithLabelValues(network, "erc20").Inc()
		logger.Info("代币返现已广播",
			zap.String("cashback_id", cb.CashbackID),
			zap.String("token", token),
			zap.String("symbol", symbol),
			zap.String("tx_hash", tx.Hash().Hex()))
		return tx.Hash(), nil
	}

	// 原生币转账
	amount := cb.Amount.Shift(nativeDecimals).BigInt()
	balance, err := client.GetBalance(ctx, signer)
	if err != nil {
		return common.Hash{}, err
	}
	if balance.Cmp(amount) < 0 {
		return common.Hash{}, fmt.Errorf("%w: balance %s < %s", blockchain.ErrInsufficientFunds, balance, amount)
	}
	tx, err := client.SendTransaction(ctx, &recipient, amount, nil)
	if err != nil {
		return common.Hash{}, err
	}
	s.recordBroadcast(ctx, cb, tx, signer, "")
	metrics.TxBroadcasts.WithLabelValues(network, "native").Inc()
	return tx.Hash(), nil
}

// tokenUnits 十进制金额换算为代币最小单位
func (s *SettlementService) tokenUnits(ctx context.Context, network, token string, amount decimal.Decimal) (*big.Int, error) {
	decimals := uint8(nativeDecimals)
	if token != "" {
		d, err := s.gateway.TokenDecimals(ctx, network, token)
		if err != nil {
			return nil, err
		}
		decimals = d
	}
	return amount.Shift(int32(decimals)).BigInt(), nil
}

// recordBroadcast 广播后立即落库交易记录
//
// 广播与落库之间崩溃会留下链上已发而本地无记录的缺口，
// 由交易监控与事件接入路径对账补齐。
func (s *SettlementService) recordBroadcast(ctx context.Context, cb *model.Cashback, tx *types.Transaction, from common.Address, token string) {
	row := &model.BlockchainTransaction{
		TxHash:      tx.Hash().Hex(),
		Network:     cb.Network,
		FromAddress: from.Hex(),
		Value:       decimal.NewFromBigInt(tx.Value(), -nativeDecimals),
		Status:      model.TransactionStatusPending,
		RefType:     model.TxRefTypeCashback,
		RefID:       cb.CashbackID,
		SentAt:      time.Now().UnixMilli(),
	}
	if tx.To() != nil {
		row.ToAddress = tx.To().Hex()
	}
	if err := s.transactions.Create(ctx, row); err != nil {
		logger.Error("交易记录落库失败",
			zap.String("tx_hash", row.TxHash),
			zap.String("cashback_id", cb.CashbackID),
			zap.Error(err))
	}
}

// completeSettlement 确认成功，交易记录与返现状态在同一数据库事务提交
func (s *SettlementService) completeSettlement(ctx context.Context, cb *model.Cashback, txHash string, receipt *types.Receipt) error {
	gasUsed, gasPrice, gasFee := receiptCost(receipt)
	err := s.runner.Transaction(ctx, func(ctx context.Context) error {
		if err := s.transactions.MarkConfirmed(ctx, txHash,
			receipt.BlockNumber.Int64(), receipt.BlockHash.Hex(), gasUsed, gasPrice, gasFee); err != nil {
			return err
		}
		return s.cashbacks.MarkCompleted(ctx, cb.CashbackID, txHash, receipt.BlockNumber.Int64())
	})
	if err != nil {
		return err
	}

	metrics.GasFeeSpent.WithLabelValues(cb.Network).Add(gasFee.InexactFloat64())
	s.publish(cb, txHash, receipt.BlockNumber.Int64(), model.CashbackStatusCompleted, "")
	return nil
}

// reconcileFailed 链上回滚，交易与返现同事务标记失败
func (s *SettlementService) reconcileFailed(ctx context.Context, cb *model.Cashback, txHash string, receipt *types.Receipt) {
	gasUsed, gasPrice, gasFee := receiptCost(receipt)
	err := s.runner.Transaction(ctx, func(ctx context.Context) error {
		if err := s.transactions.MarkFailed(ctx, txHash,
			receipt.BlockNumber.Int64(), receipt.BlockHash.Hex(), gasUsed, gasPrice, gasFee); err != nil {
			return err
		}
		return s.cashbacks.MarkFailed(ctx, cb.CashbackID, blockchain.ErrTxReverted.Error())
	})
	if err != nil {
		logger.Error("回滚对账失败", zap.String("cashback_id", cb.CashbackID), zap.Error(err))
	}
	metrics.CashbacksProcessed.WithLabelValues(cb.Network, "reverted").Inc()
	s.notifyIfExhausted(ctx, cb, txHash)
}

// failSettlement 广播前或等待确认阶段失败
func (s *SettlementService) failSettlement(ctx context.Context, cb *model.Cashback, cause error) {
	if err := s.cashbacks.MarkFailed(ctx, cb.CashbackID, cause.Error()); err != nil {
		logger.Error("标记返现失败出错", zap.String("cashback_id", cb.CashbackID), zap.Error(err))
	}
	metrics.CashbacksProcessed.WithLabelValues(cb.Network, "failed").Inc()
	logger.Warn("返现结算失败",
		zap.String("cashback_id", cb.CashbackID),
		zap.String("network", cb.Network),
		zap.Error(cause))
	s.notifyIfExhausted(ctx, cb, cb.TxHash)
}

// notifyIfExhausted 重试耗尽后发布失败事件
func (s *SettlementService) notifyIfExhausted(ctx context.Context, cb *model.Cashback, txHash string) {
	fresh, err := s.cashbacks.GetByCashbackID(ctx, cb.CashbackID)
	if err != nil {
		return
	}
	if fresh.Status == model.CashbackStatusFailed && fresh.RetryCount >= s.opts.MaxRetries {
		s.publish(fresh, txHash, fresh.BlockNumber, model.CashbackStatusFailed, fresh.FailureReason)
	}
}

func (s *SettlementService) publish(cb *model.Cashback, txHash string, blockNumber int64, status model.CashbackStatus, reason string) {
	event := &model.CashbackSettled{
		CashbackID:  cb.CashbackID,
		PaymentID:   cb.PaymentID,
		UserID:      cb.UserID,
		Network:     cb.Network,
		TxHash:      txHash,
		BlockNumber: blockNumber,
		Status:      status.String(),
		Error:       reason,
		SettledAt:   time.Now().UnixMilli(),
	}
	var err error
	if status == model.CashbackStatusCompleted {
		err = s.publisher.SendCashbackSettled(event)
	} else {
		err = s.publisher.SendCashbackFailed(event)
	}
	if err != nil {
		logger.Error("发布结算事件失败",
			zap.String("cashback_id", cb.CashbackID),
			zap.Error(err))
	}
}

// ProcessPending 扫描并结算到期的待结算返现
// 顺序处理，同一签名钱包的提交由 nonce 锁保证串行
func (s *SettlementService) ProcessPending(ctx context.Context) (BatchResult, error) {
	list, err := s.cashbacks.ListPending(ctx, s.opts.BatchSize)
	if err != nil {
		return BatchResult{}, err
	}
	return s.processBatch(ctx, list), nil
}

// RetryFailed 扫描并重试未达上限的失败返现
func (s *SettlementService) RetryFailed(ctx context.Context) (BatchResult, error) {
	list, err := s.cashbacks.ListFailedRetryable(ctx, s.opts.MaxRetries, s.opts.BatchSize)
	if err != nil {
		return BatchResult{}, err
	}
	for _, cb := range list {
		metrics.CashbacksRetried.WithLabelValues(cb.Network).Inc()
	}
	return s.processBatch(ctx, list), nil
}

func (s *SettlementService) processBatch(ctx context.Context, list []*model.Cashback) BatchResult {
	var result BatchResult
	for _, cb := range list {
		if ctx.Err() != nil {
			break
		}
		result.Processed++
		if err := s.ProcessCashback(ctx, cb.CashbackID); err != nil {
			result.Failed++
			continue
		}
		fresh, err := s.cashbacks.GetByCashbackID(ctx, cb.CashbackID)
		if err == nil && fresh.Status == model.CashbackStatusCompleted {
			result.Succeeded++
		} else {
			result.Skipped++
		}
	}
	return result
}

// CancelExpired 过期扫描，PENDING 记录过期后迁移为 CANCELLED
func (s *SettlementService) CancelExpired(ctx context.Context) (BatchResult, error) {
	list, err := s.cashbacks.ListExpired(ctx, s.opts.BatchSize)
	if err != nil {
		return BatchResult{}, err
	}
	var result BatchResult
	for _, cb := range list {
		result.Processed++
		ok, err := s.cashbacks.MarkCancelled(ctx, cb.CashbackID)
		if err != nil {
			result.Failed++
			continue
		}
		if !ok {
			result.Skipped++
			continue
		}
		result.Succeeded++
		metrics.CashbacksCancelled.Inc()
		logger.Info("返现已过期取消",
			zap.String("cashback_id", cb.CashbackID),
			zap.Int64("expires_at", cb.ExpiresAt))
	}
	return result, nil
}

// MonitorTransaction 按回执对账单笔交易
// 交易未上链时保持 PENDING 返回 nil，留待下轮扫描
func (s *SettlementService) MonitorTransaction(ctx context.Context, txHash string) error {
	row, err := s.transactions.GetByTxHash(ctx, txHash)
	if err != nil {
		if repository.IsNotFound(err) {
			return fmt.Errorf("%w: %s", blockchain.ErrTxNotFound, txHash)
		}
		return err
	}
	if row.Status.IsTerminal() {
		return nil
	}

	client, err := s.registry.Get(row.Network)
	if err != nil {
		return err
	}
	receipt, err := client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, blockchain.ErrTxNotFound) {
			logger.Debug("交易尚未上链", zap.String("tx_hash", txHash))
			return nil
		}
		return err
	}

	gasUsed, gasPrice, gasFee := receiptCost(receipt)
	confirmed := receipt.Status == types.ReceiptStatusSuccessful

	err = s.runner.Transaction(ctx, func(ctx context.Context) error {
		if confirmed {
			if err := s.transactions.MarkConfirmed(ctx, txHash,
				receipt.BlockNumber.Int64(), receipt.BlockHash.Hex(), gasUsed, gasPrice, gasFee); err != nil {
				return err
			}
		} else {
			if err := s.transactions.MarkFailed(ctx, txHash,
				receipt.BlockNumber.Int64(), receipt.BlockHash.Hex(), gasUsed, gasPrice, gasFee); err != nil {
				return err
			}
		}
		if row.RefType != model.TxRefTypeCashback {
			return nil
		}
		// 结算交易带动返现状态一起对账
		if confirmed {
			return s.cashbacks.MarkCompleted(ctx, row.RefID, txHash, receipt.BlockNumber.Int64())
		}
		return s.cashbacks.MarkFailed(ctx, row.RefID, blockchain.ErrTxReverted.Error())
	})
	if err != nil {
		return err
	}

	if row.RefType == model.TxRefTypeCashback {
		if cb, err := s.cashbacks.GetByCashbackID(ctx, row.RefID); err == nil {
			if confirmed && cb.Status == model.CashbackStatusCompleted {
				s.publish(cb, txHash, receipt.BlockNumber.Int64(), model.CashbackStatusCompleted, "")
			}
		}
	}

	logger.Info("交易对账完成",
		zap.String("tx_hash", txHash),
		zap.Bool("confirmed", confirmed))
	return nil
}

// MonitorInFlight 扫描在途交易并对账
func (s *SettlementService) MonitorInFlight(ctx context.Context) (BatchResult, error) {
	list, err := s.transactions.ListPending(ctx, "", s.opts.BatchSize)
	if err != nil {
		return BatchResult{}, err
	}
	var result BatchResult
	for _, row := range list {
		if ctx.Err() != nil {
			break
		}
		result.Processed++
		if err := s.MonitorTransaction(ctx, row.TxHash); err != nil {
			result.Failed++
			continue
		}
		result.Succeeded++
	}
	return result, nil
}

// receiptCost 从回执计算 gas 消耗：fee = gasUsed * effectiveGasPrice
func receiptCost(receipt *types.Receipt) (gasUsed int64, gasPrice, gasFee decimal.Decimal) {
	gasUsed = int64(receipt.GasUsed)
	if receipt.EffectiveGasPrice != nil {
		gasPrice = decimal.NewFromBigInt(receipt.EffectiveGasPrice, 0)
		fee := new(big.Int).Mul(receipt.EffectiveGasPrice, new(big.Int).SetUint64(receipt.GasUsed))
		gasFee = decimal.NewFromBigInt(fee, -nativeDecimals)
	}
	return gasUsed, gasPrice, gasFee
}
