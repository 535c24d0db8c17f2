package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridian-commerce/meridian-chain/internal/blockchain"
	"github.com/meridian-commerce/meridian-chain/internal/contract"
	"github.com/meridian-commerce/meridian-chain/internal/metrics"
	"github.com/meridian-commerce/meridian-chain/internal/model"
	"github.com/meridian-commerce/meridian-chain/internal/repository"
	"github.com/meridian-commerce/meridian-chain/pkg/logger"
)

// WebhookValidationError 外部节点服务回调的载荷校验错误
type WebhookValidationError struct {
	Field  string
	Reason string
}

func (e *WebhookValidationError) Error() string {
	return fmt.Sprintf("invalid webhook payload: %s %s", e.Field, e.Reason)
}

// WebhookEvent 节点服务回调载荷
type WebhookEvent struct {
	Network         string                 `json:"network"`
	EventName       string                 `json:"event_name"`
	ContractAddress string                 `json:"contract_address"`
	TransactionHash string                 `json:"transaction_hash"`
	LogIndex        uint                   `json:"log_index"`
	BlockNumber     int64                  `json:"block_number"`
	BlockHash       string                 `json:"block_hash"`
	Data            map[string]interface{} `json:"data"`
}

// EventStore 事件仓储能力
type EventStore interface {
	Create(ctx context.Context, e *model.BlockchainEvent) error
	ExistsByTxHashAndLogIndex(ctx context.Context, txHash string, logIndex uint) (bool, error)
	ListUnprocessed(ctx context.Context, limit int) ([]*model.BlockchainEvent, error)
	MarkProcessed(ctx context.Context, eventID string) error
	SetProcessingError(ctx context.Context, eventID, reason string) error
	CountUnprocessed(ctx context.Context) (int64, error)
}

// ContractResolver 合约元数据解析
type ContractResolver interface {
	GetByAddress(ctx context.Context, network, address string) (*model.SmartContract, error)
}

// TxLookup 本地交易记录查询
type TxLookup interface {
	GetByTxHash(ctx context.Context, txHash string) (*model.BlockchainTransaction, error)
}

// TxReconciler 交易对账入口，由结算服务实现
type TxReconciler interface {
	MonitorTransaction(ctx context.Context, txHash string) error
}

// LogSubscriber 日志订阅能力
type LogSubscriber interface {
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
}

// SubscriberRegistry 按网络解析订阅客户端
type SubscriberRegistry interface {
	Get(network string) (LogSubscriber, error)
	ManagerContract(network string) string
}

// IngestOptions 事件接入参数
type IngestOptions struct {
	SweepLimit int
}

// eventHandler 事件处理函数
type eventHandler func(ctx context.Context, e *model.BlockchainEvent) error

// IngestService 链上事件接入服务
//
// 订阅与 webhook 两条路径写入同一事件表，以 (tx_hash, log_index) 幂等。
// 写入与处理分离：先落库 processed=false，再由扫描分发处理，
// 处理失败记录原因并保留待重试。
type IngestService struct {
	events       EventStore
	contracts    ContractResolver
	transactions TxLookup
	reconciler   TxReconciler
	registry     SubscriberRegistry
	opts         IngestOptions

	handlers map[string]eventHandler
}

// NewIngestService 创建事件接入服务
func NewIngestService(
	events EventStore,
	contracts ContractResolver,
	transactions TxLookup,
	reconciler TxReconciler,
	registry SubscriberRegistry,
	opts IngestOptions,
) *IngestService {
	if opts.SweepLimit <= 0 {
		opts.SweepLimit = 100
	}
	s := &IngestService{
		events:       events,
		contracts:    contracts,
		transactions: transactions,
		reconciler:   reconciler,
		registry:     registry,
		opts:         opts,
	}
	s.handlers = map[string]eventHandler{
		model.EventCashbackAllocated: s.handleCashbackSettlement,
		model.EventCashbackClaimed:   s.handleCashbackSettlement,
		model.EventTokensDeposited:   s.handleTreasuryMovement,
		model.EventTokensWithdrawn:   s.handleTreasuryMovement,
	}
	return s
}

// Listener 活动订阅句柄
type Listener struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Close 停止订阅并等待退出
func (l *Listener) Close() {
	l.cancel()
	<-l.done
}

// Listen 订阅网络上管理合约的事件日志
//
// 订阅断开后自动退避重连，直到句柄关闭或上下文取消。
func (s *IngestService) Listen(ctx context.Context, network string) (*Listener, error) {
	manager := s.registry.ManagerContract(network)
	if manager == "" {
		return nil, fmt.Errorf("%w: no manager contract on %s", blockchain.ErrUnsupportedNetwork, network)
	}
	client, err := s.registry.Get(network)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	l := &Listener{cancel: cancel, done: make(chan struct{})}

	query := ethereum.FilterQuery{
		Addresses: []common.Address{common.HexToAddress(manager)},
		Topics: [][]common.Hash{{
			contract.CashbackAllocatedTopic(),
			contract.CashbackClaimedTopic(),
			contract.TokensDepositedTopic(),
			contract.TokensWithdrawnTopic(),
		}},
	}

	go func() {
		defer close(l.done)
		backoff := time.Second
		for {
			if ctx.Err() != nil {
				return
			}
			ch := make(chan types.Log, 64)
			sub, err := client.SubscribeFilterLogs(ctx, query, ch)
			if err != nil {
				logger.Warn("事件订阅失败，退避重连",
					zap.String("network", network),
					zap.Duration("backoff", backoff),
					zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(backoff):
				}
				if backoff < 30*time.Second {
					backoff *= 2
				}
				continue
			}
			backoff = time.Second
			logger.Info("事件订阅已建立",
				zap.String("network", network),
				zap.String("contract", manager))

			s.consume(ctx, network, manager, ch, sub)
		}
	}()
	return l, nil
}

func (s *IngestService) consume(ctx context.Context, network, manager string, ch chan types.Log, sub ethereum.Subscription) {
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-sub.Err():
			if err != nil {
				logger.Warn("事件订阅中断",
					zap.String("network", network),
					zap.Error(err))
			}
			return
		case log := <-ch:
			if err := s.ingestLog(ctx, network, manager, log); err != nil {
				logger.Error("订阅事件写入失败",
					zap.String("tx_hash", log.TxHash.Hex()),
					zap.Uint("log_index", log.Index),
					zap.Error(err))
			}
		}
	}
}

// ingestLog 订阅路径写入，(tx_hash, log_index) 已存在时静默跳过
func (s *IngestService) ingestLog(ctx context.Context, network, manager string, log types.Log) error {
	if len(log.Topics) == 0 {
		return nil
	}
	name := contract.EventNameByTopic(log.Topics[0])
	if name == "" {
		return nil
	}

	exists, err := s.events.ExistsByTxHashAndLogIndex(ctx, log.TxHash.Hex(), log.Index)
	if err != nil {
		return err
	}
	if exists {
		metrics.EventsIngested.WithLabelValues("subscription", "duplicate").Inc()
		return nil
	}

	data := map[string]interface{}{"address": log.Address.Hex()}
	switch name {
	case model.EventCashbackAllocated, model.EventCashbackClaimed:
		if ev, err := contract.ParseCashbackAllocated(log); err == nil {
			data["recipient"] = ev.Recipient.Hex()
			data["amount"] = ev.Amount.String()
			data["cashback_key"] = common.BytesToHash(ev.CashbackID[:]).Hex()
		}
	}
	raw, _ := json.Marshal(data)

	event := &model.BlockchainEvent{
		EventID:     uuid.NewString(),
		Network:     network,
		EventName:   name,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    log.Index,
		BlockNumber: int64(log.BlockNumber),
		BlockHash:   log.BlockHash.Hex(),
		EventData:   string(raw),
	}
	if sc, err := s.contracts.GetByAddress(ctx, network, log.Address.Hex()); err == nil {
		event.ContractID = sc.ContractID
	}

	if err := s.events.Create(ctx, event); err != nil {
		if repository.IsDuplicateKeyError(err) {
			metrics.EventsIngested.WithLabelValues("subscription", "duplicate").Inc()
			return nil
		}
		return err
	}
	metrics.EventsIngested.WithLabelValues("subscription", "stored").Inc()
	return nil
}

// IngestWebhook webhook 路径写入
//
// 载荷校验失败返回 WebhookValidationError；重复事件静默成功，
// 保证节点服务重推不产生副作用。归属合约从本地交易记录解析，
// 非本系统提交的交易记日志后跳过。
func (s *IngestService) IngestWebhook(ctx context.Context, payload *WebhookEvent) error {
	if err := validateWebhook(payload); err != nil {
		metrics.EventsIngested.WithLabelValues("webhook", "invalid").Inc()
		return err
	}

	exists, err := s.events.ExistsByTxHashAndLogIndex(ctx, payload.TransactionHash, payload.LogIndex)
	if err != nil {
		return err
	}
	if exists {
		metrics.EventsIngested.WithLabelValues("webhook", "duplicate").Inc()
		return nil
	}

	row, err := s.transactions.GetByTxHash(ctx, payload.TransactionHash)
	if err != nil {
		if repository.IsNotFound(err) {
			logger.Info("webhook 事件不属于本系统提交的交易，跳过",
				zap.String("tx_hash", payload.TransactionHash),
				zap.String("event_name", payload.EventName),
				zap.String("network", payload.Network))
			metrics.EventsIngested.WithLabelValues("webhook", "foreign").Inc()
			return nil
		}
		return err
	}

	raw, err := json.Marshal(payload.Data)
	if err != nil {
		return &WebhookValidationError{Field: "data", Reason: "not serializable"}
	}

	event := &model.BlockchainEvent{
		EventID:     uuid.NewString(),
		Network:     payload.Network,
		EventName:   payload.EventName,
		TxHash:      payload.TransactionHash,
		LogIndex:    payload.LogIndex,
		BlockNumber: payload.BlockNumber,
		BlockHash:   payload.BlockHash,
		EventData:   string(raw),
		ContractID:  row.ContractID,
	}
	if event.ContractID == "" && payload.ContractAddress != "" {
		if sc, err := s.contracts.GetByAddress(ctx, payload.Network, payload.ContractAddress); err == nil {
			event.ContractID = sc.ContractID
		}
	}

	if err := s.events.Create(ctx, event); err != nil {
		if repository.IsDuplicateKeyError(err) {
			metrics.EventsIngested.WithLabelValues("webhook", "duplicate").Inc()
			return nil
		}
		return err
	}
	metrics.EventsIngested.WithLabelValues("webhook", "stored").Inc()
	return nil
}

func validateWebhook(p *WebhookEvent) error {
	if p == nil {
		return &WebhookValidationError{Field: "payload", Reason: "missing"}
	}
	if p.EventName == "" {
		return &WebhookValidationError{Field: "event_name", Reason: "missing"}
	}
	if p.Network == "" {
		return &WebhookValidationError{Field: "network", Reason: "missing"}
	}
	if p.BlockNumber <= 0 {
		return &WebhookValidationError{Field: "block_number", Reason: "must be positive"}
	}
	if !strings.HasPrefix(p.TransactionHash, "0x") || len(p.TransactionHash) != 66 {
		return &WebhookValidationError{Field: "transaction_hash", Reason: "malformed"}
	}
	if p.ContractAddress != "" && !common.IsHexAddress(p.ContractAddress) {
		return &WebhookValidationError{Field: "contract_address", Reason: "malformed"}
	}
	return nil
}

// SweepPending 扫描未处理事件并按事件名分发
//
// 未知事件名记日志后标记已处理，避免永久堆积；
// 处理失败记录原因，保留 processed=false 待下轮重试。
func (s *IngestService) SweepPending(ctx context.Context) (BatchResult, error) {
	list, err := s.events.ListUnprocessed(ctx, s.opts.SweepLimit)
	if err != nil {
		return BatchResult{}, err
	}

	var result BatchResult
	for _, e := range list {
		if ctx.Err() != nil {
			break
		}
		result.Processed++
		handler, known := s.handlers[e.EventName]
		if !known {
			logger.Warn("未知事件类型，跳过",
				zap.String("event_id", e.EventID),
				zap.String("event_name", e.EventName))
			if err := s.events.MarkProcessed(ctx, e.EventID); err == nil {
				result.Skipped++
			} else {
				result.Failed++
			}
			continue
		}

		if err := handler(ctx, e); err != nil {
			result.Failed++
			if serr := s.events.SetProcessingError(ctx, e.EventID, err.Error()); serr != nil {
				logger.Error("记录事件处理错误失败", zap.String("event_id", e.EventID), zap.Error(serr))
			}
			logger.Warn("事件处理失败，留待重试",
				zap.String("event_id", e.EventID),
				zap.String("event_name", e.EventName),
				zap.Error(err))
			continue
		}
		if err := s.events.MarkProcessed(ctx, e.EventID); err != nil {
			result.Failed++
			continue
		}
		result.Succeeded++
	}

	if count, err := s.events.CountUnprocessed(ctx); err == nil {
		metrics.EventsUnprocessed.Set(float64(count))
	}
	return result, nil
}

// handleCashbackSettlement 返现类事件处理
//
// 通过事件携带的交易哈希走统一的交易对账路径，
// 覆盖广播后崩溃导致的本地状态缺口。
func (s *IngestService) handleCashbackSettlement(ctx context.Context, e *model.BlockchainEvent) error {
	err := s.reconciler.MonitorTransaction(ctx, e.TxHash)
	if err == nil {
		return nil
	}
	if errors.Is(err, blockchain.ErrTxNotFound) {
		// 本地无对应交易记录：链上事件先于本地状态，仅记录
		logger.Info("事件无本地交易记录，仅登记",
			zap.String("event_id", e.EventID),
			zap.String("tx_hash", e.TxHash))
		return nil
	}
	return err
}

// handleTreasuryMovement 资金池充提事件，登记用于审计
func (s *IngestService) handleTreasuryMovement(ctx context.Context, e *model.BlockchainEvent) error {
	logger.Info("资金池变动",
		zap.String("network", e.Network),
		zap.String("event_name", e.EventName),
		zap.String("tx_hash", e.TxHash),
		zap.String("data", e.EventData))
	return nil
}
