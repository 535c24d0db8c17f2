package service

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/meridian-commerce/meridian-chain/internal/blockchain"
	"github.com/meridian-commerce/meridian-chain/internal/model"
)

type mockEventStore struct{ mock.Mock }

func (m *mockEventStore) Create(ctx context.Context, e *model.BlockchainEvent) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockEventStore) ExistsByTxHashAndLogIndex(ctx context.Context, txHash string, logIndex uint) (bool, error) {
	args := m.Called(ctx, txHash, logIndex)
	return args.Bool(0), args.Error(1)
}

func (m *mockEventStore) ListUnprocessed(ctx context.Context, limit int) ([]*model.BlockchainEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.BlockchainEvent), args.Error(1)
}

func (m *mockEventStore) MarkProcessed(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

func (m *mockEventStore) SetProcessingError(ctx context.Context, eventID, reason string) error {
	return m.Called(ctx, eventID, reason).Error(0)
}

func (m *mockEventStore) CountUnprocessed(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type fakeResolver struct{}

func (fakeResolver) GetByAddress(ctx context.Context, network, address string) (*model.SmartContract, error) {
	return nil, gorm.ErrRecordNotFound
}

type mockReconciler struct{ mock.Mock }

func (m *mockReconciler) MonitorTransaction(ctx context.Context, txHash string) error {
	return m.Called(ctx, txHash).Error(0)
}

type fakeSubscriberRegistry struct{ manager string }

func (r fakeSubscriberRegistry) Get(network string) (LogSubscriber, error) {
	return nil, blockchain.ErrUnsupportedNetwork
}

func (r fakeSubscriberRegistry) ManagerContract(network string) string { return r.manager }

type ingestFixture struct {
	events     *mockEventStore
	txs        *mockTxStore
	reconciler *mockReconciler
	svc        *IngestService
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	f := &ingestFixture{
		events:     &mockEventStore{},
		txs:        &mockTxStore{},
		reconciler: &mockReconciler{},
	}
	f.svc = NewIngestService(f.events, fakeResolver{}, f.txs, f.reconciler,
		fakeSubscriberRegistry{}, IngestOptions{SweepLimit: 50})
	return f
}

func validWebhook() *WebhookEvent {
	return &WebhookEvent{
		Network:         "polygon",
		EventName:       model.EventCashbackAllocated,
		TransactionHash: "0x" + common.Bytes2Hex(make([]byte, 32)),
		LogIndex:        3,
		BlockNumber:     1234,
		BlockHash:       "0xabc",
		Data:            map[string]interface{}{"amount": "5000000"},
	}
}

func TestIngestWebhookStoresUnprocessed(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	payload := validWebhook()

	f.events.On("ExistsByTxHashAndLogIndex", ctx, payload.TransactionHash, uint(3)).Return(false, nil).Once()
	// 归属合约取自本地交易记录
	f.txs.On("GetByTxHash", ctx, payload.TransactionHash).Return(&model.BlockchainTransaction{
		TxHash:     payload.TransactionHash,
		Network:    "polygon",
		ContractID: "sc-1",
		Status:     model.TransactionStatusPending,
	}, nil).Once()
	f.events.On("Create", ctx, mock.MatchedBy(func(e *model.BlockchainEvent) bool {
		return e.TxHash == payload.TransactionHash &&
			e.LogIndex == 3 &&
			e.EventName == model.EventCashbackAllocated &&
			e.ContractID == "sc-1" &&
			!e.Processed &&
			e.EventID != ""
	})).Return(nil).Once()

	require.NoError(t, f.svc.IngestWebhook(ctx, payload))
	f.events.AssertExpectations(t)
	f.txs.AssertExpectations(t)
}

func TestIngestWebhookSkipsForeignTransaction(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	payload := validWebhook()

	f.events.On("ExistsByTxHashAndLogIndex", ctx, payload.TransactionHash, uint(3)).Return(false, nil).Once()
	// 本地没有该哈希的交易记录：不是本系统提交的转账，记日志后跳过
	f.txs.On("GetByTxHash", ctx, payload.TransactionHash).Return(nil, gorm.ErrRecordNotFound).Once()

	require.NoError(t, f.svc.IngestWebhook(ctx, payload))
	f.events.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.txs.AssertExpectations(t)
}

func TestIngestWebhookDuplicateIsNoOp(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	payload := validWebhook()

	f.events.On("ExistsByTxHashAndLogIndex", ctx, payload.TransactionHash, uint(3)).Return(true, nil).Once()

	// 重复推送静默成功，不落库
	require.NoError(t, f.svc.IngestWebhook(ctx, payload))
	f.events.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestIngestWebhookValidation(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*WebhookEvent)
		field  string
	}{
		{"缺事件名", func(p *WebhookEvent) { p.EventName = "" }, "event_name"},
		{"缺网络", func(p *WebhookEvent) { p.Network = "" }, "network"},
		{"区块号非法", func(p *WebhookEvent) { p.BlockNumber = 0 }, "block_number"},
		{"交易哈希格式错误", func(p *WebhookEvent) { p.TransactionHash = "deadbeef" }, "transaction_hash"},
		{"合约地址格式错误", func(p *WebhookEvent) { p.ContractAddress = "xyz" }, "contract_address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := validWebhook()
			tt.mutate(payload)

			err := f.svc.IngestWebhook(ctx, payload)
			var verr *WebhookValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
	f.events.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSweepPendingDispatchesHandlers(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	txHash := "0x" + common.Bytes2Hex(make([]byte, 32))

	list := []*model.BlockchainEvent{
		{EventID: "ev-1", EventName: model.EventCashbackAllocated, TxHash: txHash},
		{EventID: "ev-2", EventName: model.EventTokensDeposited, TxHash: txHash},
		{EventID: "ev-3", EventName: "SomethingElse", TxHash: txHash},
	}
	f.events.On("ListUnprocessed", ctx, 50).Return(list, nil).Once()
	f.reconciler.On("MonitorTransaction", ctx, txHash).Return(nil).Once()
	f.events.On("MarkProcessed", ctx, "ev-1").Return(nil).Once()
	f.events.On("MarkProcessed", ctx, "ev-2").Return(nil).Once()
	// 未知事件名标记已处理，避免永久堆积
	f.events.On("MarkProcessed", ctx, "ev-3").Return(nil).Once()
	f.events.On("CountUnprocessed", ctx).Return(int64(0), nil).Once()

	result, err := f.svc.SweepPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Processed: 3, Succeeded: 2, Skipped: 1}, result)
	f.events.AssertExpectations(t)
}

func TestSweepPendingKeepsFailedForRetry(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	txHash := "0x" + common.Bytes2Hex(make([]byte, 32))

	list := []*model.BlockchainEvent{
		{EventID: "ev-1", EventName: model.EventCashbackAllocated, TxHash: txHash},
	}
	f.events.On("ListUnprocessed", ctx, 50).Return(list, nil).Once()
	f.reconciler.On("MonitorTransaction", ctx, txHash).Return(assert.AnError).Once()
	f.events.On("SetProcessingError", ctx, "ev-1", mock.Anything).Return(nil).Once()
	f.events.On("CountUnprocessed", ctx).Return(int64(1), nil).Once()

	result, err := f.svc.SweepPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Processed: 1, Failed: 1}, result)
	// 失败事件保持 processed=false
	f.events.AssertNotCalled(t, "MarkProcessed", mock.Anything, "ev-1")
}

func TestSweepPendingNoLocalTransaction(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	txHash := "0x" + common.Bytes2Hex(make([]byte, 32))

	list := []*model.BlockchainEvent{
		{EventID: "ev-1", EventName: model.EventCashbackClaimed, TxHash: txHash},
	}
	f.events.On("ListUnprocessed", ctx, 50).Return(list, nil).Once()
	// 本地无交易记录的事件仅登记，不算失败
	f.reconciler.On("MonitorTransaction", ctx, txHash).Return(blockchain.ErrTxNotFound).Once()
	f.events.On("MarkProcessed", ctx, "ev-1").Return(nil).Once()
	f.events.On("CountUnprocessed", ctx).Return(int64(0), nil).Once()

	result, err := f.svc.SweepPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Processed: 1, Succeeded: 1}, result)
}

func TestIngestLogDeduplicates(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	log := types.Log{
		Address:     common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
		Topics:      []common.Hash{common.HexToHash("0x1234")},
		TxHash:      common.HexToHash("0xfeed"),
		Index:       1,
		BlockNumber: 99,
	}
	// 未识别的 topic 直接忽略
	require.NoError(t, f.svc.ingestLog(ctx, "polygon", "0x5FbDB2315678afecb367f032d93F642f64180aa3", log))
	f.events.AssertNotCalled(t, "ExistsByTxHashAndLogIndex", mock.Anything, mock.Anything, mock.Anything)
}

func TestListenRequiresManagerContract(t *testing.T) {
	f := newIngestFixture(t)
	_, err := f.svc.Listen(context.Background(), "polygon")
	assert.ErrorIs(t, err, blockchain.ErrUnsupportedNetwork)
}
