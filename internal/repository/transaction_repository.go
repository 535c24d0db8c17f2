package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-commerce/meridian-chain/internal/model"
)

// TransactionRepository 链上交易仓储
type TransactionRepository struct {
	*Repository
}

// NewTransactionRepository 创建交易仓储
func NewTransactionRepository(base *Repository) *TransactionRepository {
	return &TransactionRepository{Repository: base}
}

// Create 广播后写入交易记录
func (r *TransactionRepository) Create(ctx context.Context, tx *model.BlockchainTransaction) error {
	now := time.Now().UnixMilli()
	tx.CreatedAt = now
	tx.UpdatedAt = now
	return r.DB(ctx).Create(tx).Error
}

// GetByTxHash 按交易哈希查询
func (r *TransactionRepository) GetByTxHash(ctx context.Context, txHash string) (*model.BlockchainTransaction, error) {
	var tx model.BlockchainTransaction
	if err := r.DB(ctx).Where("tx_hash = ?", txHash).First(&tx).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

// ListPending 查询待确认交易，按广播时间升序
func (r *TransactionRepository) ListPending(ctx context.Context, network string, limit int) ([]*model.BlockchainTransaction, error) {
	q := r.DB(ctx).Where("status = ?", model.TransactionStatusPending)
	if network != "" {
		q = q.Where("network = ?", network)
	}
	var list []*model.BlockchainTransaction
	err := q.Order("sent_at ASC").Limit(limit).Find(&list).Error
	return list, err
}

// MarkConfirmed 确认交易并记录 gas 消耗
func (r *TransactionRepository) MarkConfirmed(ctx context.Context, txHash string, blockNumber int64, blockHash string, gasUsed int64, gasPrice, gasFee decimal.Decimal) error {
	now := time.Now().UnixMilli()
	return r.DB(ctx).Model(&model.BlockchainTransaction{}).
		Where("tx_hash = ? AND status = ?", txHash, model.TransactionStatusPending).
		Updates(map[string]interface{}{
			"status":       model.TransactionStatusConfirmed,
			"block_number": blockNumber,
			"block_hash":   blockHash,
			"gas_used":     gasUsed,
			"gas_price":    gasPrice,
			"gas_fee":      gasFee,
			"confirmed_at": now,
			"updated_at":   now,
		}).Error
}

// MarkFailed 交易回滚
func (r *TransactionRepository) MarkFailed(ctx context.Context, txHash string, blockNumber int64, blockHash string, gasUsed int64, gasPrice, gasFee decimal.Decimal) error {
	now := time.Now().UnixMilli()
	return r.DB(ctx).Model(&model.BlockchainTransaction{}).
		Where("tx_hash = ? AND status = ?", txHash, model.TransactionStatusPending).
		Updates(map[string]interface{}{
			"status":       model.TransactionStatusFailed,
			"block_number": blockNumber,
			"block_hash":   blockHash,
			"gas_used":     gasUsed,
			"gas_price":    gasPrice,
			"gas_fee":      gasFee,
			"confirmed_at": now,
			"updated_at":   now,
		}).Error
}
