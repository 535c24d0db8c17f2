package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/meridian-commerce/meridian-chain/internal/model"
)

// CashbackRepository 返现仓储
type CashbackRepository struct {
	*Repository
}

// NewCashbackRepository 创建返现仓储
func NewCashbackRepository(base *Repository) *CashbackRepository {
	return &CashbackRepository{Repository: base}
}

// Create 创建返现记录
func (r *CashbackRepository) Create(ctx context.Context, cb *model.Cashback) error {
	now := time.Now().UnixMilli()
	cb.CreatedAt = now
	cb.UpdatedAt = now
	return r.DB(ctx).Create(cb).Error
}

// GetByCashbackID 按业务 ID 查询
func (r *CashbackRepository) GetByCashbackID(ctx context.Context, cashbackID string) (*model.Cashback, error) {
	var cb model.Cashback
	if err := r.DB(ctx).Where("cashback_id = ?", cashbackID).First(&cb).Error; err != nil {
		return nil, err
	}
	return &cb, nil
}

// GetByTxHash 按交易哈希查询
func (r *CashbackRepository) GetByTxHash(ctx context.Context, txHash string) (*model.Cashback, error) {
	var cb model.Cashback
	if err := r.DB(ctx).Where("tx_hash = ?", txHash).First(&cb).Error; err != nil {
		return nil, err
	}
	return &cb, nil
}

// ListPending 查询到达可结算时间的待结算记录，按创建时间升序
func (r *CashbackRepository) ListPending(ctx context.Context, limit int) ([]*model.Cashback, error) {
	now := time.Now().UnixMilli()
	var list []*model.Cashback
	err := r.DB(ctx).
		Where("status = ? AND eligible_at <= ? AND expires_at > ?",
			model.CashbackStatusPending, now, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// ListFailedRetryable 查询重试次数未达上限的失败记录
func (r *CashbackRepository) ListFailedRetryable(ctx context.Context, maxRetries, limit int) ([]*model.Cashback, error) {
	var list []*model.Cashback
	err := r.DB(ctx).
		Where("status = ? AND retry_count < ?", model.CashbackStatusFailed, maxRetries).
		Order("last_retry_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// ListExpired 查询已过期仍未结算的记录
func (r *CashbackRepository) ListExpired(ctx context.Context, limit int) ([]*model.Cashback, error) {
	now := time.Now().UnixMilli()
	var list []*model.Cashback
	err := r.DB(ctx).
		Where("status = ? AND expires_at <= ?", model.CashbackStatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// ListByUserID 查询用户的返现记录
func (r *CashbackRepository) ListByUserID(ctx context.Context, userID string, p Pagination) ([]*model.Cashback, int64, error) {
	var total int64
	q := r.DB(ctx).Model(&model.Cashback{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []*model.Cashback
	err := q.Order("created_at DESC").Offset(p.Offset()).Limit(p.Limit()).Find(&list).Error
	return list, total, err
}

// MarkProcessing 标记结算中，仅允许从 PENDING 或 FAILED 迁移
// 返回是否实际更新，用于并发下的抢占判断
func (r *CashbackRepository) MarkProcessing(ctx context.Context, cashbackID string) (bool, error) {
	result := r.DB(ctx).Model(&model.Cashback{}).
		Where("cashback_id = ? AND status IN ?", cashbackID,
			[]model.CashbackStatus{model.CashbackStatusPending, model.CashbackStatusFailed}).
		Updates(map[string]interface{}{
			"status":       model.CashbackStatusProcessing,
			"processed_at": time.Now().UnixMilli(),
			"updated_at":   time.Now().UnixMilli(),
		})
	return result.RowsAffected > 0, result.Error
}

// UpdateTxHash 广播后记录交易哈希
func (r *CashbackRepository) UpdateTxHash(ctx context.Context, cashbackID, txHash string) error {
	return r.DB(ctx).Model(&model.Cashback{}).
		Where("cashback_id = ?", cashbackID).
		Updates(map[string]interface{}{
			"tx_hash":    txHash,
			"updated_at": time.Now().UnixMilli(),
		}).Error
}

// MarkCompleted 标记完成，PROCESSING 正常收尾，
// FAILED 允许对账路径确认上次广播已成功后闭环
func (r *CashbackRepository) MarkCompleted(ctx context.Context, cashbackID, txHash string, blockNumber int64) error {
	now := time.Now().UnixMilli()
	return r.DB(ctx).Model(&model.Cashback{}).
		Where("cashback_id = ? AND status IN ?", cashbackID,
			[]model.CashbackStatus{model.CashbackStatusProcessing, model.CashbackStatusFailed}).
		Updates(map[string]interface{}{
			"status":       model.CashbackStatusCompleted,
			"tx_hash":      txHash,
			"block_number": blockNumber,
			"completed_at": now,
			"updated_at":   now,
		}).Error
}

// MarkFailed 标记失败，重试计数在 SQL 内原子递增
func (r *CashbackRepository) MarkFailed(ctx context.Context, cashbackID, reason string) error {
	now := time.Now().UnixMilli()
	if len(reason) > 500 {
		reason = reason[:500]
	}
	return r.DB(ctx).Model(&model.Cashback{}).
		Where("cashback_id = ? AND status = ?", cashbackID, model.CashbackStatusProcessing).
		Updates(map[string]interface{}{
			"status":         model.CashbackStatusFailed,
			"retry_count":    gorm.Expr("retry_count + 1"),
			"failure_reason": reason,
			"failed_at":      now,
			"last_retry_at":  now,
			"updated_at":     now,
		}).Error
}

// MarkCancelled 过期取消，仅允许从 PENDING 迁移
func (r *CashbackRepository) MarkCancelled(ctx context.Context, cashbackID string) (bool, error) {
	result := r.DB(ctx).Model(&model.Cashback{}).
		Where("cashback_id = ? AND status = ?", cashbackID, model.CashbackStatusPending).
		Updates(map[string]interface{}{
			"status":     model.CashbackStatusCancelled,
			"updated_at": time.Now().UnixMilli(),
		})
	return result.RowsAffected > 0, result.Error
}

// CountByStatus 按状态统计
func (r *CashbackRepository) CountByStatus(ctx context.Context, status model.CashbackStatus) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&model.Cashback{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
