package repository

import (
	"context"
	"time"

	"github.com/meridian-commerce/meridian-chain/internal/model"
)

// EventRepository 链上事件仓储
type EventRepository struct {
	*Repository
}

// NewEventRepository 创建事件仓储
func NewEventRepository(base *Repository) *EventRepository {
	return &EventRepository{Repository: base}
}

// Create 写入事件记录
func (r *EventRepository) Create(ctx context.Context, e *model.BlockchainEvent) error {
	now := time.Now().UnixMilli()
	e.CreatedAt = now
	e.UpdatedAt = now
	return r.DB(ctx).Create(e).Error
}

// ExistsByTxHashAndLogIndex 幂等检查
func (r *EventRepository) ExistsByTxHashAndLogIndex(ctx context.Context, txHash string, logIndex uint) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&model.BlockchainEvent{}).
		Where("tx_hash = ? AND log_index = ?", txHash, logIndex).
		Count(&count).Error
	return count > 0, err
}

// GetByEventID 按业务 ID 查询
func (r *EventRepository) GetByEventID(ctx context.Context, eventID string) (*model.BlockchainEvent, error) {
	var e model.BlockchainEvent
	if err := r.DB(ctx).Where("event_id = ?", eventID).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// ListUnprocessed 查询未处理事件，按区块号升序保证处理顺序
func (r *EventRepository) ListUnprocessed(ctx context.Context, limit int) ([]*model.BlockchainEvent, error) {
	var list []*model.BlockchainEvent
	err := r.DB(ctx).
		Where("processed = ?", false).
		Order("block_number ASC, log_index ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// MarkProcessed 标记已处理并清空错误
func (r *EventRepository) MarkProcessed(ctx context.Context, eventID string) error {
	return r.DB(ctx).Model(&model.BlockchainEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"processed":        true,
			"processing_error": "",
			"updated_at":       time.Now().UnixMilli(),
		}).Error
}

// SetProcessingError 记录处理失败原因，保留待重试
func (r *EventRepository) SetProcessingError(ctx context.Context, eventID, reason string) error {
	if len(reason) > 500 {
		reason = reason[:500]
	}
	return r.DB(ctx).Model(&model.BlockchainEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"processing_error": reason,
			"updated_at":       time.Now().UnixMilli(),
		}).Error
}

// CountUnprocessed 统计未处理事件数
func (r *EventRepository) CountUnprocessed(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&model.BlockchainEvent{}).Where("processed = ?", false).Count(&count).Error
	return count, err
}
