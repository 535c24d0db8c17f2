package repository

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/meridian-commerce/meridian-chain/internal/model"
)

// UserWalletRepository 用户钱包仓储
type UserWalletRepository struct {
	*Repository
}

// NewUserWalletRepository 创建用户钱包仓储
func NewUserWalletRepository(base *Repository) *UserWalletRepository {
	return &UserWalletRepository{Repository: base}
}

// GetByUserID 按用户 ID 查询收款钱包
func (r *UserWalletRepository) GetByUserID(ctx context.Context, userID string) (*model.UserWallet, error) {
	var w model.UserWallet
	if err := r.DB(ctx).Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// Upsert 绑定或更新用户钱包
func (r *UserWalletRepository) Upsert(ctx context.Context, w *model.UserWallet) error {
	now := time.Now().UnixMilli()
	w.CreatedAt = now
	w.UpdatedAt = now
	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"wallet_address", "network", "updated_at"}),
	}).Create(w).Error
}
