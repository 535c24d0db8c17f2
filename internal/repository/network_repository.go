package repository

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/meridian-commerce/meridian-chain/internal/model"
)

// NetworkRepository 链网络仓储
type NetworkRepository struct {
	*Repository
}

// NewNetworkRepository 创建链网络仓储
func NewNetworkRepository(base *Repository) *NetworkRepository {
	return &NetworkRepository{Repository: base}
}

// Upsert 按名称写入或更新网络配置，启动时从配置同步
func (r *NetworkRepository) Upsert(ctx context.Context, n *model.BlockchainNetwork) error {
	now := time.Now().UnixMilli()
	n.CreatedAt = now
	n.UpdatedAt = now
	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"chain_id", "rpc_url", "native_symbol", "enabled", "updated_at",
		}),
	}).Create(n).Error
}

// GetByName 按名称查询
func (r *NetworkRepository) GetByName(ctx context.Context, name string) (*model.BlockchainNetwork, error) {
	var n model.BlockchainNetwork
	if err := r.DB(ctx).Where("name = ?", name).First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// ListEnabled 查询启用的网络
func (r *NetworkRepository) ListEnabled(ctx context.Context) ([]*model.BlockchainNetwork, error) {
	var list []*model.BlockchainNetwork
	err := r.DB(ctx).Where("enabled = ?", true).Order("name ASC").Find(&list).Error
	return list, err
}
