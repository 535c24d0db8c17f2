package repository

import (
	"context"
	"time"

	"github.com/meridian-commerce/meridian-chain/internal/model"
)

// ContractRepository 合约元数据仓储
type ContractRepository struct {
	*Repository
}

// NewContractRepository 创建合约仓储
func NewContractRepository(base *Repository) *ContractRepository {
	return &ContractRepository{Repository: base}
}

// Create 写入合约元数据
func (r *ContractRepository) Create(ctx context.Context, c *model.SmartContract) error {
	now := time.Now().UnixMilli()
	c.CreatedAt = now
	c.UpdatedAt = now
	return r.DB(ctx).Create(c).Error
}

// GetByContractID 按业务 ID 查询
func (r *ContractRepository) GetByContractID(ctx context.Context, contractID string) (*model.SmartContract, error) {
	var c model.SmartContract
	if err := r.DB(ctx).Where("contract_id = ?", contractID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByAddress 按网络与地址查询
func (r *ContractRepository) GetByAddress(ctx context.Context, network, address string) (*model.SmartContract, error) {
	var c model.SmartContract
	if err := r.DB(ctx).Where("network = ? AND address = ?", network, address).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByType 按网络与类型查询最新部署的合约
func (r *ContractRepository) GetByType(ctx context.Context, network string, typ model.ContractType) (*model.SmartContract, error) {
	var c model.SmartContract
	if err := r.DB(ctx).
		Where("network = ? AND type = ?", network, typ).
		Order("created_at DESC").
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByNetwork 查询网络下的全部合约
func (r *ContractRepository) ListByNetwork(ctx context.Context, network string) ([]*model.SmartContract, error) {
	var list []*model.SmartContract
	err := r.DB(ctx).Where("network = ?", network).Order("created_at DESC").Find(&list).Error
	return list, err
}

// MarkVerified 标记合约已验证
func (r *ContractRepository) MarkVerified(ctx context.Context, contractID string) error {
	return r.DB(ctx).Model(&model.SmartContract{}).
		Where("contract_id = ?", contractID).
		Updates(map[string]interface{}{
			"verified":   true,
			"updated_at": time.Now().UnixMilli(),
		}).Error
}
