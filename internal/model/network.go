package model

// BlockchainNetwork 链网络配置
//
// 以名称 (如 ethereum/polygon) 为业务键，结算与事件接入均按名称解析。
type BlockchainNetwork struct {
	ID           int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string `gorm:"column:name;type:varchar(32);uniqueIndex;not null" json:"name"`
	ChainID      int64  `gorm:"column:chain_id;type:bigint;not null" json:"chain_id"`
	RPCURL       string `gorm:"column:rpc_url;type:varchar(500);not null" json:"rpc_url"`
	NativeSymbol string `gorm:"column:native_symbol;type:varchar(16);not null" json:"native_symbol"`
	Enabled      bool   `gorm:"column:enabled;not null;default:true" json:"enabled"`
	CreatedAt    int64  `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
	UpdatedAt    int64  `gorm:"column:updated_at;type:bigint;not null" json:"updated_at"`
}

// TableName 返回表名
func (BlockchainNetwork) TableName() string {
	return "chain_networks"
}
