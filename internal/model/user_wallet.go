package model

// UserWallet 用户收款钱包
//
// 返现记录未携带钱包地址时按 user_id 回查。
type UserWallet struct {
	ID            int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        string `gorm:"column:user_id;type:varchar(64);uniqueIndex;not null" json:"user_id"`
	WalletAddress string `gorm:"column:wallet_address;type:varchar(42);not null" json:"wallet_address"`
	Network       string `gorm:"column:network;type:varchar(32)" json:"network"`
	CreatedAt     int64  `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
	UpdatedAt     int64  `gorm:"column:updated_at;type:bigint;not null" json:"updated_at"`
}

// TableName 返回表名
func (UserWallet) TableName() string {
	return "chain_user_wallets"
}
