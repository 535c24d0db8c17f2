package app

import (
	"github.com/meridian-commerce/meridian-chain/internal/model"
)

// migrate 同步表结构
func (a *App) migrate() error {
	return a.db.AutoMigrate(
		&model.Cashback{},
		&model.BlockchainNetwork{},
		&model.SmartContract{},
		&model.BlockchainTransaction{},
		&model.BlockchainEvent{},
		&model.UserWallet{},
	)
}
