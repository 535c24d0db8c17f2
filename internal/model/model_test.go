package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCashbackStatusString(t *testing.T) {
	assert.Equal(t, "PENDING", CashbackStatusPending.String())
	assert.Equal(t, "PROCESSING", CashbackStatusProcessing.String())
	assert.Equal(t, "COMPLETED", CashbackStatusCompleted.String())
	assert.Equal(t, "FAILED", CashbackStatusFailed.String())
	assert.Equal(t, "CANCELLED", CashbackStatusCancelled.String())
	assert.Equal(t, "UNKNOWN", CashbackStatus(99).String())
}

func TestCashbackStatusIsTerminal(t *testing.T) {
	assert.False(t, CashbackStatusPending.IsTerminal())
	assert.False(t, CashbackStatusProcessing.IsTerminal())
	assert.True(t, CashbackStatusCompleted.IsTerminal())
	// FAILED 可重试，不是终态
	assert.False(t, CashbackStatusFailed.IsTerminal())
	assert.True(t, CashbackStatusCancelled.IsTerminal())
}

func TestTransactionStatus(t *testing.T) {
	assert.Equal(t, "PENDING", TransactionStatusPending.String())
	assert.Equal(t, "CONFIRMED", TransactionStatusConfirmed.String())
	assert.Equal(t, "FAILED", TransactionStatusFailed.String())

	assert.False(t, TransactionStatusPending.IsTerminal())
	assert.True(t, TransactionStatusConfirmed.IsTerminal())
	assert.True(t, TransactionStatusFailed.IsTerminal())
}

func TestContractTypeValid(t *testing.T) {
	assert.True(t, ContractTypeToken.Valid())
	assert.True(t, ContractTypeManager.Valid())
	assert.True(t, ContractTypePool.Valid())
	assert.False(t, ContractType("nft").Valid())
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "chain_cashbacks", Cashback{}.TableName())
	assert.Equal(t, "chain_networks", BlockchainNetwork{}.TableName())
	assert.Equal(t, "chain_smart_contracts", SmartContract{}.TableName())
	assert.Equal(t, "chain_transactions", BlockchainTransaction{}.TableName())
	assert.Equal(t, "chain_events", BlockchainEvent{}.TableName())
	assert.Equal(t, "chain_user_wallets", UserWallet{}.TableName())
}
