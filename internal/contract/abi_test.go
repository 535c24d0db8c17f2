package contract

import (
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-commerce/meridian-chain/internal/blockchain"
	"github.com/meridian-commerce/meridian-chain/internal/model"
)

func TestPackTransferSelector(t *testing.T) {
	to := common.HexToAddress("0x1111111111111111111111111111111111111111")
	data, err := PackTransfer(to, big.NewInt(1000))
	require.NoError(t, err)
	// canonical ERC20 transfer selector
	assert.Equal(t, "a9059cbb", hex.EncodeToString(data[:4]))
	assert.Len(t, data, 4+32+32)
}

func TestCashbackIDHash(t *testing.T) {
	short := CashbackIDHash("cb-123")
	assert.NotEqual(t, [32]byte{}, short)
	// deterministic
	assert.Equal(t, short, CashbackIDHash("cb-123"))

	long := CashbackIDHash("cashback-id-that-is-definitely-longer-than-32-bytes")
	assert.NotEqual(t, [32]byte{}, long)
	assert.NotEqual(t, short, long)
}

func TestParseCashbackAllocated(t *testing.T) {
	recipient := common.HexToAddress("0x2222222222222222222222222222222222222222")
	amount := big.NewInt(5_000_000)
	id := CashbackIDHash("cb-7")

	data, err := managerABI.Events["CashbackAllocated"].Inputs.NonIndexed().Pack(amount)
	require.NoError(t, err)

	log := types.Log{
		Topics: []common.Hash{
			CashbackAllocatedTopic(),
			common.BytesToHash(id[:]),
			common.BytesToHash(recipient.Bytes()),
		},
		Data: data,
	}

	ev, err := ParseCashbackAllocated(log)
	require.NoError(t, err)
	assert.Equal(t, recipient, ev.Recipient)
	assert.Equal(t, 0, ev.Amount.Cmp(amount))
	assert.Equal(t, id, ev.CashbackID)
}

func TestParseCashbackAllocatedRejectsShortTopics(t *testing.T) {
	_, err := ParseCashbackAllocated(types.Log{Topics: []common.Hash{CashbackAllocatedTopic()}})
	assert.Error(t, err)
}

func TestEventNameByTopic(t *testing.T) {
	assert.Equal(t, "CashbackAllocated", EventNameByTopic(CashbackAllocatedTopic()))
	assert.Equal(t, "CashbackClaimed", EventNameByTopic(CashbackClaimedTopic()))
	assert.Equal(t, "TokensDeposited", EventNameByTopic(TokensDepositedTopic()))
	assert.Equal(t, "TokensWithdrawn", EventNameByTopic(TokensWithdrawnTopic()))
	assert.Empty(t, EventNameByTopic(common.HexToHash("0xdead")))
}

func TestMethodString(t *testing.T) {
	assert.Equal(t, "allocateCashback", MethodAllocateCashback.String())
	assert.Equal(t, "claimCashback", MethodClaimCashback.String())
	assert.Equal(t, "balanceOf", MethodBalanceOf.String())
	assert.Equal(t, "unknown", Method(99).String())
}

func TestInteractionErrorUnwraps(t *testing.T) {
	err := &InteractionError{
		Address: "0xabc",
		Method:  MethodAllocateCashback,
		Err:     blockchain.ErrInvalidAddress,
	}
	assert.True(t, errors.Is(err, blockchain.ErrInvalidAddress))
	assert.Contains(t, err.Error(), "allocateCashback")
}

func TestDeploymentErrorUnwraps(t *testing.T) {
	err := &DeploymentError{
		Type:    model.ContractTypeManager,
		Network: "polygon",
		Err:     blockchain.ErrTxReverted,
	}
	assert.True(t, errors.Is(err, blockchain.ErrTxReverted))
	assert.Contains(t, err.Error(), "polygon")
}
