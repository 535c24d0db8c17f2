package contract

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ABI of the on-chain cashback manager. Allocations are keyed by the
// off-chain cashback id so events can be reconciled back to rows.
const managerABIJSON = `[
	{"inputs":[{"name":"recipient","type":"address"},{"name":"cashbackId","type":"bytes32"},{"name":"amount","type":"uint256"}],"name":"allocateCashback","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"cashbackId","type":"bytes32"}],"name":"claimCashback","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"amount","type":"uint256"}],"name":"deposit","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"amount","type":"uint256"}],"name":"withdraw","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"cashbackId","type":"bytes32"}],"name":"allocationOf","outputs":[{"name":"recipient","type":"address"},{"name":"amount","type":"uint256"},{"name":"claimed","type":"bool"}],"stateMutability":"view","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"cashbackId","type":"bytes32"},{"indexed":true,"name":"recipient","type":"address"},{"indexed":false,"name":"amount","type":"uint256"}],"name":"CashbackAllocated","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"cashbackId","type":"bytes32"},{"indexed":true,"name":"recipient","type":"address"},{"indexed":false,"name":"amount","type":"uint256"}],"name":"CashbackClaimed","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":false,"name":"amount","type":"uint256"}],"name":"TokensDeposited","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"amount","type":"uint256"}],"name":"TokensWithdrawn","type":"event"}
]`

var managerABI = mustParseABI(managerABIJSON)

// ManagerABI returns the parsed cashback manager interface.
func ManagerABI() string {
	return managerABIJSON
}

// CashbackIDHash maps an off-chain cashback id to its bytes32 key.
// Ids longer than 32 bytes are hashed to stay within bytes32.
func CashbackIDHash(cashbackID string) [32]byte {
	var key [32]byte
	if len(cashbackID) > 32 {
		copy(key[:], crypto.Keccak256([]byte(cashbackID)))
		return key
	}
	copy(key[:], common.LeftPadBytes([]byte(cashbackID), 32))
	return key
}

// PackAllocateCashback encodes an allocateCashback call.
func PackAllocateCashback(recipient common.Address, cashbackID string, amount *big.Int) ([]byte, error) {
	return managerABI.Pack("allocateCashback", recipient, CashbackIDHash(cashbackID), amount)
}

// PackClaimCashback encodes a claimCashback call.
func PackClaimCashback(cashbackID string) ([]byte, error) {
	return managerABI.Pack("claimCashback", CashbackIDHash(cashbackID))
}

// PackDeposit encodes a deposit call.
func PackDeposit(amount *big.Int) ([]byte, error) {
	return managerABI.Pack("deposit", amount)
}

// PackWithdraw encodes a withdraw call.
func PackWithdraw(amount *big.Int) ([]byte, error) {
	return managerABI.Pack("withdraw", amount)
}

// PackAllocationOf encodes an allocationOf view call.
func PackAllocationOf(cashbackID string) ([]byte, error) {
	return managerABI.Pack("allocationOf", CashbackIDHash(cashbackID))
}

// Allocation is the decoded allocationOf result.
type Allocation struct {
	Recipient common.Address
	Amount    *big.Int
	Claimed   bool
}

// UnpackAllocation decodes an allocationOf return value.
func UnpackAllocation(data []byte) (*Allocation, error) {
	out, err := managerABI.Unpack("allocationOf", data)
	if err != nil {
		return nil, err
	}
	if len(out) != 3 {
		return nil, fmt.Errorf("unexpected allocationOf arity %d", len(out))
	}
	a := &Allocation{}
	var ok bool
	if a.Recipient, ok = out[0].(common.Address); !ok {
		return nil, fmt.Errorf("unexpected recipient type %T", out[0])
	}
	if a.Amount, ok = out[1].(*big.Int); !ok {
		return nil, fmt.Errorf("unexpected amount type %T", out[1])
	}
	if a.Claimed, ok = out[2].(bool); !ok {
		return nil, fmt.Errorf("unexpected claimed type %T", out[2])
	}
	return a, nil
}

// Event topic accessors used by the ingest filter query.
func CashbackAllocatedTopic() common.Hash {
	return managerABI.Events["CashbackAllocated"].ID
}

func CashbackClaimedTopic() common.Hash {
	return managerABI.Events["CashbackClaimed"].ID
}

func TokensDepositedTopic() common.Hash {
	return managerABI.Events["TokensDeposited"].ID
}

func TokensWithdrawnTopic() common.Hash {
	return managerABI.Events["TokensWithdrawn"].ID
}

// EventNameByTopic resolves a log's first topic to the event name,
// empty when the topic is not one of ours.
func EventNameByTopic(topic common.Hash) string {
	for name, ev := range managerABI.Events {
		if ev.ID == topic {
			return name
		}
	}
	return ""
}

// CashbackEvent is a decoded allocation or claim log.
type CashbackEvent struct {
	CashbackID [32]byte
	Recipient  common.Address
	Amount     *big.Int
}

// ParseCashbackAllocated decodes a CashbackAllocated log.
func ParseCashbackAllocated(log types.Log) (*CashbackEvent, error) {
	return parseCashbackEvent("CashbackAllocated", log)
}

// ParseCashbackClaimed decodes a CashbackClaimed log.
func ParseCashbackClaimed(log types.Log) (*CashbackEvent, error) {
	return parseCashbackEvent("CashbackClaimed", log)
}

func parseCashbackEvent(name string, log types.Log) (*CashbackEvent, error) {
	if len(log.Topics) != 3 {
		return nil, fmt.Errorf("%s: expected 3 topics, got %d", name, len(log.Topics))
	}
	out, err := managerABI.Unpack(name, log.Data)
	if err != nil {
		return nil, err
	}
	amount, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected amount type %T", out[0])
	}
	ev := &CashbackEvent{
		Recipient: common.BytesToAddress(log.Topics[2].Bytes()),
		Amount:    amount,
	}
	copy(ev.CashbackID[:], log.Topics[1].Bytes())
	return ev, nil
}
