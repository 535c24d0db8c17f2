package contract

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/meridian-commerce/meridian-chain/internal/blockchain"
	"github.com/meridian-commerce/meridian-chain/internal/model"
	"github.com/meridian-commerce/meridian-chain/internal/repository"
	"github.com/meridian-commerce/meridian-chain/pkg/logger"
)

// Method is a typed command for manager contract interactions.
// Methods are dispatched through a closed switch, never by name lookup.
type Method int

const (
	MethodAllocateCashback Method = iota
	MethodClaimCashback
	MethodDeposit
	MethodWithdraw
	MethodAllocationOf
	MethodBalanceOf
	MethodDecimals
	MethodSymbol
)

func (m Method) String() string {
	switch m {
	case MethodAllocateCashback:
		return "allocateCashback"
	case MethodClaimCashback:
		return "claimCashback"
	case MethodDeposit:
		return "deposit"
	case MethodWithdraw:
		return "withdraw"
	case MethodAllocationOf:
		return "allocationOf"
	case MethodBalanceOf:
		return "balanceOf"
	case MethodDecimals:
		return "decimals"
	case MethodSymbol:
		return "symbol"
	default:
		return "unknown"
	}
}

// DeploymentError wraps a failed contract deployment.
type DeploymentError struct {
	Type    model.ContractType
	Network string
	Err     error
}

func (e *DeploymentError) Error() string {
	return fmt.Sprintf("deploy %s contract on %s: %v", e.Type, e.Network, e.Err)
}

func (e *DeploymentError) Unwrap() error { return e.Err }

// InteractionError wraps a failed contract call or transaction.
type InteractionError struct {
	Address string
	Method  Method
	Err     error
}

func (e *InteractionError) Error() string {
	return fmt.Sprintf("contract %s method %s: %v", e.Address, e.Method, e.Err)
}

func (e *InteractionError) Unwrap() error { return e.Err }

// ExecuteParams carries the arguments for a state-changing method.
// Only the fields the chosen method needs have to be set.
type ExecuteParams struct {
	Recipient  common.Address
	CashbackID string
	Amount     *big.Int
	RefType    string
	RefID      string
}

// ChainCaller is the client surface the gateway depends on.
type ChainCaller interface {
	SignerAddress() (common.Address, bool)
	SendTransaction(ctx context.Context, to *common.Address, value *big.Int, data []byte) (*types.Transaction, error)
	WaitForReceipt(ctx context.Context, txHash common.Hash, confirmations uint64) (*types.Receipt, error)
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// ClientRegistry resolves a network name to its chain client.
type ClientRegistry interface {
	Get(network string) (ChainCaller, error)
}

// Gateway mediates typed access to deployed contracts. Every broadcast
// is recorded as a chain_transactions row; deployments additionally
// persist contract metadata in the same database transaction.
type Gateway struct {
	registry      ClientRegistry
	contracts     *repository.ContractRepository
	transactions  *repository.TransactionRepository
	confirmations uint64
}

// NewGateway creates a contract gateway.
func NewGateway(registry ClientRegistry, contracts *repository.ContractRepository, transactions *repository.TransactionRepository, confirmations uint64) *Gateway {
	if confirmations == 0 {
		confirmations = 1
	}
	return &Gateway{
		registry:      registry,
		contracts:     contracts,
		transactions:  transactions,
		confirmations: confirmations,
	}
}

// DeployRequest describes a contract deployment.
type DeployRequest struct {
	Name     string
	Type     model.ContractType
	Network  string
	Bytecode string // hex, with or without 0x prefix
	ABI      string
}

// Deploy broadcasts a contract creation transaction, waits for the
// receipt, and persists contract metadata together with the deployment
// transaction row. A crash between broadcast and persistence leaves an
// on-chain contract without metadata; redeploying is the recovery path.
func (g *Gateway) Deploy(ctx context.Context, req DeployRequest) (*model.SmartContract, error) {
	if !req.Type.Valid() {
		return nil, &DeploymentError{Type: req.Type, Network: req.Network, Err: fmt.Errorf("unknown contract type")}
	}
	client, err := g.registry.Get(req.Network)
	if err != nil {
		return nil, &DeploymentError{Type: req.Type, Network: req.Network, Err: err}
	}
	bytecode, err := hex.DecodeString(strings.TrimPrefix(req.Bytecode, "0x"))
	if err != nil {
		return nil, &DeploymentError{Type: req.Type, Network: req.Network, Err: fmt.Errorf("decode bytecode: %w", err)}
	}

	tx, err := client.SendTransaction(ctx, nil, big.NewInt(0), bytecode)
	if err != nil {
		return nil, &DeploymentError{Type: req.Type, Network: req.Network, Err: err}
	}

	receipt, err := client.WaitForReceipt(ctx, tx.Hash(), g.confirmations)
	if err != nil {
		return nil, &DeploymentError{Type: req.Type, Network: req.Network, Err: err}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, &DeploymentError{Type: req.Type, Network: req.Network, Err: blockchain.ErrTxReverted}
	}

	deployer, _ := client.SignerAddress()
	sc := &model.SmartContract{
		ContractID:       uuid.NewString(),
		Name:             req.Name,
		Type:             req.Type,
		Network:          req.Network,
		Address:          receipt.ContractAddress.Hex(),
		ABI:              req.ABI,
		DeployerAddress:  deployer.Hex(),
		DeploymentTxHash: tx.Hash().Hex(),
	}
	txRow := newTxRow(tx, req.Network, deployer, model.TxRefTypeDeployment, sc.ContractID)
	txRow.ContractID = sc.ContractID

	// Metadata and the deployment transaction commit atomically.
	err = g.contracts.Transaction(ctx, func(ctx context.Context) error {
		if err := g.contracts.Create(ctx, sc); err != nil {
			return err
		}
		return g.createConfirmedTx(ctx, txRow, receipt)
	})
	if err != nil {
		return nil, &DeploymentError{Type: req.Type, Network: req.Network, Err: err}
	}

	logger.Info("contract deployed",
		zap.String("network", req.Network),
		zap.String("type", string(req.Type)),
		zap.String("address", sc.Address),
		zap.String("tx_hash", sc.DeploymentTxHash))
	return sc, nil
}

// Execute broadcasts a state-changing call against the manager contract
// and records the pending transaction row. The caller owns receipt
// tracking via the returned transaction hash.
func (g *Gateway) Execute(ctx context.Context, network, address string, method Method, params ExecuteParams) (*types.Transaction, error) {
	if !common.IsHexAddress(address) {
		return nil, &InteractionError{Address: address, Method: method, Err: blockchain.ErrInvalidAddress}
	}
	client, err := g.registry.Get(network)
	if err != nil {
		return nil, &InteractionError{Address: address, Method: method, Err: err}
	}

	var data []byte
	switch method {
	case MethodAllocateCashback:
		data, err = PackAllocateCashback(params.Recipient, params.CashbackID, params.Amount)
	case MethodClaimCashback:
		data, err = PackClaimCashback(params.CashbackID)
	case MethodDeposit:
		data, err = PackDeposit(params.Amount)
	case MethodWithdraw:
		data, err = PackWithdraw(params.Amount)
	default:
		err = fmt.Errorf("unsupported method %d", method)
	}
	if err != nil {
		return nil, &InteractionError{Address: address, Method: method, Err: err}
	}

	to := common.HexToAddress(address)
	tx, err := client.SendTransaction(ctx, &to, big.NewInt(0), data)
	if err != nil {
		return nil, &InteractionError{Address: address, Method: method, Err: err}
	}

	from, _ := client.SignerAddress()
	refType := params.RefType
	if refType == "" {
		refType = model.TxRefTypeContract
	}
	txRow := &model.BlockchainTransaction{
		TxHash:      tx.Hash().Hex(),
		Network:     network,
		FromAddress: from.Hex(),
		ToAddress:   address,
		Value:       decimal.Zero,
		Status:      model.TransactionStatusPending,
		RefType:     refType,
		RefID:       params.RefID,
		SentAt:      time.Now().UnixMilli(),
	}
	if sc, err := g.contracts.GetByAddress(ctx, network, address); err == nil {
		txRow.ContractID = sc.ContractID
	}
	if err := g.transactions.Create(ctx, txRow); err != nil {
		// The broadcast already happened; the monitor sweep reconciles
		// from the chain if this row is missing.
		logger.Error("record contract transaction failed",
			zap.String("tx_hash", txRow.TxHash),
			zap.Error(err))
	}
	return tx, nil
}

// AllocationOf reads the on-chain allocation for a cashback id.
func (g *Gateway) AllocationOf(ctx context.Context, network, address, cashbackID string) (*Allocation, error) {
	out, err := g.view(ctx, network, address, MethodAllocationOf, func() ([]byte, error) {
		return PackAllocationOf(cashbackID)
	})
	if err != nil {
		return nil, err
	}
	return UnpackAllocation(out)
}

// TokenBalance reads an ERC20 balance.
func (g *Gateway) TokenBalance(ctx context.Context, network, token string, owner common.Address) (*big.Int, error) {
	out, err := g.view(ctx, network, token, MethodBalanceOf, func() ([]byte, error) {
		return PackBalanceOf(owner)
	})
	if err != nil {
		return nil, err
	}
	return UnpackBalance(out)
}

// TokenDecimals reads an ERC20 decimals value.
func (g *Gateway) TokenDecimals(ctx context.Context, network, token string) (uint8, error) {
	out, err := g.view(ctx, network, token, MethodDecimals, func() ([]byte, error) {
		return PackDecimals()
	})
	if err != nil {
		return 0, err
	}
	return UnpackDecimals(out)
}

// TokenSymbol reads an ERC20 symbol.
func (g *Gateway) TokenSymbol(ctx context.Context, network, token string) (string, error) {
	out, err := g.view(ctx, network, token, MethodSymbol, func() ([]byte, error) {
		return PackSymbol()
	})
	if err != nil {
		return "", err
	}
	return UnpackSymbol(out)
}

func (g *Gateway) view(ctx context.Context, network, address string, method Method, pack func() ([]byte, error)) ([]byte, error) {
	if !common.IsHexAddress(address) {
		return nil, &InteractionError{Address: address, Method: method, Err: blockchain.ErrInvalidAddress}
	}
	client, err := g.registry.Get(network)
	if err != nil {
		return nil, &InteractionError{Address: address, Method: method, Err: err}
	}
	data, err := pack()
	if err != nil {
		return nil, &InteractionError{Address: address, Method: method, Err: err}
	}
	out, err := client.CallContract(ctx, common.HexToAddress(address), data)
	if err != nil {
		return nil, &InteractionError{Address: address, Method: method, Err: err}
	}
	return out, nil
}

// MarkVerified flags a deployed contract as source-verified.
func (g *Gateway) MarkVerified(ctx context.Context, contractID string) error {
	return g.contracts.MarkVerified(ctx, contractID)
}

func (g *Gateway) createConfirmedTx(ctx context.Context, row *model.BlockchainTransaction, receipt *types.Receipt) error {
	row.Status = model.TransactionStatusConfirmed
	row.BlockNumber = receipt.BlockNumber.Int64()
	row.BlockHash = receipt.BlockHash.Hex()
	row.GasUsed = int64(receipt.GasUsed)
	if receipt.EffectiveGasPrice != nil {
		row.GasPrice = decimal.NewFromBigInt(receipt.EffectiveGasPrice, 0)
		fee := new(big.Int).Mul(receipt.EffectiveGasPrice, big.NewInt(int64(receipt.GasUsed)))
		row.GasFee = decimal.NewFromBigInt(fee, -18)
	}
	row.ConfirmedAt = time.Now().UnixMilli()
	return g.transactions.Create(ctx, row)
}

func newTxRow(tx *types.Transaction, network string, from common.Address, refType, refID string) *model.BlockchainTransaction {
	row := &model.BlockchainTransaction{
		TxHash:      tx.Hash().Hex(),
		Network:     network,
		FromAddress: from.Hex(),
		Value:       decimal.NewFromBigInt(tx.Value(), -18),
		Status:      model.TransactionStatusPending,
		RefType:     refType,
		RefID:       refID,
		SentAt:      time.Now().UnixMilli(),
	}
	if tx.To() != nil {
		row.ToAddress = tx.To().Hex()
	}
	return row
}
