package contract

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Minimal ERC20 ABI covering the methods the settlement path needs.
const erc20ABIJSON = `[
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"value","type":"uint256"}],"name":"Transfer","type":"event"}
]`

var erc20ABI = mustParseABI(erc20ABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse abi: %v", err))
	}
	return parsed
}

// ERC20ABI returns the parsed minimal ERC20 interface.
func ERC20ABI() abi.ABI {
	return erc20ABI
}

// PackTransfer encodes an ERC20 transfer call.
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return erc20ABI.Pack("transfer", to, amount)
}

// PackBalanceOf encodes a balanceOf call.
func PackBalanceOf(owner common.Address) ([]byte, error) {
	return erc20ABI.Pack("balanceOf", owner)
}

// PackDecimals encodes a decimals call.
func PackDecimals() ([]byte, error) {
	return erc20ABI.Pack("decimals")
}

// PackSymbol encodes a symbol call.
func PackSymbol() ([]byte, error) {
	return erc20ABI.Pack("symbol")
}

// UnpackBalance decodes the balanceOf return value.
func UnpackBalance(data []byte) (*big.Int, error) {
	out, err := erc20ABI.Unpack("balanceOf", data)
	if err != nil {
		return nil, err
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf return type %T", out[0])
	}
	return balance, nil
}

// UnpackDecimals decodes the decimals return value.
func UnpackDecimals(data []byte) (uint8, error) {
	out, err := erc20ABI.Unpack("decimals", data)
	if err != nil {
		return 0, err
	}
	dec, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals return type %T", out[0])
	}
	return dec, nil
}

// UnpackSymbol decodes the symbol return value.
func UnpackSymbol(data []byte) (string, error) {
	out, err := erc20ABI.Unpack("symbol", data)
	if err != nil {
		return "", err
	}
	sym, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected symbol return type %T", out[0])
	}
	return sym, nil
}
