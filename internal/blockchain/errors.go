package blockchain

import (
	"errors"
	"strings"
)

// 链操作错误分类
var (
	ErrUnsupportedNetwork  = errors.New("unsupported network")
	ErrWalletNotConfigured = errors.New("wallet not configured for network")
	ErrInvalidAddress      = errors.New("invalid address")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrNetworkUnavailable  = errors.New("network unavailable")
	ErrNonceExpired        = errors.New("nonce expired")
	ErrTxReverted          = errors.New("transaction reverted")
	ErrTxNotFound          = errors.New("transaction not found")
)

// ClassifyRPCError 将节点返回的错误归类为可判定的哨兵错误
// 节点实现间错误文案不统一，按子串匹配
func ClassifyRPCError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"),
		strings.Contains(msg, "insufficient balance"):
		return errors.Join(ErrInsufficientFunds, err)
	case strings.Contains(msg, "nonce too low"),
		strings.Contains(msg, "replacement transaction underpriced"),
		strings.Contains(msg, "already known"):
		return errors.Join(ErrNonceExpired, err)
	case strings.Contains(msg, "execution reverted"):
		return errors.Join(ErrTxReverted, err)
	case strings.Contains(msg, "not found"):
		return errors.Join(ErrTxNotFound, err)
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "i/o timeout"),
		strings.Contains(msg, "context deadline exceeded"),
		strings.Contains(msg, "502"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "eof"):
		return errors.Join(ErrNetworkUnavailable, err)
	}
	return err
}

// IsRetryable 判断错误是否值得在另一节点或稍后重试
// 余额不足、回执回滚等确定性失败不重试
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetworkUnavailable)
}
