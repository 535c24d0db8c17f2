package blockchain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-commerce/meridian-chain/internal/config"
)

func TestNewClient(t *testing.T) {
	t.Run("只读客户端", func(t *testing.T) {
		c, err := NewClient(config.NetworkConfig{
			Name:    "ethereum",
			ChainID: 1,
			RPCURL:  "http://localhost:8545",
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, "ethereum", c.Network())
		assert.Equal(t, int64(1), c.ChainID().Int64())
		_, ok := c.SignerAddress()
		assert.False(t, ok)
		assert.Equal(t, uint64(defaultGasLimit), c.gasLimit)
	})

	t.Run("带签名钱包", func(t *testing.T) {
		c, err := NewClient(config.NetworkConfig{
			Name:       "polygon",
			ChainID:    137,
			RPCURL:     "http://localhost:8545",
			PrivateKey: "fad9c8855b740a0b7ed4c221dbad0f33a83a49cad6b3fe8d5817ac83d38b6a19",
			GasLimit:   500_000,
		}, nil)
		require.NoError(t, err)
		addr, ok := c.SignerAddress()
		assert.True(t, ok)
		assert.NotEmpty(t, addr.Hex())
		assert.Equal(t, uint64(500_000), c.gasLimit)
	})

	t.Run("非法私钥", func(t *testing.T) {
		_, err := NewClient(config.NetworkConfig{
			Name:       "ethereum",
			ChainID:    1,
			RPCURL:     "http://localhost:8545",
			PrivateKey: "not-a-key",
		}, nil)
		assert.Error(t, err)
	})

	t.Run("主备端点", func(t *testing.T) {
		c, err := NewClient(config.NetworkConfig{
			Name:          "ethereum",
			ChainID:       1,
			RPCURL:        "http://primary:8545",
			BackupRPCURLs: []string{"http://backup1:8545", "http://backup2:8545"},
		}, nil)
		require.NoError(t, err)
		assert.Len(t, c.endpoints, 3)
	})
}

func TestClassifyRPCError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"余额不足", errors.New("insufficient funds for gas * price + value"), ErrInsufficientFunds},
		{"nonce 过低", errors.New("nonce too low"), ErrNonceExpired},
		{"交易已知", errors.New("already known"), ErrNonceExpired},
		{"执行回滚", errors.New("execution reverted: allocation exists"), ErrTxReverted},
		{"连接拒绝", errors.New("dial tcp: connection refused"), ErrNetworkUnavailable},
		{"网关错误", errors.New("502 Bad Gateway"), ErrNetworkUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyRPCError(tt.in)
			assert.ErrorIs(t, got, tt.want)
		})
	}

	assert.Nil(t, ClassifyRPCError(nil))

	// 未识别的错误原样返回
	raw := errors.New("something else")
	assert.Equal(t, raw, ClassifyRPCError(raw))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ClassifyRPCError(errors.New("i/o timeout"))))
	assert.False(t, IsRetryable(ClassifyRPCError(errors.New("insufficient funds"))))
	assert.False(t, IsRetryable(ClassifyRPCError(errors.New("execution reverted"))))
}
