package model

import "github.com/shopspring/decimal"

// CashbackStatus 返现状态
type CashbackStatus int8

const (
	CashbackStatusPending    CashbackStatus = 0 // 待结算
	CashbackStatusProcessing CashbackStatus = 1 // 结算中 (链上交易已广播或即将广播)
	CashbackStatusCompleted  CashbackStatus = 2 // 已完成 (交易确认)
	CashbackStatusFailed     CashbackStatus = 3 // 失败 (可重试)
	CashbackStatusCancelled  CashbackStatus = 4 // 已取消 (过期)
)

func (s CashbackStatus) String() string {
	switch s {
	case CashbackStatusPending:
		return "PENDING"
	case CashbackStatusProcessing:
		return "PROCESSING"
	case CashbackStatusCompleted:
		return "COMPLETED"
	case CashbackStatusFailed:
		return "FAILED"
	case CashbackStatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal 判断是否为终态
func (s CashbackStatus) IsTerminal() bool {
	return s == CashbackStatusCompleted || s == CashbackStatusCancelled
}

// Cashback 返现记录
//
// 由支付域创建 (PENDING)，此后仅由结算服务和事件对账路径变更状态。
// 记录永不删除，过期未结算时终态标记为 CANCELLED。
type Cashback struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	CashbackID    string          `gorm:"column:cashback_id;type:varchar(64);uniqueIndex;not null" json:"cashback_id"`
	PaymentID     string          `gorm:"column:payment_id;type:varchar(64);index;not null" json:"payment_id"`
	UserID        string          `gorm:"column:user_id;type:varchar(64);index;not null" json:"user_id"`
	WalletAddress string          `gorm:"column:wallet_address;type:varchar(42)" json:"wallet_address"`
	Network       string          `gorm:"column:network;type:varchar(32);not null" json:"network"`
	Amount        decimal.Decimal `gorm:"column:amount;type:decimal(36,18);not null" json:"amount"`
	Percentage    decimal.Decimal `gorm:"column:percentage;type:decimal(5,2);not null" json:"percentage"`
	Status        CashbackStatus  `gorm:"column:status;type:smallint;index;not null;default:0" json:"status"`
	TxHash        string          `gorm:"column:tx_hash;type:varchar(66)" json:"tx_hash"`
	BlockNumber   int64           `gorm:"column:block_number;type:bigint" json:"block_number"`
	RetryCount    int             `gorm:"column:retry_count;type:int;not null;default:0" json:"retry_count"`
	FailureReason string          `gorm:"column:failure_reason;type:varchar(500)" json:"failure_reason"`
	EligibleAt    int64           `gorm:"column:eligible_at;type:bigint;not null" json:"eligible_at"`
	ExpiresAt     int64           `gorm:"column:expires_at;type:bigint;index;not null" json:"expires_at"`
	ProcessedAt   int64           `gorm:"column:processed_at;type:bigint" json:"processed_at"`
	CompletedAt   int64           `gorm:"column:completed_at;type:bigint" json:"completed_at"`
	FailedAt      int64           `gorm:"column:failed_at;type:bigint" json:"failed_at"`
	LastRetryAt   int64           `gorm:"column:last_retry_at;type:bigint" json:"last_retry_at"`
	CreatedAt     int64           `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
	UpdatedAt     int64           `gorm:"column:updated_at;type:bigint;not null" json:"updated_at"`
}

// TableName 返回表名
func (Cashback) TableName() string {
	return "chain_cashbacks"
}

// CashbackCreated 返现创建事件 (从 Kafka 消费，支付域发出)
type CashbackCreated struct {
	CashbackID string `json:"cashback_id"`
	PaymentID  string `json:"payment_id"`
	UserID     string `json:"user_id"`
	CreatedAt  int64  `json:"created_at"`
}

// CashbackSettled 返现结算确认事件 (发送到 Kafka)
type CashbackSettled struct {
	CashbackID  string `json:"cashback_id"`
	PaymentID   string `json:"payment_id"`
	UserID      string `json:"user_id"`
	Network     string `json:"network"`
	TxHash      string `json:"tx_hash"`
	BlockNumber int64  `json:"block_number"`
	Status      string `json:"status"` // COMPLETED/FAILED
	Error       string `json:"error,omitempty"`
	SettledAt   int64  `json:"settled_at"`
}
