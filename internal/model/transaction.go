package model

import "github.com/shopspring/decimal"

// TransactionStatus 链上交易状态
type TransactionStatus int8

const (
	TransactionStatusPending   TransactionStatus = 0 // 已广播，等待确认
	TransactionStatusConfirmed TransactionStatus = 1 // 已确认 (回执 status=1)
	TransactionStatusFailed    TransactionStatus = 2 // 已回滚 (回执 status=0)
)

func (s TransactionStatus) String() string {
	switch s {
	case TransactionStatusPending:
		return "PENDING"
	case TransactionStatusConfirmed:
		return "CONFIRMED"
	case TransactionStatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal 判断是否为终态
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusConfirmed || s == TransactionStatusFailed
}

// 交易关联的业务类型
const (
	TxRefTypeCashback   = "cashback"   // 返现结算
	TxRefTypeDeployment = "deployment" // 合约部署
	TxRefTypeContract   = "contract"   // 合约调用
)

// BlockchainTransaction 链上交易记录
//
// 广播成功后立即写入 (PENDING)，确认或回滚后由监控/对账路径更新。
// 广播与落库之间进程崩溃时，交易可能已上链而本表无记录，
// 依赖事件接入路径补齐对账。
type BlockchainTransaction struct {
	ID          int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	TxHash      string            `gorm:"column:tx_hash;type:varchar(66);uniqueIndex;not null" json:"tx_hash"`
	Network     string            `gorm:"column:network;type:varchar(32);index;not null" json:"network"`
	ContractID  string            `gorm:"column:contract_id;type:varchar(64);index" json:"contract_id"`
	FromAddress string            `gorm:"column:from_address;type:varchar(42);index;not null" json:"from_address"`
	ToAddress   string            `gorm:"column:to_address;type:varchar(42);index" json:"to_address"`
	Value       decimal.Decimal   `gorm:"column:value;type:decimal(36,18);not null" json:"value"`
	GasUsed     int64             `gorm:"column:gas_used;type:bigint" json:"gas_used"`
	GasPrice    decimal.Decimal   `gorm:"column:gas_price;type:decimal(36,0)" json:"gas_price"`
	GasFee      decimal.Decimal   `gorm:"column:gas_fee;type:decimal(36,18)" json:"gas_fee"`
	Status      TransactionStatus `gorm:"column:status;type:smallint;index;not null;default:0" json:"status"`
	BlockNumber int64             `gorm:"column:block_number;type:bigint" json:"block_number"`
	BlockHash   string            `gorm:"column:block_hash;type:varchar(66)" json:"block_hash"`
	RefType     string            `gorm:"column:ref_type;type:varchar(32);index" json:"ref_type"`
	RefID       string            `gorm:"column:ref_id;type:varchar(64);index" json:"ref_id"`
	SentAt      int64             `gorm:"column:sent_at;type:bigint;not null" json:"sent_at"`
	ConfirmedAt int64             `gorm:"column:confirmed_at;type:bigint" json:"confirmed_at"`
	CreatedAt   int64             `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
	UpdatedAt   int64             `gorm:"column:updated_at;type:bigint;not null" json:"updated_at"`
}

// TableName 返回表名
func (BlockchainTransaction) TableName() string {
	return "chain_transactions"
}
