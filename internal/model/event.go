package model

// BlockchainEvent 链上事件记录
//
// 以 (tx_hash, log_index) 做幂等键，订阅与 webhook 两条接入路径共用。
// processed=false 的记录由后台扫描分发处理，处理失败记录错误原因并保留待重试。
type BlockchainEvent struct {
	ID              int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID         string `gorm:"column:event_id;type:varchar(64);uniqueIndex;not null" json:"event_id"`
	Network         string `gorm:"column:network;type:varchar(32);index;not null" json:"network"`
	ContractID      string `gorm:"column:contract_id;type:varchar(64);index" json:"contract_id"`
	EventName       string `gorm:"column:event_name;type:varchar(64);index;not null" json:"event_name"`
	TxHash          string `gorm:"column:tx_hash;type:varchar(66);uniqueIndex:idx_chain_events_tx_log;not null" json:"tx_hash"`
	LogIndex        uint   `gorm:"column:log_index;uniqueIndex:idx_chain_events_tx_log;not null" json:"log_index"`
	BlockNumber     int64  `gorm:"column:block_number;type:bigint;index;not null" json:"block_number"`
	BlockHash       string `gorm:"column:block_hash;type:varchar(66)" json:"block_hash"`
	EventData       string `gorm:"column:event_data;type:text" json:"event_data"`
	Processed       bool   `gorm:"column:processed;index;not null;default:false" json:"processed"`
	ProcessingError string `gorm:"column:processing_error;type:varchar(500)" json:"processing_error"`
	CreatedAt       int64  `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
	UpdatedAt       int64  `gorm:"column:updated_at;type:bigint;not null" json:"updated_at"`
}

// TableName 返回表名
func (BlockchainEvent) TableName() string {
	return "chain_events"
}

// 事件名称常量
const (
	EventCashbackAllocated = "CashbackAllocated"
	EventCashbackClaimed   = "CashbackClaimed"
	EventTokensDeposited   = "TokensDeposited"
	EventTokensWithdrawn   = "TokensWithdrawn"
	EventTransfer          = "Transfer"
)
