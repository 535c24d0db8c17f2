package model

// ContractType 合约类型
type ContractType string

const (
	ContractTypeToken   ContractType = "token"   // ERC20 代币
	ContractTypeManager ContractType = "manager" // 返现管理合约
	ContractTypePool    ContractType = "pool"    // 资金池
)

// Valid 判断合约类型是否受支持
func (t ContractType) Valid() bool {
	switch t {
	case ContractTypeToken, ContractTypeManager, ContractTypePool:
		return true
	}
	return false
}

// SmartContract 已部署合约元数据
//
// 部署成功后与部署交易记录在同一数据库事务中写入。
type SmartContract struct {
	ID               int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	ContractID       string       `gorm:"column:contract_id;type:varchar(64);uniqueIndex;not null" json:"contract_id"`
	Name             string       `gorm:"column:name;type:varchar(64);not null" json:"name"`
	Type             ContractType `gorm:"column:type;type:varchar(16);index;not null" json:"type"`
	Network          string       `gorm:"column:network;type:varchar(32);index;not null" json:"network"`
	Address          string       `gorm:"column:address;type:varchar(42);index;not null" json:"address"`
	ABI              string       `gorm:"column:abi;type:text;not null" json:"abi"`
	DeployerAddress  string       `gorm:"column:deployer_address;type:varchar(42)" json:"deployer_address"`
	DeploymentTxHash string       `gorm:"column:deployment_tx_hash;type:varchar(66)" json:"deployment_tx_hash"`
	Verified         bool         `gorm:"column:verified;not null;default:false" json:"verified"`
	CreatedAt        int64        `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
	UpdatedAt        int64        `gorm:"column:updated_at;type:bigint;not null" json:"updated_at"`
}

// TableName 返回表名
func (SmartContract) TableName() string {
	return "chain_smart_contracts"
}
