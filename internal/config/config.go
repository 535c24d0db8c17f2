package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 配置
type Config struct {
	Service    ServiceConfig    `yaml:"service" json:"service"`
	Postgres   PostgresConfig   `yaml:"postgres" json:"postgres"`
	Redis      RedisConfig      `yaml:"redis" json:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka" json:"kafka"`
	Networks   []NetworkConfig  `yaml:"networks" json:"networks"`
	Settlement SettlementConfig `yaml:"settlement" json:"settlement"`
	Ingest     IngestConfig     `yaml:"ingest" json:"ingest"`
	Log        LogConfig        `yaml:"log" json:"log"`
}

// ServiceConfig 服务配置
type ServiceConfig struct {
	Name        string `yaml:"name" json:"name"`
	GRPCPort    int    `yaml:"grpc_port" json:"grpc_port"`
	MetricsPort int    `yaml:"metrics_port" json:"metrics_port"`
	Env         string `yaml:"env" json:"env"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host            string `yaml:"host" json:"host"`
	Port            int    `yaml:"port" json:"port"`
	Database        string `yaml:"database" json:"database"`
	User            string `yaml:"user" json:"user"`
	Password        string `yaml:"password" json:"password"`
	MaxConnections  int    `yaml:"max_connections" json:"max_connections"`
	MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addresses []string `yaml:"addresses" json:"addresses"`
	Password  string   `yaml:"password" json:"password"`
	DB        int      `yaml:"db" json:"db"`
	PoolSize  int      `yaml:"pool_size" json:"pool_size"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers" json:"brokers"`
	GroupID  string   `yaml:"group_id" json:"group_id"`
	ClientID string   `yaml:"client_id" json:"client_id"`
}

// NetworkConfig 单个区块链网络配置
//
// PrivateKey 为空时该网络只读，禁止发送交易。
// TokenContract 为空时返现走原生币转账，否则走 ERC20 transfer。
type NetworkConfig struct {
	Name            string   `yaml:"name" json:"name"`
	ChainID         int64    `yaml:"chain_id" json:"chain_id"`
	RPCURL          string   `yaml:"rpc_url" json:"rpc_url"`
	BackupRPCURLs   []string `yaml:"backup_rpc_urls" json:"backup_rpc_urls"`
	NativeSymbol    string   `yaml:"native_symbol" json:"native_symbol"`
	PrivateKey      string   `yaml:"private_key" json:"private_key"`
	TokenContract   string   `yaml:"token_contract" json:"token_contract"`
	ManagerContract string   `yaml:"manager_contract" json:"manager_contract"`
	GasLimit        uint64   `yaml:"gas_limit" json:"gas_limit"`
}

// SettlementConfig 返现结算配置
type SettlementConfig struct {
	BatchSize           int `yaml:"batch_size" json:"batch_size"`
	MaxRetries          int `yaml:"max_retries" json:"max_retries"`
	RetryBackoff        int `yaml:"retry_backoff" json:"retry_backoff"`
	Confirmations       int `yaml:"confirmations" json:"confirmations"`
	ProcessInterval     int `yaml:"process_interval" json:"process_interval"`
	MonitorInterval     int `yaml:"monitor_interval" json:"monitor_interval"`
	ExpirySweepInterval int `yaml:"expiry_sweep_interval" json:"expiry_sweep_interval"`
}

// IngestConfig 事件摄取配置
type IngestConfig struct {
	SweepInterval int `yaml:"sweep_interval" json:"sweep_interval"`
	SweepLimit    int `yaml:"sweep_limit" json:"sweep_limit"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Load 加载配置
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// 环境变量替换
	content := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, err
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandEnvVars 展开环境变量 ${VAR:default}
func expandEnvVars(s string) string {
	result := s
	for {
		start := strings.Index(result, "${")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}")
		if end == -1 {
			break
		}
		end += start

		expr := result[start+2 : end]
		parts := strings.SplitN(expr, ":", 2)
		varName := parts[0]
		defaultVal := ""
		if len(parts) > 1 {
			defaultVal = parts[1]
		}

		value := os.Getenv(varName)
		if value == "" {
			value = defaultVal
		}

		result = result[:start] + value + result[end+1:]
	}
	return result
}

// setDefaults 设置默认值
func setDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = "meridian-chain"
	}
	if cfg.Service.GRPCPort == 0 {
		cfg.Service.GRPCPort = 50061
	}
	if cfg.Service.MetricsPort == 0 {
		cfg.Service.MetricsPort = 9091
	}
	if cfg.Service.Env == "" {
		cfg.Service.Env = "dev"
	}

	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = 5432
	}
	if cfg.Postgres.MaxConnections == 0 {
		cfg.Postgres.MaxConnections = 50
	}
	if cfg.Postgres.MaxIdleConns == 0 {
		cfg.Postgres.MaxIdleConns = 10
	}
	if cfg.Postgres.ConnMaxLifetime == 0 {
		cfg.Postgres.ConnMaxLifetime = 3600
	}

	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}
	if len(cfg.Redis.Addresses) == 0 {
		cfg.Redis.Addresses = []string{"localhost:6379"}
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 50
	}

	for i := range cfg.Networks {
		if cfg.Networks[i].GasLimit == 0 {
			cfg.Networks[i].GasLimit = 300_000
		}
		if cfg.Networks[i].NativeSymbol == "" {
			cfg.Networks[i].NativeSymbol = "ETH"
		}
	}

	if cfg.Settlement.BatchSize == 0 {
		cfg.Settlement.BatchSize = 50
	}
	if cfg.Settlement.MaxRetries == 0 {
		cfg.Settlement.MaxRetries = 3
	}
	if cfg.Settlement.RetryBackoff == 0 {
		cfg.Settlement.RetryBackoff = 30
	}
	if cfg.Settlement.Confirmations == 0 {
		cfg.Settlement.Confirmations = 1
	}
	if cfg.Settlement.ProcessInterval == 0 {
		cfg.Settlement.ProcessInterval = 5
	}
	if cfg.Settlement.MonitorInterval == 0 {
		cfg.Settlement.MonitorInterval = 10
	}
	if cfg.Settlement.ExpirySweepInterval == 0 {
		cfg.Settlement.ExpirySweepInterval = 300
	}

	if cfg.Ingest.SweepInterval == 0 {
		cfg.Ingest.SweepInterval = 15
	}
	if cfg.Ingest.SweepLimit == 0 {
		cfg.Ingest.SweepLimit = 100
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// validate 校验网络配置
func validate(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Networks))
	for _, n := range cfg.Networks {
		if n.Name == "" {
			return fmt.Errorf("network name is required")
		}
		if n.RPCURL == "" {
			return fmt.Errorf("network %s: rpc_url is required", n.Name)
		}
		if n.ChainID == 0 {
			return fmt.Errorf("network %s: chain_id is required", n.Name)
		}
		if seen[n.Name] {
			return fmt.Errorf("duplicate network name: %s", n.Name)
		}
		seen[n.Name] = true
	}
	return nil
}

// Network 按名称查找网络配置
func (c *Config) Network(name string) (*NetworkConfig, bool) {
	for i := range c.Networks {
		if c.Networks[i].Name == name {
			return &c.Networks[i], true
		}
	}
	return nil, false
}

// GetEnvInt 获取环境变量整数值
func GetEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// GetEnvString 获取环境变量字符串值
func GetEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
