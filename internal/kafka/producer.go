package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/meridian-commerce/meridian-chain/internal/model"
	"github.com/meridian-commerce/meridian-chain/pkg/logger"
)

// Topic 列表
//
// cashback-created: 支付域发出，触发结算
// cashback-settled: 结算确认后发出，通知订单/账户域
// cashback-failed:  重试耗尽后发出，人工介入
const (
	TopicCashbackCreated = "cashback-created"
	TopicCashbackSettled = "cashback-settled"
	TopicCashbackFailed  = "cashback-failed"
)

// Producer 结算结果事件生产者
type Producer struct {
	producer sarama.SyncProducer
}

// NewProducer 创建同步生产者
func NewProducer(brokers []string) (*Producer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &Producer{producer: p}, nil
}

// SendCashbackSettled 发送结算确认事件，按 cashback_id 分区保证同键有序
func (p *Producer) SendCashbackSettled(event *model.CashbackSettled) error {
	return p.send(TopicCashbackSettled, event.CashbackID, event)
}

// SendCashbackFailed 发送结算失败事件
func (p *Producer) SendCashbackFailed(event *model.CashbackSettled) error {
	return p.send(TopicCashbackFailed, event.CashbackID, event)
}

func (p *Producer) send(topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(data),
		Timestamp: time.Now(),
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send to %s: %w", topic, err)
	}
	logger.Debug("kafka 消息已发送",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

// Close 关闭生产者
func (p *Producer) Close() error {
	return p.producer.Close()
}
