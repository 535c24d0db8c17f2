package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/meridian-commerce/meridian-chain/internal/model"
	"github.com/meridian-commerce/meridian-chain/pkg/logger"
)

// CashbackHandler 处理返现创建事件
type CashbackHandler interface {
	HandleCashbackCreated(ctx context.Context, event *model.CashbackCreated) error
}

// Consumer 返现创建事件消费者
type Consumer struct {
	group   sarama.ConsumerGroup
	handler CashbackHandler
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewConsumer 创建消费者组
func NewConsumer(brokers []string, groupID string, handler CashbackHandler) (*Consumer, error) {
	cfg := sarama.NewConfig()
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRange()}
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group: %w", err)
	}
	return &Consumer{
		group:   group,
		handler: handler,
		done:    make(chan struct{}),
	}, nil
}

// Start 启动消费循环
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	go func() {
		defer close(c.done)
		for {
			err := c.group.Consume(ctx, []string{TopicCashbackCreated}, &consumerHandler{handler: c.handler})
			if errors.Is(err, sarama.ErrClosedConsumerGroup) || ctx.Err() != nil {
				return
			}
			if err != nil {
				logger.Error("kafka 消费异常，准备重新加入", zap.Error(err))
			}
		}
	}()
}

// Close 停止消费并关闭连接
// Start 未被调用时没有消费协程，不等待 done
func (c *Consumer) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	err := c.group.Close()
	if c.cancel != nil {
		<-c.done
	}
	return err
}

type consumerHandler struct {
	handler CashbackHandler
}

func (h *consumerHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *consumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var event model.CashbackCreated
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			// 坏消息直接跳过，避免阻塞分区
			logger.Error("返现事件反序列化失败",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			session.MarkMessage(msg, "")
			continue
		}

		if err := h.handler.HandleCashbackCreated(session.Context(), &event); err != nil {
			// 处理失败不提交位移，失败记录由后台重试扫描兜底
			logger.Error("返现事件处理失败",
				zap.String("cashback_id", event.CashbackID),
				zap.Error(err))
		}
		session.MarkMessage(msg, "")
	}
	return nil
}
