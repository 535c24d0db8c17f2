package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
)

type fakeConsumerGroup struct{}

func (g *fakeConsumerGroup) Consume(ctx context.Context, topics []string, h sarama.ConsumerGroupHandler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (g *fakeConsumerGroup) Errors() <-chan error      { return nil }
func (g *fakeConsumerGroup) Close() error              { return nil }
func (g *fakeConsumerGroup) Pause(map[string][]int32)  {}
func (g *fakeConsumerGroup) Resume(map[string][]int32) {}
func (g *fakeConsumerGroup) PauseAll()                 {}
func (g *fakeConsumerGroup) ResumeAll()                {}

func TestConsumerCloseWithoutStart(t *testing.T) {
	c := &Consumer{
		group: &fakeConsumerGroup{},
		done:  make(chan struct{}),
	}

	// 启动失败的停机路径会在 Start 之前调用 Close，不能阻塞
	closed := make(chan error, 1)
	go func() { closed <- c.Close() }()

	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close 在未启动消费循环时阻塞")
	}
}

func TestConsumerCloseAfterStart(t *testing.T) {
	c := &Consumer{
		group: &fakeConsumerGroup{},
		done:  make(chan struct{}),
	}
	c.Start(context.Background())

	closed := make(chan error, 1)
	go func() { closed <- c.Close() }()

	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close 未能停止消费循环")
	}
	// 消费协程已退出
	select {
	case <-c.done:
	default:
		t.Fatal("消费协程未退出")
	}
}
