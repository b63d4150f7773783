package component

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"distribution-service/ddd/domain/vo"
	"distribution-service/pkg/config"
	"distribution-service/pkg/errno"
	pkgkafka "distribution-service/pkg/kafka"
	"distribution-service/pkg/logger"
	"distribution-service/pkg/manager"
	"distribution-service/pkg/task"
)

const (
	readErrorBackoff = time.Second
	maxRetryBackoff  = 30 * time.Second
)

// EventHandler 与 worker.EventHandler 相同的契约
type EventHandler interface {
	HandleEvent(ctx context.Context, event vo.PipelineEvent) error
}

// MessageReader kafka.Reader 中用到的部分
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type PipelineConsumerPlugin struct{}

func (p *PipelineConsumerPlugin) Name() string { return "pipelineConsumer" }

// MustCreateComponent 仅在 kafka.enabled 且 worker.enabled 时创建
func (p *PipelineConsumerPlugin) MustCreateComponent(deps *manager.Dependencies) manager.Component {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.GetGlobalConfig()
	}
	if cfg == nil || !cfg.Kafka.Enabled || !cfg.Worker.Enabled {
		return nil
	}
	handler, ok := deps.PipelineApp.(EventHandler)
	if !ok {
		panic("pipeline app does not implement component.EventHandler")
	}
	client := pkgkafka.DefaultClient()
	readers := 1
	if cfg.Worker.Concurrency > 1 {
		readers = cfg.Worker.Concurrency
	}
	opts := ConsumerOptions{
		Topics:          []string{cfg.Kafka.Topics.SourceReady, cfg.Kafka.Topics.VariantReady},
		ReadersPerTopic: readers,
		MaxAttempts:     cfg.Kafka.ProcessMaxAttempts,
		RetryBackoff:    cfg.Kafka.ProcessRetryBackoff,
		NewReader: func(topic string) MessageReader {
			return client.Reader(topic, cfg.Kafka.GroupID)
		},
	}
	if dlq := cfg.Kafka.Topics.DeadLetter; dlq != "" {
		opts.DeadLetter = func(ctx context.Context, msg kafkago.Message, cause error) error {
			return client.DeadLetter(ctx, dlq, msg, cause)
		}
	}
	return NewPipelineConsumer(handler, opts)
}

// ConsumerOptions 消费者参数
type ConsumerOptions struct {
	Topics          []string
	ReadersPerTopic int
	// MaxAttempts 同一条消息原位处理的次数上限，之后转入死信并提交
	MaxAttempts  int
	RetryBackoff time.Duration
	// DeadLetter 为空时重试耗尽的消息只记录日志
	DeadLetter func(ctx context.Context, msg kafkago.Message, cause error) error
	NewReader  func(topic string) MessageReader
}

// PipelineConsumer 从 source_ready / variant_ready 主题消费事件。同一消费组内的多个 reader 分摊分区
type PipelineConsumer struct {
	handler EventHandler
	opts    ConsumerOptions
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewPipelineConsumer(handler EventHandler, opts ConsumerOptions) *PipelineConsumer {
	if opts.ReadersPerTopic <= 0 {
		opts.ReadersPerTopic = 1
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	return &PipelineConsumer{handler: handler, opts: opts}
}

func (c *PipelineConsumer) Start() error {
	task.Register(&task.Adapter{TaskName: c.GetName(), StartFunc: c.Run, StopFunc: c.Stop})
	return nil
}

// Run 启动所有 reader，立即返回
func (c *PipelineConsumer) Run(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	for _, topic := range c.opts.Topics {
		if topic == "" {
			continue
		}
		for i := 0; i < c.opts.ReadersPerTopic; i++ {
			reader := c.opts.NewReader(topic)
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				c.consume(ctx, topic, reader)
			}()
		}
	}
	logger.Infof("Kafka pipeline consumer started topics=%v readers_per_topic=%d", c.opts.Topics, c.opts.ReadersPerTopic)
	return nil
}

func (c *PipelineConsumer) consume(ctx context.Context, topic string, reader MessageReader) {
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Warnf("Kafka reader close failed topic=%s error=%v", topic, err)
		}
	}()
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			logger.Warnf("Kafka read error topic=%s error=%s", topic, err.Error())
			select {
			case <-ctx.Done():
				return
			case <-time.After(readErrorBackoff):
			}
			continue
		}
		// 偏移按分区提交 offset+1，跳过未处理完的消息会被后续提交一并确认，
		// 因此一条消息处理完(成功或转入死信)之前不再拉取下一条
		if !c.settle(ctx, topic, msg) {
			return
		}
		if err := reader.CommitMessages(context.WithoutCancel(ctx), msg); err != nil {
			logger.Warnf("Kafka commit failed topic=%s offset=%d error=%v", topic, msg.Offset, err)
		}
	}
}

// settle 返回 false 表示 ctx 结束时消息仍未处理完，不提交，重启或再均衡后重新投递
func (c *PipelineConsumer) settle(ctx context.Context, topic string, msg kafkago.Message) bool {
	var event vo.PipelineEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		logger.Warn("kafka message decode failed", map[string]interface{}{
			"topic":  topic,
			"offset": msg.Offset,
			"error":  err.Error(),
		})
		return c.deadLetter(ctx, topic, msg, err)
	}

	delay := c.opts.RetryBackoff
	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		lastErr = c.handler.HandleEvent(ctx, event)
		if lastErr == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		logger.Error("pipeline event failed", map[string]interface{}{
			"topic":    topic,
			"offset":   msg.Offset,
			"type":     string(event.Type),
			"video_id": event.VideoID,
			"platform": event.Platform.String(),
			"attempt":  attempt,
			"error":    lastErr.Error(),
		})
		if !retryable(lastErr) || attempt == c.opts.MaxAttempts {
			break
		}
		if !sleepCtx(ctx, delay) {
			return false
		}
		delay = nextBackoff(delay)
	}
	return c.deadLetter(ctx, topic, msg, lastErr)
}

func (c *PipelineConsumer) deadLetter(ctx context.Context, topic string, msg kafkago.Message, cause error) bool {
	if c.opts.DeadLetter == nil {
		logger.Error("pipeline event dropped", map[string]interface{}{
			"topic":     topic,
			"partition": msg.Partition,
			"offset":    msg.Offset,
			"key":       string(msg.Key),
			"value":     string(msg.Value),
			"error":     cause.Error(),
		})
		return true
	}
	delay := c.opts.RetryBackoff
	for {
		err := c.opts.DeadLetter(ctx, msg, cause)
		if err == nil {
			logger.Warn("pipeline event dead-lettered", map[string]interface{}{
				"topic":  topic,
				"offset": msg.Offset,
				"error":  cause.Error(),
			})
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		logger.Warnf("Kafka dead letter failed topic=%s offset=%d error=%v", topic, msg.Offset, err)
		if !sleepCtx(ctx, delay) {
			return false
		}
		delay = nextBackoff(delay)
	}
}

// retryable 业务错误码(状态不符、记录不存在)重试也不会成功，锁等待超时除外
func retryable(err error) bool {
	if errors.Is(err, errno.ErrLockTimeout) {
		return true
	}
	var biz *errno.BizError
	var code *errno.Errno
	return !errors.As(err, &biz) && !errors.As(err, &code)
}

func nextBackoff(d time.Duration) time.Duration {
	if d *= 2; d > maxRetryBackoff {
		return maxRetryBackoff
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *PipelineConsumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return nil
}

func (c *PipelineConsumer) GetName() string { return "pipelineConsumer" }
