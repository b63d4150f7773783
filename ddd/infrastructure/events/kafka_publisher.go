package events

import (
	"context"
	"fmt"

	"distribution-service/ddd/domain/vo"
	"distribution-service/pkg/config"
	"distribution-service/pkg/kafka"
	"distribution-service/pkg/logger"
)

// Producer 发送 JSON 消息
type Producer interface {
	ProduceJSON(ctx context.Context, topic, key string, v interface{}) error
}

// KafkaPublisher 按事件类型写入对应 topic，以 video_uuid 作为分区键
type KafkaPublisher struct {
	producer Producer
	topics   map[vo.EventType]string
}

// NewKafkaPublisher producer 为空时使用默认 Kafka 客户端
func NewKafkaPublisher(producer Producer, topics config.KafkaTopicsConfig) *KafkaPublisher {
	if producer == nil {
		producer = kafka.DefaultClient()
	}
	return &KafkaPublisher{
		producer: producer,
		topics: map[vo.EventType]string{
			vo.EventSourceReady:  topics.SourceReady,
			vo.EventVariantReady: topics.VariantReady,
		},
	}
}

// Topic 事件对应的 topic
func (p *KafkaPublisher) Topic(t vo.EventType) (string, bool) {
	topic, ok := p.topics[t]
	return topic, ok && topic != ""
}

func (p *KafkaPublisher) Publish(ctx context.Context, event vo.PipelineEvent) error {
	topic, ok := p.Topic(event.Type)
	if !ok {
		return fmt.Errorf("no topic configured for event %s", event.Type)
	}
	if err := p.producer.ProduceJSON(ctx, topic, event.Key(), event); err != nil {
		logger.Error("publish pipeline event failed", map[string]interface{}{
			"topic":      topic,
			"type":       string(event.Type),
			"video_uuid": event.VideoID,
			"error":      err.Error(),
		})
		return err
	}
	return nil
}
