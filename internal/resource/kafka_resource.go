package resource

import (
	"distribution-service/pkg/kafka"
	"distribution-service/pkg/manager"
)

// KafkaResource 流水线事件总线，kafka.enabled 时打开；关闭时事件走进程内队列
type KafkaResource struct {
	client *kafka.Client
}

func (r *KafkaResource) MustOpen() {
	r.client = kafka.DefaultClient()
	r.client.MustOpen()
}

// Close 刷出并关闭所有 writer；reader 由各自的消费者关闭
func (r *KafkaResource) Close() {
	if r.client != nil {
		r.client.Close()
	}
}

// KafkaResourcePlugin Kafka资源插件
type KafkaResourcePlugin struct{}

func (p *KafkaResourcePlugin) Name() string { return NameKafka }

func (p *KafkaResourcePlugin) MustCreateResource() manager.Resource {
	return &KafkaResource{}
}
