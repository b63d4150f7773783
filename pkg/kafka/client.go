package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"distribution-service/pkg/config"
	"distribution-service/pkg/logger"
)

const (
	dialTimeout = 10 * time.Second
	// 流水线事件量小，批量等待过长会直接拖慢转码/发布的启动
	writeBatchTimeout = 20 * time.Millisecond
	topicPartitions   = 3
	topicReplication  = 1
)

// Client 流水线事件的生产者与消费者工厂
type Client struct {
	brokers []string
	groupID string
	dialer  *kafka.Dialer
	writers sync.Map // topic -> *kafka.Writer
}

var (
	once      sync.Once
	singleton *Client
)

func DefaultClient() *Client {
	once.Do(func() {
		singleton = &Client{}
	})
	return singleton
}

// MustOpen 读取全局配置；kafka.ensure_topics 时创建 source_ready / variant_ready 主题
func (c *Client) MustOpen() {
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before Kafka client")
	}
	if len(cfg.Kafka.BootstrapServers) == 0 {
		panic("kafka.bootstrap_servers is required when kafka.enabled")
	}
	c.brokers = cfg.Kafka.BootstrapServers
	c.groupID = cfg.Kafka.GroupID
	c.dialer = &kafka.Dialer{Timeout: dialTimeout, ClientID: cfg.Kafka.ClientID}

	if cfg.Kafka.EnsureTopics {
		for _, topic := range []string{cfg.Kafka.Topics.SourceReady, cfg.Kafka.Topics.VariantReady, cfg.Kafka.Topics.DeadLetter} {
			if err := c.EnsureTopic(topic, topicPartitions, topicReplication); err != nil {
				logger.Warnf("Kafka ensure topic failed topic=%s error=%v", topic, err)
			}
		}
	}
	logger.Info("Kafka client opened", map[string]interface{}{
		"brokers":   c.brokers,
		"client_id": cfg.Kafka.ClientID,
		"group_id":  c.groupID,
	})
}

func (c *Client) Close() {
	c.writers.Range(func(topic, value interface{}) bool {
		if err := value.(*kafka.Writer).Close(); err != nil {
			logger.Warnf("Kafka writer close failed topic=%v error=%v", topic, err)
		}
		c.writers.Delete(topic)
		return true
	})
}

// Ping 连接第一个 broker 确认可达
func (c *Client) Ping(ctx context.Context) error {
	if len(c.brokers) == 0 {
		return errors.New("kafka client not opened")
	}
	conn, err := c.dialer.DialContext(ctx, "tcp", c.brokers[0])
	if err != nil {
		return err
	}
	return conn.Close()
}

func (c *Client) writer(topic string) *kafka.Writer {
	if v, ok := c.writers.Load(topic); ok {
		return v.(*kafka.Writer)
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(c.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: writeBatchTimeout,
	}
	actual, loaded := c.writers.LoadOrStore(topic, w)
	if loaded {
		_ = w.Close()
	}
	return actual.(*kafka.Writer)
}

// ProduceJSON 以 key 做哈希分区，同一视频的事件落在同一分区、保持顺序
func (c *Client) ProduceJSON(ctx context.Context, topic, key string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal kafka message: %w", err)
	}
	return c.writer(topic).WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   body,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: "content-type", Value: []byte("application/json")}},
	})
}

// DeadLetter 原样转发无法处理的消息，附带来源主题、分区、偏移与失败原因
func (c *Client) DeadLetter(ctx context.Context, topic string, msg kafka.Message, cause error) error {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	headers := append([]kafka.Header(nil), msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "dlq-source-topic", Value: []byte(msg.Topic)},
		kafka.Header{Key: "dlq-source-partition", Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: "dlq-source-offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: "dlq-error", Value: []byte(reason)},
	)
	return c.writer(topic).WriteMessages(ctx, kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Time:    time.Now(),
		Headers: headers,
	})
}

// Reader 消费组 reader。CommitInterval 为 0，偏移只在处理完成后由调用方显式提交
func (c *Client) Reader(topic, groupID string) *kafka.Reader {
	if groupID == "" {
		groupID = c.groupID
	}
	logger.Infof("Kafka reader created topic=%s group=%s", topic, groupID)
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.brokers,
		GroupID:        groupID,
		Topic:          topic,
		Dialer:         c.dialer,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		MaxWait:        time.Second,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})
}

// EnsureTopic 通过 controller 创建主题，已存在时 broker 返回的错误被忽略
func (c *Client) EnsureTopic(topic string, numPartitions, replicationFactor int) error {
	if topic == "" || len(c.brokers) == 0 {
		return nil
	}
	conn, err := c.dialer.Dial("tcp", c.brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()
	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	cc, err := c.dialer.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer cc.Close()
	err = cc.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	})
	if errors.Is(err, kafka.TopicAlreadyExists) {
		return nil
	}
	return err
}
