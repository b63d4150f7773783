package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"distribution-service/ddd/domain/vo"
	"distribution-service/pkg/config"
)

type sent struct {
	topic, key string
	value      interface{}
}

type fakeProducer struct {
	msgs []sent
	err  error
}

func (f *fakeProducer) ProduceJSON(_ context.Context, topic, key string, v interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, sent{topic, key, v})
	return nil
}

func TestKafkaPublisher_RoutesByType(t *testing.T) {
	fp := &fakeProducer{}
	p := NewKafkaPublisher(fp, config.KafkaTopicsConfig{SourceReady: "src", VariantReady: "var"})

	require.NoError(t, p.Publish(context.Background(), vo.NewSourceReadyEvent("v1", "alice", vo.PlatformYouTube)))
	require.NoError(t, p.Publish(context.Background(), vo.NewVariantReadyEvent("v1", vo.PlatformYouTube)))
	require.Len(t, fp.msgs, 2)
	assert.Equal(t, "src", fp.msgs[0].topic)
	assert.Equal(t, "v1", fp.msgs[0].key)
	assert.Equal(t, "var", fp.msgs[1].topic)
}

func TestKafkaPublisher_Errors(t *testing.T) {
	p := NewKafkaPublisher(&fakeProducer{}, config.KafkaTopicsConfig{SourceReady: "src"})
	assert.Error(t, p.Publish(context.Background(), vo.NewVariantReadyEvent("v1", vo.PlatformVimeo)))

	p = NewKafkaPublisher(&fakeProducer{err: errors.New("broker down")}, config.KafkaTopicsConfig{SourceReady: "src"})
	assert.EqualError(t, p.Publish(context.Background(), vo.NewSourceReadyEvent("v1", "a")), "broker down")
}
