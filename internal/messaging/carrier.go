package messaging

import (
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
)

// headers adapts Kafka message headers to a propagation.TextMapCarrier so
// trace context travels with every event.
type headers struct {
	msg *kafka.Message
}

var _ propagation.TextMapCarrier = headers{}

func carrierFor(msg *kafka.Message) headers {
	return headers{msg: msg}
}

func (h headers) Get(key string) string {
	for _, header := range h.msg.Headers {
		if header.Key == key {
			return string(header.Value)
		}
	}
	return ""
}

func (h headers) Set(key, value string) {
	for i := range h.msg.Headers {
		if h.msg.Headers[i].Key == key {
			h.msg.Headers[i].Value = []byte(value)
			return
		}
	}
	h.msg.Headers = append(h.msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (h headers) Keys() []string {
	keys := make([]string, 0, len(h.msg.Headers))
	for _, header := range h.msg.Headers {
		keys = append(keys, header.Key)
	}
	return keys
}
