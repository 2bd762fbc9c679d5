package audit

import (
	"context"
	"encoding/json"
	"log"
	"strconv"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

// Producer is the part of *kafka.Producer the sink uses.
type Producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Events() chan kafka.Event
	Flush(timeoutMs int) int
	Close()
}

// KafkaSink publishes each event as JSON, keyed by order id so one order's
// history stays on one partition.
type KafkaSink struct {
	producer Producer
	topic    string
}

func NewKafkaSink(p Producer, topic string) *KafkaSink {
	s := &KafkaSink{producer: p, topic: topic}
	go s.watchDeliveries()
	return s
}

func (s *KafkaSink) watchDeliveries() {
	for ev := range s.producer.Events() {
		switch e := ev.(type) {
		case *kafka.Message:
			if e.TopicPartition.Error != nil {
				log.Printf("[audit] delivery failed: %s\n", e.TopicPartition.Error.Error())
			}
		case kafka.Error:
			log.Printf("[audit] kafka error: %s\n", e.Error())
		}
	}
}

func (s *KafkaSink) Emit(_ context.Context, e Event) {
	value, err := json.Marshal(e)
	if err != nil {
		log.Printf("[audit] encode %s: %s\n", e.Type, err.Error())
		return
	}
	err = s.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &s.topic, Partition: kafka.PartitionAny},
		Key:            []byte(strconv.FormatUint(uint64(e.OrderID), 10)),
		Value:          value,
		Headers:        []kafka.Header{{Key: "type", Value: []byte(e.Type)}},
	}, nil)
	if err != nil {
		log.Printf("[audit] produce %s: %s\n", e.Type, err.Error())
	}
}

func (s *KafkaSink) Close() {
	if remaining := s.producer.Flush(5000); remaining > 0 {
		log.Printf("[audit] %d events not delivered on shutdown\n", remaining)
	}
	s.producer.Close()
}
