package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Kafkaへ注文確認イベントを流すSink。
// 別プロセスのメーラーがtopicを購読してメールを送る。
type KafkaSink struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaSink(brokers []string, topic string, log *zap.Logger) *KafkaSink {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 5 * time.Second,
	}
	return &KafkaSink{writer: w, log: log}
}

func (s *KafkaSink) OrderConfirmed(ctx context.Context, ev OrderConfirmedEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.OrderNumber),
		Value: data,
	})
	if err != nil {
		return err
	}

	s.log.Info("notification: order confirmed event published",
		zap.String("order_number", ev.OrderNumber))
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
