// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"docuchat-go/internal/config"
	"docuchat-go/pkg/database"
	"docuchat-go/pkg/log"
	"docuchat-go/pkg/tasks"

	"github.com/segmentio/kafka-go"
)

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.DocumentProcessingTask) error
}

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// ProduceDocumentTask 发送一个文档摄取任务到 Kafka。
func ProduceDocumentTask(task tasks.DocumentProcessingTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}

	err = producer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(task.DocumentID),
			Value: taskBytes,
		},
	)
	return err
}

// maxDeliveryAttempts 是同一个任务允许的最大投递次数，
// 超过后视为毒消息，提交 offset 并丢弃。
const maxDeliveryAttempts = 3

// StartConsumer 启动一个 Kafka 消费者来处理文档摄取任务。
// 投递语义是 at-least-once：Processor 自己负责有界重试并把任务推进到终态，
// 消费者在 Process 返回后总是提交 offset。重复投递用 Redis 投递计数限制
// 而不是领取键：领取键在处理前写入，进程崩溃后重投会被当成已处理而跳过，
// 任务就永远卡在 processing。
func StartConsumer(cfg config.KafkaConfig, processor TaskProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  "docuchat-ingest-consumer",
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(context.Background())
		if err != nil {
			log.Error("从 Kafka 读取消息失败", err)
			break // 退出循环，可能需要重启策略
		}

		log.Infof("收到 Kafka 消息: offset %d", m.Offset)

		var task tasks.DocumentProcessingTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("提交错误消息失败: %v", err)
			}
			continue
		}

		attemptsKey := fmt.Sprintf("ingest:attempts:%s", task.JobID)
		attempts, attemptsErr := database.RDB.Incr(context.Background(), attemptsKey).Result()
		if attemptsErr != nil {
			log.Warnf("更新任务投递计数失败 (job=%s): %v, 继续处理", task.JobID, attemptsErr)
			attempts = 1
		} else {
			database.RDB.Expire(context.Background(), attemptsKey, time.Hour)
		}
		if attempts > maxDeliveryAttempts {
			log.Errorf("任务投递次数超限，丢弃: JobID=%s, Attempts=%d", task.JobID, attempts)
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
			}
			continue
		}

		log.Infof("开始处理摄取任务: JobID=%s, DocumentID=%s, FileName=%s", task.JobID, task.DocumentID, task.FileName)
		if err := processor.Process(context.Background(), task); err != nil {
			// Processor 已在内部完成重试并将任务置为 failed，这里只记录
			log.Errorf("摄取任务以失败结束: JobID=%s, Error: %v", task.JobID, err)
		} else {
			log.Infof("摄取任务处理成功: JobID=%s", task.JobID)
		}
		if err := r.CommitMessages(context.Background(), m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}

	if err := r.Close(); err != nil {
		log.Fatalf("关闭 Kafka 消费者失败: %v", err)
	}
}
