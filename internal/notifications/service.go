package notifications

import (
	"context"
	"fmt"
	"time"

	"eventix/internal/shared/config"
	"eventix/pkg/logger"
)

// Dispatcher accepts a notification for delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, notification *EmailNotification) error
}

// NotificationService delivers emails either through the Kafka topic and
// its consumer group, or inline when Kafka is disabled.
type NotificationService struct {
	emailService EmailService
	producer     NotificationProducer
	consumer     *KafkaNotificationConsumer
	direct       *ConsumerGroupHandler
	logger       *logger.Logger
	cancel       context.CancelFunc
}

func NewNotificationService(cfg *config.Config, log *logger.Logger) (*NotificationService, error) {
	log = log.WithComponent("notifications")

	var emailService EmailService
	if cfg.EmailConfigured() {
		smtpService, err := NewSMTPEmailService(&SMTPConfig{
			Host:      cfg.Email.SMTPHost,
			Port:      cfg.Email.SMTPPort,
			Username:  cfg.Email.SMTPUsername,
			Password:  cfg.Email.SMTPPassword,
			FromEmail: cfg.Email.FromEmail,
			FromName:  cfg.Email.FromName,
			UseTLS:    true,
		}, log)
		if err != nil {
			return nil, err
		}
		emailService = smtpService
	} else {
		log.Warn("SMTP_HOST not set, emails will only be logged")
		emailService = NewLogEmailService(log)
	}

	if !cfg.Kafka.Enabled {
		return NewDirectNotificationService(emailService, cfg.Kafka.MaxRetries, cfg.Kafka.RetryBackoff, log), nil
	}

	producerConfig := DefaultKafkaProducerConfig()
	producerConfig.Brokers = cfg.Kafka.Brokers
	producerConfig.ClientID = cfg.Kafka.ClientID
	producerConfig.Topic = cfg.Kafka.Topic
	producer, err := NewKafkaNotificationProducer(producerConfig, log)
	if err != nil {
		return nil, err
	}

	consumerConfig := DefaultConsumerConfig()
	consumerConfig.Brokers = cfg.Kafka.Brokers
	consumerConfig.ClientID = cfg.Kafka.ClientID
	consumerConfig.Topic = cfg.Kafka.Topic
	consumerConfig.GroupID = cfg.Kafka.ConsumerGroup
	consumerConfig.MaxRetries = cfg.Kafka.MaxRetries
	consumerConfig.RetryBackoff = cfg.Kafka.RetryBackoff
	consumer, err := NewKafkaNotificationConsumer(consumerConfig, emailService, log)
	if err != nil {
		_ = producer.Close()
		return nil, err
	}

	log.Info("Notification service initialized", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	return &NotificationService{
		emailService: emailService,
		producer:     producer,
		consumer:     consumer,
		logger:       log,
	}, nil
}

// NewDirectNotificationService sends every notification inline, retrying
// like the Kafka consumer does.
func NewDirectNotificationService(emailService EmailService, maxRetries int, backoff time.Duration, log *logger.Logger) *NotificationService {
	return &NotificationService{
		emailService: emailService,
		direct:       NewConsumerGroupHandler(emailService, maxRetries, backoff, log),
		logger:       log,
	}
}

// NewQueuedNotificationService publishes through producer and leaves
// delivery to whoever consumes the topic.
func NewQueuedNotificationService(producer NotificationProducer, log *logger.Logger) *NotificationService {
	return &NotificationService{producer: producer, logger: log}
}

func (ns *NotificationService) Dispatch(ctx context.Context, notification *EmailNotification) error {
	if ns.producer != nil {
		return ns.producer.PublishNotification(ctx, notification)
	}

	notification.Status = NotificationStatusSending
	if err := ns.direct.executeWithRetry(ctx, notification); err != nil {
		notification.MarkFailed(err)
		return err
	}
	notification.MarkSent(time.Now().UTC())
	return nil
}

func (ns *NotificationService) Start(ctx context.Context) {
	if ns.consumer == nil {
		return
	}
	ctx, ns.cancel = context.WithCancel(ctx)
	ns.consumer.Start(ctx)
}

func (ns *NotificationService) Stop() error {
	if ns.cancel != nil {
		ns.cancel()
	}
	var firstErr error
	if ns.consumer != nil {
		if err := ns.consumer.Stop(); err != nil {
			firstErr = err
		}
	}
	if ns.producer != nil {
		if err := ns.producer.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close producer: %w", err)
		}
	}
	return firstErr
}
