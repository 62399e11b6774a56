package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"eventix/pkg/logger"

	"github.com/IBM/sarama"
)

type ConsumerConfig struct {
	Brokers           []string
	ClientID          string
	GroupID           string
	Topic             string
	SessionTimeout    time.Duration
	Heartbeat         time.Duration
	MaxProcessingTime time.Duration
	OffsetOldest      bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

func DefaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		Brokers:           []string{"localhost:9092"},
		ClientID:          "eventix",
		GroupID:           "eventix-notification-workers",
		Topic:             "eventix.notifications",
		SessionTimeout:    30 * time.Second,
		Heartbeat:         3 * time.Second,
		MaxProcessingTime: 5 * time.Minute,
		MaxRetries:        3,
		RetryBackoff:      time.Second,
	}
}

// KafkaNotificationConsumer reads the notification topic as part of a
// consumer group and hands every message to the email service.
type KafkaNotificationConsumer struct {
	group   sarama.ConsumerGroup
	topic   string
	handler *ConsumerGroupHandler
	logger  *logger.Logger
	wg      sync.WaitGroup
}

func NewKafkaNotificationConsumer(config *ConsumerConfig, emailService EmailService, log *logger.Logger) (*KafkaNotificationConsumer, error) {
	sc := sarama.NewConfig()
	sc.ClientID = config.ClientID
	sc.Consumer.Group.Session.Timeout = config.SessionTimeout
	sc.Consumer.Group.Heartbeat.Interval = config.Heartbeat
	sc.Consumer.MaxProcessingTime = config.MaxProcessingTime
	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.AutoCommit.Enable = true
	sc.Consumer.Offsets.AutoCommit.Interval = time.Second
	if config.OffsetOldest {
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	group, err := sarama.NewConsumerGroup(config.Brokers, config.GroupID, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	log = log.WithComponent("notification-consumer")
	return &KafkaNotificationConsumer{
		group:   group,
		topic:   config.Topic,
		handler: NewConsumerGroupHandler(emailService, config.MaxRetries, config.RetryBackoff, log),
		logger:  log,
	}, nil
}

// Start consumes in the background until ctx is cancelled or Stop is called.
func (knc *KafkaNotificationConsumer) Start(ctx context.Context) {
	knc.wg.Add(2)
	go func() {
		defer knc.wg.Done()
		for err := range knc.group.Errors() {
			knc.logger.Error("Consumer group error", "error", err.Error())
		}
	}()
	go func() {
		defer knc.wg.Done()
		for {
			if err := knc.group.Consume(ctx, []string{knc.topic}, knc.handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				knc.logger.Error("Error consuming notifications", "error", err.Error())
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
	knc.logger.Info("Notification consumer started", "topic", knc.topic)
}

func (knc *KafkaNotificationConsumer) Stop() error {
	err := knc.group.Close()
	knc.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close consumer group: %w", err)
	}
	knc.logger.Info("Notification consumer stopped")
	return nil
}

// ConsumerGroupHandler sends each consumed notification with retries.
// Messages that still fail are logged and committed so one bad address
// cannot stall its partition.
type ConsumerGroupHandler struct {
	emailService EmailService
	maxRetries   int
	backoff      time.Duration
	logger       *logger.Logger
}

func NewConsumerGroupHandler(emailService EmailService, maxRetries int, backoff time.Duration, log *logger.Logger) *ConsumerGroupHandler {
	return &ConsumerGroupHandler{
		emailService: emailService,
		maxRetries:   maxRetries,
		backoff:      backoff,
		logger:       log,
	}
}

func (h *ConsumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *ConsumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *ConsumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.processMessage(session.Context(), message); err != nil {
				h.logger.Error("Dropping notification",
					"topic", message.Topic,
					"partition", message.Partition,
					"offset", message.Offset,
					"error", err.Error())
			}
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

func (h *ConsumerGroupHandler) processMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	var notification EmailNotification
	if err := json.Unmarshal(message.Value, &notification); err != nil {
		return fmt.Errorf("failed to unmarshal notification: %w", err)
	}

	notification.Status = NotificationStatusSending
	if err := h.executeWithRetry(ctx, &notification); err != nil {
		notification.MarkFailed(err)
		return err
	}
	notification.MarkSent(time.Now().UTC())
	return nil
}

// executeWithRetry doubles the backoff after every failed attempt.
func (h *ConsumerGroupHandler) executeWithRetry(ctx context.Context, notification *EmailNotification) error {
	var err error
	for attempt := 0; attempt <= h.maxRetries; attempt++ {
		notification.Attempts++
		if err = h.emailService.SendNotification(ctx, notification); err == nil {
			return nil
		}
		if attempt == h.maxRetries {
			break
		}

		delay := h.backoff * time.Duration(1<<attempt)
		h.logger.Warn("Retrying notification",
			"notification_id", notification.ID.String(),
			"attempt", attempt+1,
			"delay", delay.String(),
			"error", err.Error())
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("after %d attempts: %w", notification.Attempts, err)
}
