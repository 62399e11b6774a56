package bookings

import (
	"context"
	"time"

	"eventix/pkg/logger"
)

// JobProcessor runs background booking maintenance
type JobProcessor struct {
	service Service
	config  *JobConfig
	logger  *logger.Logger
	done    chan struct{}
}

// JobConfig contains configuration for background jobs
type JobConfig struct {
	ExpiryCheckInterval time.Duration
	BatchSize           int
}

// DefaultJobConfig returns default job configuration
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		ExpiryCheckInterval: 1 * time.Minute,
		BatchSize:           100,
	}
}

// NewJobProcessor creates a new job processor
func NewJobProcessor(service Service, config *JobConfig, log *logger.Logger) *JobProcessor {
	if config == nil {
		config = DefaultJobConfig()
	}
	if log == nil {
		log = logger.GetDefault()
	}

	return &JobProcessor{
		service: service,
		config:  config,
		logger:  log.WithComponent("booking-jobs"),
		done:    make(chan struct{}),
	}
}

// Start starts all background jobs
func (jp *JobProcessor) Start(ctx context.Context) {
	go jp.startExpiryProcessor(ctx)
	jp.logger.Info("Booking background jobs started",
		"expiry_check_interval", jp.config.ExpiryCheckInterval.String(),
		"batch_size", jp.config.BatchSize)
}

// Stop stops all background jobs
func (jp *JobProcessor) Stop() {
	close(jp.done)
	jp.logger.Info("Booking background jobs stopped")
}

func (jp *JobProcessor) startExpiryProcessor(ctx context.Context) {
	ticker := time.NewTicker(jp.config.ExpiryCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			jp.ProcessExpiredBookings(ctx)
		case <-jp.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ProcessExpiredBookings expires unpaid bookings in batches until a batch
// comes back short.
func (jp *JobProcessor) ProcessExpiredBookings(ctx context.Context) int {
	total := 0
	for {
		processed, err := jp.service.ExpirePending(ctx, time.Now().UTC(), jp.config.BatchSize)
		total += processed
		if err != nil {
			jp.logger.ErrorWithContext(ctx, "Error processing expired bookings", err, nil)
			break
		}
		if processed < jp.config.BatchSize {
			break
		}
	}

	if total > 0 {
		jp.logger.InfoWithContext(ctx, "Expired unpaid bookings", map[string]interface{}{"count": total})
	}
	return total
}

// GetJobStatus returns the status of background jobs
func (jp *JobProcessor) GetJobStatus() map[string]interface{} {
	return map[string]interface{}{
		"expiry_check_interval": jp.config.ExpiryCheckInterval.String(),
		"batch_size":            jp.config.BatchSize,
		"status":                "running",
	}
}
