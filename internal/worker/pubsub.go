package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types carried in JobMessage.JobType.
const (
	JobCacheWarm   = "cache_warm"
	JobHealthCheck = "health_check"
)

var (
	// ErrMalformedMessage is returned for payloads that are not a JobMessage.
	ErrMalformedMessage = errors.New("malformed job message")

	// ErrUnknownJob is returned for an unrecognised job type.
	ErrUnknownJob = errors.New("unknown job type")
)

// JobMessage is the Pub/Sub payload that triggers a job.
type JobMessage struct {
	JobType string `json:"job_type"`

	// Sites limits cache_warm to the named launch sites.
	Sites []string `json:"sites,omitempty"`
}

// Dispatcher runs the job a message asks for.
type Dispatcher struct {
	job    *WarmJob
	logger zerolog.Logger
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(job *WarmJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{job: job, logger: logger}
}

// Dispatch parses data and runs the job. Errors wrapping ErrMalformedMessage
// or ErrUnknownJob are permanent; any other error may succeed on redelivery.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) error {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	switch msg.JobType {
	case JobCacheWarm:
		return d.cacheWarm(ctx, msg)
	case JobHealthCheck:
		return d.healthCheck(ctx)
	}
	return fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
}

func (d *Dispatcher) cacheWarm(ctx context.Context, msg JobMessage) error {
	d.logger.Info().
		Strs("sites", msg.Sites).
		Msg("starting cache warm")

	result := d.job.RunSites(ctx, msg.Sites)
	if result.Skipped {
		return nil
	}

	for _, e := range result.Errors {
		d.logger.Warn().
			Str("site", e.Site).
			Str("kind", e.Kind).
			Str("error", e.Error).
			Msg("site warming failed")
	}

	// Consider it successful if at least half the sites warmed.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many warming failures: %d/%d", result.Failed, result.TotalSites)
	}
	return nil
}

func (d *Dispatcher) healthCheck(ctx context.Context) error {
	d.logger.Debug().Msg("running health check")

	report, err := d.job.HealthCheck(ctx)
	if err != nil {
		return err
	}

	d.logger.Info().
		Int("providers", len(report.Providers)).
		Strs("degraded", report.Degraded).
		Strs("unhealthy", report.Unhealthy).
		Msg("health check passed")
	return nil
}

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Warming is slow and heavy; keep few messages in flight.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 2
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	err := h.dispatcher.Dispatch(logger.WithContext(ctx), msg.Data)
	switch {
	case errors.Is(err, ErrMalformedMessage), errors.Is(err, ErrUnknownJob):
		// Redelivery cannot fix these.
		logger.Warn().Err(err).Msg("dropping message")
		msg.Ack()
	case err != nil:
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
	default:
		logger.Info().
			Dur("duration", time.Since(startTime)).
			Msg("job completed successfully")
		msg.Ack()
	}
}
