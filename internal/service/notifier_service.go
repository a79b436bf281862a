package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uniplan/enrollment-api/internal/models"
	"github.com/uniplan/enrollment-api/pkg/config"
	"github.com/uniplan/enrollment-api/pkg/jobs"
)

type eventPublisher interface {
	Publish(ctx context.Context, channel string, value interface{}) error
}

// NotifierService announces new subjects to subscribed clients. Delivery is
// best-effort through an in-memory queue and Redis pub/sub: a failed publish
// is retried by the queue and eventually logged, never surfaced to the admin
// request that created the subject.
type NotifierService struct {
	publisher eventPublisher
	channel   string
	queue     *jobs.Queue
	logger    *zap.Logger
	enabled   bool
}

// NewNotifierService constructs a notifier backed by a worker queue.
func NewNotifierService(publisher eventPublisher, cfg config.NotificationsConfig, logger *zap.Logger) *NotifierService {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &NotifierService{
		publisher: publisher,
		channel:   cfg.Channel,
		logger:    logger,
		enabled:   cfg.Enabled && publisher != nil,
	}

	s.queue = jobs.NewQueue("notifications", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})

	return s
}

// Start launches the dispatch workers.
func (s *NotifierService) Start(ctx context.Context) {
	if s.enabled {
		s.queue.Start(ctx)
	}
}

// Stop drains the dispatch workers.
func (s *NotifierService) Stop() {
	if s.enabled {
		s.queue.Stop()
	}
}

// SubjectCreated enqueues a subject-available announcement.
func (s *NotifierService) SubjectCreated(subject models.Subject) {
	if !s.enabled {
		return
	}

	event := models.SubjectCreatedEvent{
		SubjectID: subject.ID,
		Code:      subject.Code,
		Name:      subject.Name,
		Credits:   subject.Credits,
		Semester:  subject.Semester,
		Message:   fmt.Sprintf("New subject available: %s", subject.Name),
	}

	job := jobs.Job{ID: uuid.NewString(), Type: "subject.created", Payload: event}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue subject notification", zap.String("subject_id", subject.ID), zap.Error(err))
	}
}

func (s *NotifierService) handle(ctx context.Context, job jobs.Job) error {
	return s.publisher.Publish(ctx, s.channel, job.Payload)
}
