package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/uniplan/enrollment-api/internal/eligibility"
	"github.com/uniplan/enrollment-api/internal/models"
	appErrors "github.com/uniplan/enrollment-api/pkg/errors"
)

type catalogSubjectReader interface {
	ListAll(ctx context.Context) ([]models.Subject, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Subject, error)
}

type historyReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.HistoryEntry, error)
}

// CatalogService produces the student-facing annotated catalog views. All
// eligibility decisions delegate to the eligibility package; this service
// only fetches, caches and shapes.
type CatalogService struct {
	subjects catalogSubjectReader
	history  historyReader
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewCatalogService constructs a catalog service.
func NewCatalogService(subjects catalogSubjectReader, history historyReader, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{subjects: subjects, history: history, cache: cache, metrics: metrics, logger: logger}
}

// Annotated returns the full catalog annotated for the student: per-subject
// eligibility flags, the semester grouping and the in-progress projection.
// The result is a snapshot; it is cached per student and invalidated on any
// subject or history write.
func (s *CatalogService) Annotated(ctx context.Context, studentID string) (*models.AnnotatedCatalog, error) {
	cacheKey := fmt.Sprintf("catalog:student:%s", studentID)
	if s.cache.Enabled() {
		var cached models.AnnotatedCatalog
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return &cached, nil
		}
	}

	subjects, history, err := s.load(ctx, studentID)
	if err != nil {
		return nil, err
	}

	annotated := eligibility.Annotate(subjects, history)
	grouped, semesters := eligibility.GroupBySemester(annotated)
	s.recordEvaluations(annotated)

	inProgress, err := s.inProgressSubjects(ctx, history)
	if err != nil {
		return nil, err
	}

	catalog := &models.AnnotatedCatalog{
		Subjects:   annotated,
		BySemester: grouped,
		Semesters:  semesters,
		InProgress: inProgress,
	}

	if s.cache.Enabled() {
		_ = s.cache.Set(ctx, cacheKey, catalog, 0)
	}
	return catalog, nil
}

// EligibilityBySemester partitions the catalog into the three categories per
// semester, as shown by the eligibility-checker view.
func (s *CatalogService) EligibilityBySemester(ctx context.Context, studentID string) (map[int]*models.SemesterEligibility, error) {
	subjects, history, err := s.load(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return eligibility.BySemester(subjects, history), nil
}

// Check evaluates a single subject for the student.
func (s *CatalogService) Check(ctx context.Context, studentID, subjectID string) (*models.EligibilityResult, error) {
	subjects, err := s.subjects.FindByIDs(ctx, []string{subjectID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if len(subjects) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
	}

	history, err := s.history.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load history")
	}

	result := eligibility.Evaluate(subjects[0], history)
	if s.metrics != nil {
		s.metrics.RecordEvaluation(string(result.Category))
	}
	return &result, nil
}

func (s *CatalogService) load(ctx context.Context, studentID string) ([]models.Subject, []models.HistoryEntry, error) {
	subjects, err := s.subjects.ListAll(ctx)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load catalog")
	}
	history, err := s.history.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load history")
	}
	return subjects, history, nil
}

// inProgressSubjects resolves the subjects the student is currently taking.
func (s *CatalogService) inProgressSubjects(ctx context.Context, history []models.HistoryEntry) ([]models.Subject, error) {
	ids := eligibility.InProgressIDs(history)
	if len(ids) == 0 {
		return []models.Subject{}, nil
	}
	subjects, err := s.subjects.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load in-progress subjects")
	}
	return subjects, nil
}

func (s *CatalogService) recordEvaluations(annotated []models.AnnotatedSubject) {
	if s.metrics == nil {
		return
	}
	for _, subject := range annotated {
		switch {
		case subject.Eligible:
			s.metrics.RecordEvaluation(string(models.CategoryEligible))
		case subject.IsApproved || subject.IsInProcess:
			s.metrics.RecordEvaluation(string(models.CategoryAlreadyProcessed))
		default:
			s.metrics.RecordEvaluation(string(models.CategoryPrerequisitesPending))
		}
	}
}
