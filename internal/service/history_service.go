package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uniplan/enrollment-api/internal/eligibility"
	"github.com/uniplan/enrollment-api/internal/models"
	appErrors "github.com/uniplan/enrollment-api/pkg/errors"
)

type historyRepository interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.HistoryEntry, error)
	FindByID(ctx context.Context, id string) (*models.HistoryEntry, error)
	Create(ctx context.Context, entry *models.HistoryEntry) error
	UpdateStatus(ctx context.Context, id string, status models.HistoryStatus, creditsEarned int) error
}

type historySubjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// AddHistoryRequest records a subject directly into the student's history.
type AddHistoryRequest struct {
	SubjectID string `json:"subject_id" validate:"required"`
	Status    string `json:"status" validate:"required"`
}

// UpdateHistoryStatusRequest moves an entry to a new status.
type UpdateHistoryStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// HistoryService manages a student's academic record.
type HistoryService struct {
	repo      historyRepository
	subjects  historySubjectReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewHistoryService constructs a HistoryService.
func NewHistoryService(repo historyRepository, subjects historySubjectReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *HistoryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryService{repo: repo, subjects: subjects, cache: cache, validator: validate, logger: logger}
}

// View returns the student's history grouped by semester with total earned
// credits. Only approved entries contribute credits.
func (s *HistoryService) View(ctx context.Context, studentID string) (*models.HistoryView, error) {
	entries, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load history")
	}

	view := &models.HistoryView{BySemester: make(map[int][]models.HistoryEntry)}
	for _, entry := range entries {
		view.BySemester[entry.Semester] = append(view.BySemester[entry.Semester], entry)
		if entry.Status == models.StatusApproved {
			view.TotalCredits += entry.CreditsEarned
		}
	}
	for semester := range view.BySemester {
		view.Semesters = append(view.Semesters, semester)
	}
	sort.Ints(view.Semesters)
	return view, nil
}

// Add records a subject in the student's history after checking eligibility
// through the same evaluator used everywhere else. CreditsEarned is the
// subject's credit value only when the entry lands as approved.
func (s *HistoryService) Add(ctx context.Context, studentID string, req AddHistoryRequest) (*models.HistoryEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid history payload")
	}

	status := models.HistoryStatus(req.Status)
	if !models.ValidHistoryStatus(status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid history status")
	}

	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	history, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load history")
	}

	result := eligibility.Evaluate(*subject, history)
	if !result.Eligible {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("cannot add this subject: %s", strings.Join(result.Reasons, ", ")))
	}

	creditsEarned := 0
	if status == models.StatusApproved {
		creditsEarned = subject.Credits
	}

	entry := &models.HistoryEntry{
		StudentID:     studentID,
		SubjectID:     subject.ID,
		Status:        status,
		Semester:      subject.Semester,
		CreditsEarned: creditsEarned,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add history entry")
	}

	s.logger.Info("history entry added",
		zap.String("student_id", studentID),
		zap.String("subject", subject.Name),
		zap.String("status", string(status)))
	s.invalidateStudentCache(ctx, studentID)

	entry.Subject = subject
	return entry, nil
}

// UpdateStatus edits an entry's status. Approved entries are immutable:
// status transitions never move back from the terminal state.
func (s *HistoryService) UpdateStatus(ctx context.Context, studentID, entryID string, req UpdateHistoryStatusRequest) (*models.HistoryEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	status := models.HistoryStatus(req.Status)
	if !models.ValidHistoryStatus(status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid history status")
	}

	entry, err := s.repo.FindByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "history entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load history entry")
	}
	if entry.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "history entry not found")
	}
	if entry.Status == models.StatusApproved {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "approved subjects cannot be edited")
	}

	subject, err := s.subjects.FindByID(ctx, entry.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "associated subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	creditsEarned := 0
	if status == models.StatusApproved {
		creditsEarned = subject.Credits
	}
	if err := s.repo.UpdateStatus(ctx, entryID, status, creditsEarned); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update history status")
	}

	s.logger.Info("history status updated",
		zap.String("student_id", studentID),
		zap.String("subject", subject.Name),
		zap.String("status", string(status)))
	s.invalidateStudentCache(ctx, studentID)

	entry.Status = status
	entry.CreditsEarned = creditsEarned
	entry.Subject = subject
	return entry, nil
}

func (s *HistoryService) invalidateStudentCache(ctx context.Context, studentID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, fmt.Sprintf("catalog:student:%s", studentID))
}
