package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/uniplan/enrollment-api/internal/eligibility"
	"github.com/uniplan/enrollment-api/internal/models"
	"github.com/uniplan/enrollment-api/internal/timeslot"
	appErrors "github.com/uniplan/enrollment-api/pkg/errors"
)

type selectionHistoryRepository interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.HistoryEntry, error)
	CreateBatch(ctx context.Context, entries []models.HistoryEntry) (int, error)
}

type selectionSubjectReader interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Subject, error)
}

// SelectionService walks a student through enrollment: propose a candidate
// subject set, review load and schedule conflicts, then confirm. Conflicts
// are advisory and never block confirmation; eligibility is re-checked at
// both steps since time may pass between them.
type SelectionService struct {
	history  selectionHistoryRepository
	subjects selectionSubjectReader
	cache    *CacheService
	logger   *zap.Logger
}

// NewSelectionService constructs a SelectionService.
func NewSelectionService(history selectionHistoryRepository, subjects selectionSubjectReader, cache *CacheService, logger *zap.Logger) *SelectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SelectionService{history: history, subjects: subjects, cache: cache, logger: logger}
}

// Propose validates a candidate subject set and computes its load and
// schedule conflicts. Candidates already present in the history in any
// recognized status are rejected from the set; the rest go through the
// conflict detector both alone and merged with the in-progress subjects.
func (s *SelectionService) Propose(ctx context.Context, studentID string, subjectIDs []string) (*models.SelectionSummary, error) {
	history, err := s.history.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load history")
	}

	inProgress, err := s.resolveInProgress(ctx, history)
	if err != nil {
		return nil, err
	}

	processed := eligibility.ProcessedSet(history)

	var selected []models.Subject
	var rejected []string
	if len(subjectIDs) > 0 {
		resolved, err := s.subjects.FindByIDs(ctx, subjectIDs)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve subjects")
		}
		for _, subject := range resolved {
			if _, taken := processed[eligibility.SubjectKey(subject)]; taken {
				rejected = append(rejected, subject.Name)
				continue
			}
			selected = append(selected, subject)
		}
	}

	newCredits := 0
	for _, subject := range selected {
		newCredits += subject.Credits
	}
	totalLoad := newCredits
	for _, subject := range inProgress {
		totalLoad += subject.Credits
	}

	conflicts := timeslot.DetectConflicts(selected)
	all := append(append([]models.Subject{}, inProgress...), selected...)
	globalConflicts := timeslot.DetectConflicts(all)

	summary := &models.SelectionSummary{
		Selected:        selected,
		Rejected:        rejected,
		InProgress:      inProgress,
		NewCredits:      newCredits,
		TotalLoad:       totalLoad,
		Conflicts:       conflicts,
		GlobalConflicts: globalConflicts,
	}

	switch {
	case len(selected) > 0:
		summary.Message = fmt.Sprintf("Selection accepted. New load: %d credits. Total load: %d credits.", newCredits, totalLoad)
		if len(globalConflicts) > 0 {
			summary.Message += " The proposed timetable has schedule conflicts."
		}
		names := make([]string, 0, len(selected))
		for _, subject := range selected {
			names = append(names, subject.Name)
		}
		s.logger.Info("selection proposed", zap.String("student_id", studentID), zap.Strings("subjects", names))
	case len(subjectIDs) > 0:
		summary.Message = "The selected subjects are not valid or already appear in your history."
	}

	return summary, nil
}

// Confirm commits the proposed subject set as in_progress history entries.
// The whole operation fails without partial writes when a requested subject
// no longer exists; subjects that entered the history since the proposal are
// skipped, and confirming only already-present subjects is rejected.
func (s *SelectionService) Confirm(ctx context.Context, studentID string, subjectIDs []string) (*models.ConfirmationResult, error) {
	if len(subjectIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoCandidates, "")
	}

	resolved, err := s.subjects.FindByIDs(ctx, subjectIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve subjects")
	}
	if len(resolved) != len(uniqueIDs(subjectIDs)) {
		return nil, appErrors.Clone(appErrors.ErrUnknownSubjects, "")
	}

	history, err := s.history.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load history")
	}

	existing := make(map[string]struct{}, len(history))
	for _, entry := range history {
		existing[eligibility.SubjectKey(entry)] = struct{}{}
	}

	var entries []models.HistoryEntry
	var added, skipped []string
	for _, subject := range resolved {
		if _, ok := existing[eligibility.SubjectKey(subject)]; ok {
			skipped = append(skipped, subject.Name)
			continue
		}
		entries = append(entries, models.HistoryEntry{
			StudentID:     studentID,
			SubjectID:     subject.ID,
			Status:        models.StatusInProgress,
			Semester:      subject.Semester,
			CreditsEarned: 0,
		})
		added = append(added, subject.Name)
	}

	if len(entries) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNothingToAdd, "")
	}

	addedCount, err := s.history.CreateBatch(ctx, entries)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record enrollment")
	}
	if addedCount == 0 {
		// Everything raced into existence between the check and the insert.
		return nil, appErrors.Clone(appErrors.ErrNothingToAdd, "")
	}

	s.logger.Info("enrollment confirmed",
		zap.String("student_id", studentID),
		zap.Int("added", addedCount),
		zap.Strings("subjects", added))
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, fmt.Sprintf("catalog:student:%s", studentID))
	}

	return &models.ConfirmationResult{
		AddedCount:    addedCount,
		AddedSubjects: added,
		Skipped:       skipped,
		Message:       fmt.Sprintf("Successfully enrolled in %d subject(s).", addedCount),
	}, nil
}

func (s *SelectionService) resolveInProgress(ctx context.Context, history []models.HistoryEntry) ([]models.Subject, error) {
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

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
