package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uniplan/enrollment-api/internal/models"
)

// HistoryRepository persists a student's per-subject history entries.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository creates a new repository instance.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

type historyRow struct {
	ID             string               `db:"id"`
	StudentID      string               `db:"student_id"`
	SubjectID      string               `db:"subject_id"`
	Status         models.HistoryStatus `db:"status"`
	Semester       int                  `db:"semester"`
	CreditsEarned  int                  `db:"credits_earned"`
	CreatedAt      time.Time            `db:"created_at"`
	UpdatedAt      time.Time            `db:"updated_at"`
	SubjectName    *string              `db:"subject_name"`
	SubjectCode    *string              `db:"subject_code"`
	SubjectCredits *int                 `db:"subject_credits"`
}

func (row historyRow) toEntry() models.HistoryEntry {
	entry := models.HistoryEntry{
		ID:            row.ID,
		StudentID:     row.StudentID,
		SubjectID:     row.SubjectID,
		Status:        row.Status,
		Semester:      row.Semester,
		CreditsEarned: row.CreditsEarned,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if row.SubjectName != nil {
		subject := &models.Subject{ID: row.SubjectID, Name: *row.SubjectName}
		if row.SubjectCode != nil {
			subject.Code = *row.SubjectCode
		}
		if row.SubjectCredits != nil {
			subject.Credits = *row.SubjectCredits
		}
		entry.Subject = subject
	}
	return entry
}

const historySelect = `SELECT h.id, h.student_id, h.subject_id, h.status, h.semester, h.credits_earned, h.created_at, h.updated_at,
	s.name AS subject_name, s.code AS subject_code, s.credits AS subject_credits
	FROM history_entries h
	LEFT JOIN subjects s ON s.id = h.subject_id`

// ListByStudent returns the student's full history with resolved subject
// references, oldest entries first.
func (r *HistoryRepository) ListByStudent(ctx context.Context, studentID string) ([]models.HistoryEntry, error) {
	query := historySelect + ` WHERE h.student_id = $1 ORDER BY h.created_at ASC, h.id ASC`
	var rows []historyRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	entries := make([]models.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toEntry())
	}
	return entries, nil
}

// FindByID returns one history entry with its resolved subject.
func (r *HistoryRepository) FindByID(ctx context.Context, id string) (*models.HistoryEntry, error) {
	query := historySelect + ` WHERE h.id = $1`
	var row historyRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	entry := row.toEntry()
	return &entry, nil
}

// Create inserts a single history entry.
func (r *HistoryRepository) Create(ctx context.Context, entry *models.HistoryEntry) error {
	prepareEntry(entry)
	const query = `INSERT INTO history_entries (id, student_id, subject_id, status, semester, credits_earned, created_at, updated_at)
		VALUES (:id, :student_id, :subject_id, :status, :semester, :credits_earned, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create history entry: %w", err)
	}
	return nil
}

// CreateBatch inserts the entries in one transaction and returns how many were
// actually added. The UNIQUE (student_id, subject_id) constraint turns a
// concurrent double-confirmation into a no-op instead of a duplicate row.
func (r *HistoryRepository) CreateBatch(ctx context.Context, entries []models.HistoryEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin history batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO history_entries (id, student_id, subject_id, status, semester, credits_earned, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (student_id, subject_id) DO NOTHING`

	added := 0
	for i := range entries {
		prepareEntry(&entries[i])
		res, err := tx.ExecContext(ctx, query,
			entries[i].ID, entries[i].StudentID, entries[i].SubjectID, entries[i].Status,
			entries[i].Semester, entries[i].CreditsEarned, entries[i].CreatedAt, entries[i].UpdatedAt)
		if err != nil {
			return 0, fmt.Errorf("insert history entry: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			added += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit history batch: %w", err)
	}
	return added, nil
}

// UpdateStatus sets a new status and the recomputed earned credits.
func (r *HistoryRepository) UpdateStatus(ctx context.Context, id string, status models.HistoryStatus, creditsEarned int) error {
	const query = `UPDATE history_entries SET status = $1, credits_earned = $2, updated_at = $3 WHERE id = $4`
	if _, err := r.db.ExecContext(ctx, query, status, creditsEarned, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update history status: %w", err)
	}
	return nil
}

func prepareEntry(entry *models.HistoryEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
}
