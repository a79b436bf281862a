package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniplan/enrollment-api/internal/middleware"
	"github.com/uniplan/enrollment-api/internal/models"
	"github.com/uniplan/enrollment-api/internal/service"
)

type fakeSelectionHistory struct {
	entries      []models.HistoryEntry
	batchEntries []models.HistoryEntry
}

func (f *fakeSelectionHistory) ListByStudent(context.Context, string) ([]models.HistoryEntry, error) {
	return f.entries, nil
}

func (f *fakeSelectionHistory) CreateBatch(_ context.Context, entries []models.HistoryEntry) (int, error) {
	f.batchEntries = entries
	return len(entries), nil
}

type fakeSelectionSubjects struct {
	subjects map[string]models.Subject
}

func (f *fakeSelectionSubjects) FindByIDs(_ context.Context, ids []string) ([]models.Subject, error) {
	seen := map[string]bool{}
	var out []models.Subject
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if s, ok := f.subjects[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func newSelectionHandler(history *fakeSelectionHistory, subjects *fakeSelectionSubjects) *SelectionHandler {
	svc := service.NewSelectionService(history, subjects, nil, nil)
	return NewSelectionHandler(svc)
}

func postSelection(handler func(*gin.Context), claims *models.JWTClaims, body string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/selection", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	handler(c)
	return rec
}

func TestSelectionHandlerProposeRequiresAuth(t *testing.T) {
	handler := newSelectionHandler(&fakeSelectionHistory{}, &fakeSelectionSubjects{})

	rec := postSelection(handler.Propose, nil, `{"subject_ids":["alg"]}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSelectionHandlerProposeRejectsBadPayload(t *testing.T) {
	handler := newSelectionHandler(&fakeSelectionHistory{}, &fakeSelectionSubjects{})

	rec := postSelection(handler.Propose, &models.JWTClaims{UserID: "stu-1"}, `{"subject_ids":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSelectionHandlerProposeSuccess(t *testing.T) {
	subjects := &fakeSelectionSubjects{subjects: map[string]models.Subject{
		"alg": {ID: "alg", Code: "ALG101", Name: "Algebra", Credits: 5, Semester: 1},
	}}
	handler := newSelectionHandler(&fakeSelectionHistory{}, subjects)

	rec := postSelection(handler.Propose, &models.JWTClaims{UserID: "stu-1"}, `{"subject_ids":["alg"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data models.SelectionSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 5, envelope.Data.NewCredits)
	require.Len(t, envelope.Data.Selected, 1)
	assert.Equal(t, "ALG101", envelope.Data.Selected[0].Code)
}

func TestSelectionHandlerConfirmSuccess(t *testing.T) {
	history := &fakeSelectionHistory{}
	subjects := &fakeSelectionSubjects{subjects: map[string]models.Subject{
		"alg": {ID: "alg", Code: "ALG101", Name: "Algebra", Credits: 5, Semester: 1},
	}}
	handler := newSelectionHandler(history, subjects)

	rec := postSelection(handler.Confirm, &models.JWTClaims{UserID: "stu-1"}, `{"subject_ids":["alg"]}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var envelope struct {
		Data models.ConfirmationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 1, envelope.Data.AddedCount)
	require.Len(t, history.batchEntries, 1)
	assert.Equal(t, "stu-1", history.batchEntries[0].StudentID)
}

func TestSelectionHandlerConfirmEmptySelection(t *testing.T) {
	handler := newSelectionHandler(&fakeSelectionHistory{}, &fakeSelectionSubjects{})

	rec := postSelection(handler.Confirm, &models.JWTClaims{UserID: "stu-1"}, `{"subject_ids":[]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
