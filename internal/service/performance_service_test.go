package service

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pahal-edu/pahal-api/internal/models"
	appErrors "github.com/pahal-edu/pahal-api/pkg/errors"
)

type mockPerformanceRepo struct {
	results map[string]models.Performance
}

func (m *mockPerformanceRepo) Create(ctx context.Context, perf *models.Performance) error {
	if m.results == nil {
		m.results = make(map[string]models.Performance)
	}
	if perf.ID == "" {
		perf.ID = "perf-1"
	}
	m.results[perf.ID] = *perf
	return nil
}

func (m *mockPerformanceRepo) List(ctx context.Context) ([]models.PerformanceDetail, error) {
	var out []models.PerformanceDetail
	for _, perf := range m.results {
		out = append(out, models.PerformanceDetail{Performance: perf})
	}
	return out, nil
}

func (m *mockPerformanceRepo) ListByStudent(ctx context.Context, studentID string) ([]models.PerformanceDetail, error) {
	var out []models.PerformanceDetail
	for _, perf := range m.results {
		if perf.StudentID == studentID {
			out = append(out, models.PerformanceDetail{Performance: perf})
		}
	}
	return out, nil
}

func (m *mockPerformanceRepo) FindByID(ctx context.Context, id string) (*models.PerformanceDetail, error) {
	if perf, ok := m.results[id]; ok {
		return &models.PerformanceDetail{Performance: perf}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPerformanceRepo) UpdateMarks(ctx context.Context, id string, marks int) error {
	perf, ok := m.results[id]
	if !ok {
		return sql.ErrNoRows
	}
	perf.Marks = marks
	m.results[id] = perf
	return nil
}

func (m *mockPerformanceRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.results[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.results, id)
	return nil
}

// An omitted subject gets the combined weekly test label and the test
// date is server-set, never caller-supplied.
func TestPerformanceServiceRecordDefaults(t *testing.T) {
	repo := &mockPerformanceRepo{}
	students := &mockStudentRepo{students: []models.Student{{ID: "s1", Name: "Asha"}}}
	svc := NewPerformanceService(repo, students, nil, nil)
	testDay := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return testDay }

	perf, err := svc.Record(context.Background(), RecordPerformanceRequest{StudentID: "s1", Marks: 87})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultTestSubject, perf.Subject)
	assert.True(t, perf.TestDate.Equal(testDay))
	assert.Equal(t, 87, perf.Marks)
}

func TestPerformanceServiceRecordRejectsMarksOutOfRange(t *testing.T) {
	students := &mockStudentRepo{students: []models.Student{{ID: "s1"}}}
	svc := NewPerformanceService(&mockPerformanceRepo{}, students, nil, nil)

	_, err := svc.Record(context.Background(), RecordPerformanceRequest{StudentID: "s1", Marks: 150})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
}

func TestPerformanceServiceRecordUnknownStudent(t *testing.T) {
	svc := NewPerformanceService(&mockPerformanceRepo{}, &mockStudentRepo{}, nil, nil)

	_, err := svc.Record(context.Background(), RecordPerformanceRequest{StudentID: "ghost", Marks: 50})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestPerformanceServiceUpdateCorrectsMarks(t *testing.T) {
	repo := &mockPerformanceRepo{results: map[string]models.Performance{
		"perf-1": {ID: "perf-1", StudentID: "s1", Marks: 40, Subject: models.DefaultTestSubject},
	}}
	svc := NewPerformanceService(repo, &mockStudentRepo{}, nil, nil)

	detail, err := svc.Update(context.Background(), "perf-1", UpdatePerformanceRequest{Marks: 62})
	require.NoError(t, err)
	assert.Equal(t, 62, detail.Marks)
}

func TestPerformanceServiceUpdateMissing(t *testing.T) {
	svc := NewPerformanceService(&mockPerformanceRepo{}, &mockStudentRepo{}, nil, nil)

	_, err := svc.Update(context.Background(), "ghost", UpdatePerformanceRequest{Marks: 10})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}
