package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pahal-edu/pahal-api/internal/models"
)

type mockSMSSender struct {
	sent []struct{ To, Body string }
	err  error
}

func (m *mockSMSSender) Send(ctx context.Context, to, body string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, struct{ To, Body string }{to, body})
	return "SM123", nil
}

type mockFeeSnapshot struct {
	fees []models.FeeDetail
}

func (m *mockFeeSnapshot) ListAllDetails(ctx context.Context) ([]models.FeeDetail, error) {
	return m.fees, nil
}

func TestReminderServiceThreshold(t *testing.T) {
	dueDate := time.Date(2026, time.July, 30, 0, 0, 0, 0, time.UTC)
	fees := &mockFeeSnapshot{fees: []models.FeeDetail{
		{Fee: models.Fee{ID: "f1", Amount: 1200, DueDate: dueDate}, ParentID: "p1"},
		{Fee: models.Fee{ID: "f2", Amount: 600, DueDate: dueDate}, ParentID: "p2"},
	}}
	payments := &mockPaymentHistory{payments: []models.Payment{
		// p2 has paid down to a residual below the threshold.
		{ID: "pay1", ParentID: "p2", AmountPaid: 200},
	}}
	parents := &mockParentRepo{parents: map[string]models.Parent{
		"p1": {ID: "p1", Name: "Ravi", Phone: "9876500001"},
		"p2": {ID: "p2", Name: "Meena", Phone: "+919876500002"},
	}}
	sender := &mockSMSSender{}

	svc := NewReminderService(fees, payments, parents, sender, nil, ReminderConfig{MinDueAmount: 500, CountryPrefix: "+91"}, zap.NewNop())

	result, err := svc.SendDueReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Failed)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "+919876500001", sender.sent[0].To, "country prefix is added to bare numbers")
	assert.Contains(t, sender.sent[0].Body, "Ravi")
	assert.Contains(t, sender.sent[0].Body, "1200")
}

func TestReminderServiceWithoutSender(t *testing.T) {
	svc := NewReminderService(&mockFeeSnapshot{}, &mockPaymentHistory{}, &mockParentRepo{}, nil, nil, ReminderConfig{}, zap.NewNop())

	_, err := svc.SendDueReminders(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "not configured"))
}

func TestReminderServiceManualSend(t *testing.T) {
	parents := &mockParentRepo{parents: map[string]models.Parent{
		"p1": {ID: "p1", Name: "Ravi", Phone: "9876500001"},
	}}
	sender := &mockSMSSender{}
	svc := NewReminderService(&mockFeeSnapshot{}, &mockPaymentHistory{}, parents, sender, nil, ReminderConfig{MinDueAmount: 500, CountryPrefix: "+91"}, zap.NewNop())

	// Manual sends ignore the threshold.
	require.NoError(t, svc.SendReminderToParent(context.Background(), "p1", 100))
	require.Len(t, sender.sent, 1)

	err := svc.SendReminderToParent(context.Background(), "ghost", 100)
	require.Error(t, err)
}
