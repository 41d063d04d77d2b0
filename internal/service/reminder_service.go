package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pahal-edu/pahal-api/internal/ledger"
	"github.com/pahal-edu/pahal-api/internal/models"
	appErrors "github.com/pahal-edu/pahal-api/pkg/errors"
	"github.com/pahal-edu/pahal-api/pkg/sms"
)

type feeSnapshotReader interface {
	ListAllDetails(ctx context.Context) ([]models.FeeDetail, error)
}

// ReminderConfig tunes the due-fee reminder run.
type ReminderConfig struct {
	// MinDueAmount is the threshold below which a parent is not texted.
	// Small residual balances are not worth an SMS.
	MinDueAmount  int64
	CountryPrefix string
}

// ReminderRunResult reports one reminder dispatch cycle.
type ReminderRunResult struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ReminderService texts parents whose outstanding balance crosses the
// configured threshold. Messages go out in Hindi, the language the
// school's families use.
type ReminderService struct {
	fees     feeSnapshotReader
	payments paymentReader
	parents  parentReader
	sender   sms.Sender
	metrics  *MetricsService
	config   ReminderConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewReminderService constructs the reminder service.
func NewReminderService(fees feeSnapshotReader, payments paymentReader, parents parentReader, sender sms.Sender, metrics *MetricsService, config ReminderConfig, logger *zap.Logger) *ReminderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderService{
		fees:     fees,
		payments: payments,
		parents:  parents,
		sender:   sender,
		metrics:  metrics,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// SendDueReminders texts every parent owing at least the threshold. One
// parent's failure is logged and counted without stopping the run.
func (s *ReminderService) SendDueReminders(ctx context.Context) (*ReminderRunResult, error) {
	if s.sender == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "sms sender is not configured")
	}

	fees, err := s.fees.ListAllDetails(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fees")
	}
	payments, err := s.payments.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}

	summary := ledger.BuildMonthlySummary(fees, payments, time.Time{}, s.now().UTC())

	result := &ReminderRunResult{}
	for _, balance := range summary.Parents {
		if balance.Due < s.config.MinDueAmount {
			result.Skipped++
			s.record("skipped")
			continue
		}
		if err := s.remind(ctx, balance.ParentID, balance.Due); err != nil {
			result.Failed++
			s.record("failed")
			s.logger.Error("reminder failed", zap.String("parent_id", balance.ParentID), zap.Error(err))
			continue
		}
		result.Sent++
		s.record("sent")
	}

	s.logger.Info("reminder cycle finished",
		zap.Int("sent", result.Sent),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
	return result, nil
}

// SendReminderToParent texts one parent regardless of the threshold, for
// manual follow-ups from the office.
func (s *ReminderService) SendReminderToParent(ctx context.Context, parentID string, due int64) error {
	if s.sender == nil {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "sms sender is not configured")
	}
	if err := s.remind(ctx, parentID, due); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "parent not found")
		}
		s.record("failed")
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send reminder")
	}
	s.record("sent")
	return nil
}

func (s *ReminderService) remind(ctx context.Context, parentID string, due int64) error {
	parent, err := s.parents.FindByID(ctx, parentID)
	if err != nil {
		return err
	}
	to := normalizePhone(parent.Phone, s.config.CountryPrefix)
	body := reminderMessage(parent.Name, due)

	messageID, err := s.sender.Send(ctx, to, body)
	if err != nil {
		return err
	}
	s.logger.Info("reminder sent",
		zap.String("parent_id", parent.ID),
		zap.Int64("due", due),
		zap.String("message_id", messageID))
	return nil
}

func (s *ReminderService) record(result string) {
	if s.metrics != nil {
		s.metrics.RecordReminder(result)
	}
}

// reminderMessage composes the Hindi SMS body sent to families.
func reminderMessage(parentName string, due int64) string {
	return fmt.Sprintf("प्रिय %s, आपके बच्चों की स्कूल फीस ₹%d बकाया है। कृपया शीघ्र भुगतान करें। धन्यवाद - पहल स्कूल", parentName, due)
}

// normalizePhone ensures the number carries the country prefix the SMS
// gateway expects.
func normalizePhone(phone, prefix string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" || strings.HasPrefix(phone, "+") {
		return phone
	}
	return prefix + phone
}
