// Package ledger holds the pure fee-reconciliation core: monthly fee
// generation, payment allocation and summary aggregation are all plain
// functions over in-memory snapshots, invoked by services and by the
// scheduler adapter. Nothing here touches the database or the clock.
package ledger

import (
	"time"

	"github.com/pahal-edu/pahal-api/internal/models"
)

// BillingDay is the nominal due day of a billing month. Months with fewer
// days (February) clamp to their actual last day.
const BillingDay = 30

// BillingRates are the flat monthly amounts in whole rupees.
type BillingRates struct {
	Base          int64
	Transport     int64
	Accommodation int64
}

// Period identifies one calendar billing month.
type Period struct {
	Year  int
	Month time.Month
}

// PreviousPeriod returns the billing period for the month before now,
// evaluated in the given location.
func PreviousPeriod(now time.Time, loc *time.Location) Period {
	if loc != nil {
		now = now.In(loc)
	}
	prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return Period{Year: prev.Year(), Month: prev.Month()}
}

// DueDate returns the period's due date: day 30, or the month's actual
// last day when the month is shorter. The result is a UTC midnight date
// suitable for a DATE column.
func (p Period) DueDate() time.Time {
	lastDay := time.Date(p.Year, p.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	day := BillingDay
	if lastDay < day {
		day = lastDay
	}
	return time.Date(p.Year, p.Month, day, 0, 0, 0, 0, time.UTC)
}

// FeeAmount computes a student's monthly fee from the current flags.
func FeeAmount(student models.Student, rates BillingRates) int64 {
	amount := rates.Base
	if student.Transport {
		amount += rates.Transport
	}
	if student.Accommodation {
		amount += rates.Accommodation
	}
	return amount
}

// FeeWrite is one pending mutation produced by generation.
type FeeWrite struct {
	Create bool
	Fee    models.Fee
}

// BuildFeesForPeriod produces the writes needed so that every student has
// exactly one fee row for the period. existing is keyed by student id and
// holds the rows already present for the period's due date.
//
// A student with no existing row gets a create. An existing row whose flag
// snapshot no longer matches the student gets an in-place update with the
// recomputed amount; status and payment date are left alone. An existing
// row with a matching snapshot produces no write, which is what makes
// re-running generation for the same period safe.
func BuildFeesForPeriod(students []models.Student, existing map[string]models.Fee, period Period, rates BillingRates) []FeeWrite {
	dueDate := period.DueDate()
	writes := make([]FeeWrite, 0, len(students))

	for _, student := range students {
		amount := FeeAmount(student, rates)

		current, ok := existing[student.ID]
		if !ok {
			writes = append(writes, FeeWrite{
				Create: true,
				Fee: models.Fee{
					StudentID:     student.ID,
					Amount:        amount,
					DueDate:       dueDate,
					Status:        models.FeeStatusPending,
					Transport:     student.Transport,
					Accommodation: student.Accommodation,
				},
			})
			continue
		}

		if current.Transport == student.Transport && current.Accommodation == student.Accommodation {
			continue
		}

		updated := current
		updated.Amount = amount
		updated.Transport = student.Transport
		updated.Accommodation = student.Accommodation
		writes = append(writes, FeeWrite{Fee: updated})
	}

	return writes
}

// FeeAllocation is the reconciled state of one fee row.
type FeeAllocation struct {
	FeeID       string
	Status      models.FeeStatus
	PaymentDate *time.Time
}

// Changed reports whether applying the allocation would modify the row.
func (a FeeAllocation) Changed(fee models.Fee) bool {
	if fee.Status != a.Status {
		return true
	}
	if (fee.PaymentDate == nil) != (a.PaymentDate == nil) {
		return true
	}
	if fee.PaymentDate != nil && a.PaymentDate != nil && !fee.PaymentDate.Equal(*a.PaymentDate) {
		return true
	}
	return false
}

// AllocateFees derives each fee's status from the parent's total payment
// history. fees must already be in allocation order (due date ascending).
// The marked-Paid set is exactly the prefix whose cumulative amount fits
// within totalPaid; each fee is settled atomically, never split. Because
// the result depends only on the totals, recomputing after any insertion
// or deletion of payments yields the correct state without incremental
// bookkeeping.
func AllocateFees(fees []models.Fee, totalPaid int64, paidAt *time.Time) []FeeAllocation {
	allocations := make([]FeeAllocation, 0, len(fees))
	remaining := totalPaid

	for _, fee := range fees {
		if remaining >= fee.Amount {
			remaining -= fee.Amount
			allocations = append(allocations, FeeAllocation{
				FeeID:       fee.ID,
				Status:      models.FeeStatusPaid,
				PaymentDate: paidAt,
			})
			continue
		}
		allocations = append(allocations, FeeAllocation{
			FeeID:  fee.ID,
			Status: models.FeeStatusPending,
		})
	}

	return allocations
}

// BuildMonthlySummary aggregates owed-versus-paid per parent over a fee and
// payment snapshot. currentDueDate selects the period counted as "current
// month" for the reminder total.
func BuildMonthlySummary(fees []models.FeeDetail, payments []models.Payment, currentDueDate time.Time, now time.Time) models.MonthlySummary {
	type bucket struct {
		fees     int64
		payments int64
	}
	parents := make(map[string]*bucket)
	order := make([]string, 0)

	get := func(parentID string) *bucket {
		b, ok := parents[parentID]
		if !ok {
			b = &bucket{}
			parents[parentID] = b
			order = append(order, parentID)
		}
		return b
	}

	var totalCurrentMonth int64
	for _, fee := range fees {
		get(fee.ParentID).fees += fee.Amount
		if fee.DueDate.Equal(currentDueDate) {
			totalCurrentMonth += fee.Amount
		}
	}
	for _, payment := range payments {
		get(payment.ParentID).payments += payment.AmountPaid
	}

	summary := models.MonthlySummary{
		TotalFeesCurrentMonth: totalCurrentMonth,
		Parents:               make([]models.ParentBalance, 0, len(order)),
		GeneratedAt:           now,
	}
	for _, parentID := range order {
		b := parents[parentID]
		due := b.fees - b.payments
		if due > 0 {
			summary.TotalUnpaidFees += due
		}
		summary.Parents = append(summary.Parents, models.ParentBalance{
			ParentID:      parentID,
			TotalFees:     b.fees,
			TotalPayments: b.payments,
			Due:           due,
		})
	}
	return summary
}
