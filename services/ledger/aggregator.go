package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"examportal/database"
	"examportal/models"

	"github.com/shopspring/decimal"
)

// Reporting reads run without locks against whatever the ledger holds at
// query time; they are eventually consistent by design. The wallet balance
// itself never goes through this path.

const financialReportTTL = 5 * time.Minute

// TypeStats aggregates completed transactions of one type
type TypeStats struct {
	Count         int64           `json:"count"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	AverageAmount decimal.Decimal `json:"averageAmount"`
}

// StatsByType groups a user's completed transactions by type over a period
func StatsByType(userID uint, from, to *time.Time) (map[models.TransactionType]TypeStats, error) {
	query := database.Database.Db.Model(&models.Transaction{}).
		Where("user_id = ? AND status = ? AND is_deleted = false", userID, models.TransactionStatusCompleted)
	if from != nil {
		query = query.Where("transaction_date >= ?", *from)
	}
	if to != nil {
		query = query.Where("transaction_date < ?", *to)
	}

	var rows []struct {
		Type  models.TransactionType
		Count int64
		Total decimal.Decimal
	}
	if err := query.
		Select("type, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
		Group("type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	stats := make(map[models.TransactionType]TypeStats, len(rows))
	for _, row := range rows {
		avg := decimal.Zero
		if row.Count > 0 {
			avg = row.Total.DivRound(decimal.NewFromInt(row.Count), 2)
		}
		stats[row.Type] = TypeStats{
			Count:         row.Count,
			TotalAmount:   row.Total,
			AverageAmount: avg,
		}
	}
	return stats, nil
}

// ReferralSummary aggregates the referral bonuses a referrer has earned
type ReferralSummary struct {
	TotalReferrals int64           `json:"totalReferrals"`
	TotalEarnings  decimal.Decimal `json:"totalEarnings"`
	AverageBonus   decimal.Decimal `json:"averageBonus"`
}

// ReferralStats sums completed referral-bonus credits where the user is the
// referrer (bonus rows belong to the referrer's wallet).
func ReferralStats(userID uint) (*ReferralSummary, error) {
	var row struct {
		Count int64
		Total decimal.Decimal
	}
	err := database.Database.Db.Model(&models.Transaction{}).
		Select("COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
		Where("user_id = ? AND type = ? AND status = ? AND is_deleted = false",
			userID, models.TransactionTypeReferralBonus, models.TransactionStatusCompleted).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	summary := &ReferralSummary{
		TotalReferrals: row.Count,
		TotalEarnings:  row.Total,
		AverageBonus:   decimal.Zero,
	}
	if row.Count > 0 {
		summary.AverageBonus = row.Total.DivRound(decimal.NewFromInt(row.Count), 2)
	}
	return summary, nil
}

// DirectionTotals splits one side of a report cell
type DirectionTotals struct {
	Count int64           `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// FinancialReportRow is one period/type cell of the platform report
type FinancialReportRow struct {
	Period  string                 `json:"period"` // YYYY-MM
	Type    models.TransactionType `json:"type"`
	Credits DirectionTotals        `json:"credits"`
	Debits  DirectionTotals        `json:"debits"`
}

// FinancialReport is the platform-wide per-type per-month breakdown
type FinancialReport struct {
	StartDate   time.Time            `json:"startDate"`
	EndDate     time.Time            `json:"endDate"`
	GeneratedAt time.Time            `json:"generatedAt"`
	Rows        []FinancialReportRow `json:"rows"`
}

// BuildFinancialReport computes per-type per-month credit/debit totals over
// completed transactions in [start, end). Results are cached in redis for a
// short TTL when a client is configured; cache failures fall through to the
// query.
func BuildFinancialReport(start, end time.Time) (*FinancialReport, error) {
	cacheKey := fmt.Sprintf("reports:financial:%d:%d", start.Unix(), end.Unix())

	if database.RedisClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		cached, err := database.RedisClient.Get(ctx, cacheKey).Bytes()
		cancel()
		if err == nil {
			var report FinancialReport
			if json.Unmarshal(cached, &report) == nil {
				return &report, nil
			}
		}
	}

	var rows []struct {
		Type            models.TransactionType
		Direction       models.TransactionDirection
		Amount          decimal.Decimal
		TransactionDate time.Time
	}
	err := database.Database.Db.Model(&models.Transaction{}).
		Select("type, direction, amount, transaction_date").
		Where("status = ? AND is_deleted = false", models.TransactionStatusCompleted).
		Where("transaction_date >= ? AND transaction_date < ?", start, end).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	type cellKey struct {
		period string
		typ    models.TransactionType
	}
	cells := make(map[cellKey]*FinancialReportRow)
	for _, row := range rows {
		key := cellKey{period: row.TransactionDate.Format("2006-01"), typ: row.Type}
		cell, ok := cells[key]
		if !ok {
			cell = &FinancialReportRow{Period: key.period, Type: key.typ}
			cells[key] = cell
		}
		if row.Direction == models.DirectionCredit {
			cell.Credits.Count++
			cell.Credits.Total = cell.Credits.Total.Add(row.Amount)
		} else {
			cell.Debits.Count++
			cell.Debits.Total = cell.Debits.Total.Add(row.Amount)
		}
	}

	report := &FinancialReport{
		StartDate:   start,
		EndDate:     end,
		GeneratedAt: time.Now().UTC(),
		Rows:        make([]FinancialReportRow, 0, len(cells)),
	}
	for _, cell := range cells {
		report.Rows = append(report.Rows, *cell)
	}
	sort.Slice(report.Rows, func(i, j int) bool {
		if report.Rows[i].Period != report.Rows[j].Period {
			return report.Rows[i].Period < report.Rows[j].Period
		}
		return report.Rows[i].Type < report.Rows[j].Type
	})

	if database.RedisClient != nil {
		if raw, err := json.Marshal(report); err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := database.RedisClient.Set(ctx, cacheKey, raw, financialReportTTL).Err(); err != nil {
				log.Printf("[REPORTS] Failed to cache financial report: %v", err)
			}
			cancel()
		}
	}
	return report, nil
}
