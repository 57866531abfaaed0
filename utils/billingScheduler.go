package utils

import (
	"errors"
	"fmt"
	"log"
	"time"

	"examportal/config"
	"examportal/database"
	"examportal/models"
	"examportal/services/ledger"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// stalePendingAge is how long a PENDING row may wait for gateway confirmation
// before the sweeper cancels it.
const stalePendingAge = 24 * time.Hour

// InitializeBillingScheduler sets up the recurring billing jobs
func InitializeBillingScheduler() {
	log.Println("[BILLING-SCHEDULER] Initializing billing scheduler...")

	c := cron.New()

	// Run daily at 2 AM to bill due subscriptions
	c.AddFunc("0 2 * * *", func() {
		log.Println("[BILLING-SCHEDULER] Running daily subscription billing...")
		ProcessDueSubscriptions()
	})

	// Sweep stale pending transactions hourly
	c.AddFunc("@hourly", func() {
		ExpireStalePending()
	})

	c.Start()
	log.Println("[BILLING-SCHEDULER] Billing scheduler started - subscriptions daily at 2 AM, pending sweep hourly")
}

// ProcessDueSubscriptions debits every active subscription whose billing date
// has passed. Each debit is an independent wallet mutation: one user's
// insufficient balance suspends only that subscription.
func ProcessDueSubscriptions() {
	db := database.Database.Db
	now := time.Now()

	var due []models.Subscription
	if err := db.
		Where("status = ? AND is_deleted = false AND next_billing_at <= ?", models.SubscriptionActive, now).
		Find(&due).Error; err != nil {
		log.Printf("[BILLING-SCHEDULER] Error fetching due subscriptions: %v", err)
		return
	}

	log.Printf("[BILLING-SCHEDULER] Found %d subscriptions due for billing", len(due))

	for _, sub := range due {
		_, err := ledger.ApplyMutation(ledger.MutationInput{
			UserID:      sub.UserID,
			Type:        models.TransactionTypeSubscription,
			Direction:   models.DirectionDebit,
			Amount:      sub.Price,
			Description: "Subscription renewal: " + sub.Plan,
			Metadata:    map[string]any{"subscriptionId": sub.ID, "plan": sub.Plan, "period": sub.Period},
			Actor:       "billing-scheduler",
		})
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			sub.Status = models.SubscriptionSuspended
			if saveErr := db.Save(&sub).Error; saveErr != nil {
				log.Printf("[BILLING-SCHEDULER] Failed to suspend subscription %d: %v", sub.ID, saveErr)
				continue
			}
			notifySuspension(db, &sub)
			continue
		}
		if err != nil {
			log.Printf("[BILLING-SCHEDULER] Billing failed for subscription %d: %v", sub.ID, err)
			continue
		}

		sub.NextBillingAt = sub.NextPeriod(sub.NextBillingAt)
		if err := db.Save(&sub).Error; err != nil {
			log.Printf("[BILLING-SCHEDULER] Failed to advance billing date for subscription %d: %v", sub.ID, err)
		}
	}
}

// notifySuspension emails the user that billing failed; best effort only
func notifySuspension(db *gorm.DB, sub *models.Subscription) {
	var user models.User
	if err := db.Where("id = ? AND is_deleted = false", sub.UserID).First(&user).Error; err != nil {
		return
	}
	html := fmt.Sprintf(`
	<div style="font-family: Helvetica, Arial, sans-serif; max-width: 600px; margin: 0 auto;">
		<h2>Subscription suspended</h2>
		<p>Hi %s,</p>
		<p>We could not charge %s for your <b>%s</b> plan because your wallet
		balance was too low. Top up your wallet to resume the subscription.</p>
	</div>`, user.Name, sub.Price.StringFixed(2)+" "+config.AppConfig.Currency, sub.Plan)
	_ = SendEmail(user.Name, user.Email, "Subscription suspended", html)
}

// ExpireStalePending cancels pending transactions that never received gateway
// confirmation. The provider's retry window is long over by then; if a late
// event still arrives, the reconciler records it as a fresh row.
func ExpireStalePending() {
	db := database.Database.Db
	cutoff := time.Now().Add(-stalePendingAge)

	var stale []models.Transaction
	if err := db.
		Where("status = ? AND created_at < ? AND is_deleted = false", models.TransactionStatusPending, cutoff).
		Find(&stale).Error; err != nil {
		log.Printf("[BILLING-SCHEDULER] Error fetching stale pending transactions: %v", err)
		return
	}

	for _, txn := range stale {
		txn.Status = models.TransactionStatusCancelled
		txn.ErrorMessage = fmt.Sprintf("no gateway confirmation within %s", stalePendingAge)
		if err := txn.AppendAudit("cancelled", "billing-scheduler", txn.ErrorMessage); err != nil {
			log.Printf("[BILLING-SCHEDULER] Audit append failed for transaction %d: %v", txn.ID, err)
			continue
		}
		if err := db.Save(&txn).Error; err != nil {
			log.Printf("[BILLING-SCHEDULER] Failed to cancel stale transaction %d: %v", txn.ID, err)
		}
	}

	if len(stale) > 0 {
		log.Printf("[BILLING-SCHEDULER] Cancelled %d stale pending transactions", len(stale))
	}
}
