package walletController

import (
	"errors"
	"log"
	"time"

	"examportal/config"
	"examportal/database"
	"examportal/middleware"
	"examportal/models"
	"examportal/services/ledger"
	"examportal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// ledgerErrorResponse maps the ledger error taxonomy onto HTTP responses
func ledgerErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Insufficient wallet balance!", nil)
	case errors.Is(err, ledger.ErrValidation):
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, err.Error(), nil)
	case errors.Is(err, ledger.ErrNotFound):
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Not found!", nil)
	case errors.Is(err, ledger.ErrUnauthorized):
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	case errors.Is(err, ledger.ErrGateway):
		return middleware.JsonResponse(c, fiber.StatusBadGateway, false, "Payment gateway error, please try again!", nil)
	default:
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Something went wrong!", nil)
	}
}

// parseAmount parses a request amount into a positive decimal
func parseAmount(raw string) (decimal.Decimal, bool) {
	amount, err := decimal.NewFromString(raw)
	if err != nil || amount.IsNegative() || amount.IsZero() {
		return decimal.Zero, false
	}
	return amount, true
}

// GetWalletBalance returns user's current wallet balance
func GetWalletBalance(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	balance, err := ledger.CachedBalance(userId)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Access Denied!", nil)
		}
		return ledgerErrorResponse(c, err)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Wallet balance fetched!", fiber.Map{
		"balance":  balance,
		"currency": config.AppConfig.Currency,
	})
}

// InitiateTopup registers a payment intent with the gateway and records a
// pending top-up. The balance changes only when the gateway webhook confirms.
func InitiateTopup(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	var user models.User
	if err := database.Database.Db.Where("id = ? AND is_deleted = false", userId).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Access Denied!", nil)
	}

	reqData, ok := c.Locals("validatedTopup").(*struct {
		Amount string `json:"amount"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	amount, ok := parseAmount(reqData.Amount)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Amount must be greater than 0!", nil)
	}

	intent, err := utils.CreateTopupIntent(userId, amount, config.AppConfig.Currency)
	if err != nil {
		log.Printf("[WALLET] Topup intent creation failed for user %d: %v", userId, err)
		return middleware.JsonResponse(c, fiber.StatusBadGateway, false, "Payment gateway error, please try again!", nil)
	}

	txn, err := ledger.MarkPending(ledger.MutationInput{
		UserID:          userId,
		Type:            models.TransactionTypeWalletTopup,
		Direction:       models.DirectionCredit,
		Amount:          amount,
		Description:     "Wallet top-up via payment gateway",
		Actor:           user.Email,
		Gateway:         "paygate",
		GatewayIntentID: intent.IntentID,
	})
	if err != nil {
		return ledgerErrorResponse(c, err)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Top-up initiated!", fiber.Map{
		"transactionId": txn.ID,
		"reference":     txn.Reference,
		"intentId":      intent.IntentID,
		"checkoutUrl":   intent.CheckoutURL,
		"amount":        amount,
		"status":        txn.Status,
	})
}

// GetWalletHistory returns user's wallet transaction history
func GetWalletHistory(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	balance, err := ledger.CachedBalance(userId)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Access Denied!", nil)
	}

	filter := ledger.HistoryFilter{
		Type:   models.TransactionType(c.Query("type")),
		Status: models.TransactionStatus(c.Query("status")),
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 10),
	}

	transactions, total, err := ledger.FindByUser(userId, filter)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch history!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Wallet history fetched!", fiber.Map{
		"transactions":   transactions,
		"currentBalance": balance,
		"pagination": fiber.Map{
			"total": total,
			"page":  filter.Page,
			"limit": filter.Limit,
		},
	})
}

// PurchaseExam debits the exam price from the wallet. The referral bonus for
// the referrer is an independent follow-up mutation: its failure is logged and
// retried manually, never rolled into the purchase.
func PurchaseExam(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	var user models.User
	if err := database.Database.Db.Where("id = ? AND is_deleted = false", userId).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Access Denied!", nil)
	}

	reqData, ok := c.Locals("validatedPurchase").(*struct {
		ExamID       uint   `json:"examId"`
		DiscountCode string `json:"discountCode"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	var exam models.Exam
	if err := database.Database.Db.
		Where("id = ? AND status = ? AND is_deleted = false", reqData.ExamID, "ACTIVE").
		First(&exam).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Exam not found!", nil)
	}

	price := exam.Price
	var discount *models.DiscountDetails
	if reqData.DiscountCode != "" {
		if config.AppConfig.DiscountCode == "" || reqData.DiscountCode != config.AppConfig.DiscountCode {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid discount code!", nil)
		}
		off := price.
			Mul(decimal.NewFromInt(int64(config.AppConfig.DiscountPercent))).
			Div(decimal.NewFromInt(100)).
			Round(2)
		price = price.Sub(off)
		discount = &models.DiscountDetails{
			Code:      reqData.DiscountCode,
			Percent:   config.AppConfig.DiscountPercent,
			AmountOff: off,
		}
	}

	txn, err := ledger.ApplyMutation(ledger.MutationInput{
		UserID:      userId,
		Type:        models.TransactionTypeExamPurchase,
		Direction:   models.DirectionDebit,
		Amount:      price,
		Description: "Exam purchase: " + exam.Title,
		Metadata:    map[string]any{"examId": exam.ID, "examTitle": exam.Title},
		Actor:       user.Email,
		Discount:    discount,
	})
	if err != nil {
		return ledgerErrorResponse(c, err)
	}

	go creditReferralBonus(user, exam)

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Exam purchased!", fiber.Map{
		"transactionId": txn.ID,
		"reference":     txn.Reference,
		"amount":        txn.Amount,
		"balanceBefore": txn.BalanceBefore,
		"balanceAfter":  txn.BalanceAfter,
		"status":        txn.Status,
	})
}

// creditReferralBonus credits the referrer after the referred user's first
// completed exam purchase
func creditReferralBonus(user models.User, exam models.Exam) {
	if user.ReferredBy == nil {
		return
	}

	var purchases int64
	if err := database.Database.Db.Model(&models.Transaction{}).
		Where("user_id = ? AND type = ? AND status = ? AND is_deleted = false",
			user.ID, models.TransactionTypeExamPurchase, models.TransactionStatusCompleted).
		Count(&purchases).Error; err != nil || purchases != 1 {
		return
	}

	bonus, err := decimal.NewFromString(config.AppConfig.ReferralBonus)
	if err != nil || bonus.IsZero() || bonus.IsNegative() {
		return
	}

	_, err = ledger.ApplyMutation(ledger.MutationInput{
		UserID:      *user.ReferredBy,
		Type:        models.TransactionTypeReferralBonus,
		Direction:   models.DirectionCredit,
		Amount:      bonus,
		Description: "Referral bonus: " + user.Name + " purchased their first exam",
		Metadata:    map[string]any{"examId": exam.ID},
		Actor:       "system",
		Referral:    &models.ReferralDetails{ReferredUserID: user.ID, Source: "exam_purchase"},
	})
	if err != nil {
		log.Printf("[WALLET] Referral bonus credit failed for referrer %d (referred %d): %v",
			*user.ReferredBy, user.ID, err)
	}
}

// RequestRefund reverses a completed transaction back into the wallet
func RequestRefund(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	var user models.User
	if err := database.Database.Db.Where("id = ? AND is_deleted = false", userId).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Access Denied!", nil)
	}

	reqData, ok := c.Locals("validatedRefund").(*struct {
		TransactionID uint   `json:"transactionId"`
		Amount        string `json:"amount"`
		Reason        string `json:"reason"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	original, err := ledger.FindByID(reqData.TransactionID)
	if err != nil {
		return ledgerErrorResponse(c, err)
	}
	isAdmin := user.Role == "ADMIN" || user.Role == "SUPER-ADMIN"
	if original.UserID != userId && !isAdmin {
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "Access Denied!", nil)
	}

	var amount *decimal.Decimal
	if reqData.Amount != "" {
		parsed, ok := parseAmount(reqData.Amount)
		if !ok {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Amount must be greater than 0!", nil)
		}
		amount = &parsed
	}

	refund, err := ledger.Refund(reqData.TransactionID, amount, reqData.Reason, user.Email)
	if err != nil {
		return ledgerErrorResponse(c, err)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Refund processed!", fiber.Map{
		"refundTransactionId":  refund.ID,
		"reference":            refund.Reference,
		"relatedTransactionId": refund.RelatedTransactionID,
		"amount":               refund.Amount,
		"balanceAfter":         refund.BalanceAfter,
	})
}

// requireAdmin loads the caller and checks the admin role
func requireAdmin(c *fiber.Ctx) (*models.User, bool) {
	userId := c.Locals("userId").(uint)

	var admin models.User
	if err := database.Database.Db.
		Where("id = ? AND is_deleted = false AND role IN ?", userId, []string{"ADMIN", "SUPER-ADMIN"}).
		First(&admin).Error; err != nil {
		return nil, false
	}
	return &admin, true
}

// AddBalance adds balance to user's wallet (Admin only)
func AddBalance(c *fiber.Ctx) error {
	admin, ok := requireAdmin(c)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Access Denied! Admin role required.", nil)
	}

	reqData, ok := c.Locals("validatedAddBalance").(*struct {
		UserID uint   `json:"userId"`
		Amount string `json:"amount"`
		Reason string `json:"reason"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	amount, ok := parseAmount(reqData.Amount)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Amount must be greater than 0!", nil)
	}

	txn, err := ledger.ApplyMutation(ledger.MutationInput{
		UserID:      reqData.UserID,
		Type:        models.TransactionTypeAdminAdjustment,
		Direction:   models.DirectionCredit,
		Amount:      amount,
		Description: "Admin credit: " + reqData.Reason,
		Actor:       admin.Email,
		AdminID:     admin.ID,
		Reason:      reqData.Reason,
	})
	if err != nil {
		return ledgerErrorResponse(c, err)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Balance added successfully!", fiber.Map{
		"transactionId":   txn.ID,
		"userId":          reqData.UserID,
		"previousBalance": txn.BalanceBefore,
		"amountAdded":     txn.Amount,
		"newBalance":      txn.BalanceAfter,
		"reason":          reqData.Reason,
		"addedBy":         admin.Name,
	})
}

// DeductBalance deducts balance from user's wallet (Admin only). Admin
// adjustments are the one debit type allowed to overdraw a wallet.
func DeductBalance(c *fiber.Ctx) error {
	admin, ok := requireAdmin(c)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Access Denied! Admin role required.", nil)
	}

	reqData, ok := c.Locals("validatedDeductBalance").(*struct {
		UserID uint   `json:"userId"`
		Amount string `json:"amount"`
		Reason string `json:"reason"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	amount, ok := parseAmount(reqData.Amount)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Amount must be greater than 0!", nil)
	}

	txn, err := ledger.ApplyMutation(ledger.MutationInput{
		UserID:      reqData.UserID,
		Type:        models.TransactionTypeAdminAdjustment,
		Direction:   models.DirectionDebit,
		Amount:      amount,
		Description: "Admin debit: " + reqData.Reason,
		Actor:       admin.Email,
		AdminID:     admin.ID,
		Reason:      reqData.Reason,
	})
	if err != nil {
		return ledgerErrorResponse(c, err)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Balance deducted successfully!", fiber.Map{
		"transactionId":   txn.ID,
		"userId":          reqData.UserID,
		"previousBalance": txn.BalanceBefore,
		"amountDeducted":  txn.Amount,
		"newBalance":      txn.BalanceAfter,
		"reason":          reqData.Reason,
		"deductedBy":      admin.Name,
	})
}

// GetUserBalance returns a specific user's balance (Admin only)
func GetUserBalance(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Access Denied! Admin role required.", nil)
	}

	targetUserId := c.QueryInt("userId", 0)
	if targetUserId == 0 {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "userId is required!", nil)
	}

	var targetUser models.User
	if err := database.Database.Db.Where("id = ? AND is_deleted = false", targetUserId).First(&targetUser).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "User not found!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "User balance fetched!", fiber.Map{
		"userId":   targetUser.ID,
		"name":     targetUser.Name,
		"email":    targetUser.Email,
		"balance":  targetUser.WalletBalance,
		"currency": config.AppConfig.Currency,
	})
}

// GetUserWalletHistory returns a specific user's wallet history (Admin only)
func GetUserWalletHistory(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Access Denied! Admin role required.", nil)
	}

	targetUserId := c.QueryInt("userId", 0)
	if targetUserId == 0 {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "userId is required!", nil)
	}

	var targetUser models.User
	if err := database.Database.Db.Where("id = ? AND is_deleted = false", targetUserId).First(&targetUser).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "User not found!", nil)
	}

	filter := ledger.HistoryFilter{
		Type:   models.TransactionType(c.Query("type")),
		Status: models.TransactionStatus(c.Query("status")),
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 10),
	}

	transactions, total, err := ledger.FindByUser(uint(targetUserId), filter)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch history!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "User wallet history fetched!", fiber.Map{
		"user": fiber.Map{
			"id":      targetUser.ID,
			"name":    targetUser.Name,
			"email":   targetUser.Email,
			"balance": targetUser.WalletBalance,
		},
		"transactions": transactions,
		"pagination": fiber.Map{
			"total": total,
			"page":  filter.Page,
			"limit": filter.Limit,
		},
	})
}

// GetAllTransactions returns all wallet transactions (Admin only)
func GetAllTransactions(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Access Denied! Admin role required.", nil)
	}

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	query := database.Database.Db.Model(&models.Transaction{}).Where("is_deleted = false")
	if txnType := c.Query("type"); txnType != "" {
		query = query.Where("type = ?", txnType)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var transactions []models.Transaction
	if err := query.
		Order("transaction_date DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&transactions).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch transactions!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Transactions fetched!", fiber.Map{
		"transactions": transactions,
		"pagination": fiber.Map{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}

// GetWalletStats returns the current month's platform financials (Admin only)
func GetWalletStats(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Access Denied! Admin role required.", nil)
	}

	now := time.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	report, err := ledger.BuildFinancialReport(start, now)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to build stats!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Wallet stats fetched!", report)
}
