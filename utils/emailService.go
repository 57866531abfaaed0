package utils

import (
	"fmt"
	"log"

	"examportal/config"
	"examportal/models"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendEmail delivers one email through SendGrid. A missing API key turns the
// whole email path into a no-op so local and test runs stay silent.
func SendEmail(toName, toEmail, subject, htmlBody string) error {
	if config.AppConfig.SendGridKey == "" {
		return nil
	}

	from := mail.NewEmail("Exam Portal", config.AppConfig.EmailSender)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, "", htmlBody)

	client := sendgrid.NewSendClient(config.AppConfig.SendGridKey)
	resp, err := client.Send(message)
	if err != nil {
		log.Printf("[EMAIL] Failed to send %q to %s: %v", subject, toEmail, err)
		return err
	}
	if resp.StatusCode >= 400 {
		log.Printf("[EMAIL] SendGrid rejected %q to %s: %d %s", subject, toEmail, resp.StatusCode, resp.Body)
		return fmt.Errorf("sendgrid returned %d", resp.StatusCode)
	}
	return nil
}

// SendTransactionEmail notifies a user that a transaction reached a final
// state. Fire-and-forget: errors are logged, never retried, and never affect
// the ledger write that triggered them.
func SendTransactionEmail(user *models.User, txn *models.Transaction) {
	var subject, headline string
	switch txn.Status {
	case models.TransactionStatusCompleted:
		subject = "Payment confirmation"
		headline = "Your transaction was completed."
	case models.TransactionStatusRefunded:
		subject = "Refund processed"
		headline = "Your transaction has been refunded."
	case models.TransactionStatusFailed:
		subject = "Payment failed"
		headline = "Your transaction could not be completed."
	default:
		return
	}

	html := fmt.Sprintf(`
	<div style="font-family: Helvetica, Arial, sans-serif; max-width: 600px; margin: 0 auto;">
		<h2>%s</h2>
		<p>Hi %s,</p>
		<p>%s</p>
		<table cellpadding="6" style="border-collapse: collapse;">
			<tr><td><b>Reference</b></td><td>%s</td></tr>
			<tr><td><b>Type</b></td><td>%s</td></tr>
			<tr><td><b>Amount</b></td><td>%s %s</td></tr>
			<tr><td><b>Status</b></td><td>%s</td></tr>
		</table>
		<p style="color:#666;font-size:12px;">If you did not expect this, contact support.</p>
	</div>`,
		subject, user.Name, headline,
		txn.Reference, txn.Type, txn.Amount.StringFixed(2), txn.Currency, txn.Status)

	_ = SendEmail(user.Name, user.Email, subject, html)
}
