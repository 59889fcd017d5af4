package mail

import (
	"context"
	"fmt"
)

// Mailer dispatches transactional email. Implementations report an error when
// the provider did not accept the message; callers decide whether that is
// fatal for their flow.
type Mailer interface {
	Send(ctx context.Context, to, subject, html, text string) error
}

// ShareNotification renders the email sent to a recipient when documents are
// shared with them.
func ShareNotification(shareLink string, documentCount int, expiresAt string) (subject, html, text string) {
	subject = "Documents have been shared with you"
	text = fmt.Sprintf(
		"You have been given access to %d document(s).\n\nOpen the link below and verify your email address to view them:\n%s\n\nAccess expires %s.",
		documentCount, shareLink, expiresAt,
	)
	html = fmt.Sprintf(
		`<p>You have been given access to <strong>%d document(s)</strong>.</p><p><a href="%s">View shared documents</a></p><p>Access expires %s.</p>`,
		documentCount, shareLink, expiresAt,
	)
	return subject, html, text
}

// OTPMessage renders the one-time code email used to verify a recipient.
func OTPMessage(code string) (subject, html, text string) {
	subject = "Your verification code"
	text = fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", code)
	html = fmt.Sprintf(`<p>Your verification code is</p><p style="font-size:24px;letter-spacing:4px"><strong>%s</strong></p><p>It expires in 10 minutes.</p>`, code)
	return subject, html, text
}
