package services

import (
	"fmt"
	"log"

	"claims-api/config"
	"claims-api/models"
)

// confirmationSubject and the template below mirror the claimant-facing
// confirmation sent after a successful submission.
const confirmationSubject = "Your Claim Has Been Submitted - PCP Claim Today"

func confirmationBody(claim *models.Claim) string {
	reference := claim.ReferenceNumber
	if reference == "" {
		reference = fmt.Sprintf("%d", claim.ClaimID)
	}

	return fmt.Sprintf(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background: linear-gradient(135deg, #1a1f35 0%%, #2d3555 100%%); padding: 30px; text-align: center;">
    <h1 style="color: #00d4aa; margin: 0;">PCP Claim Today</h1>
  </div>
  <div style="padding: 30px; background: #f9f9f9;">
    <h2 style="color: #1a1f35;">Thank You, %s!</h2>
    <p style="color: #333; line-height: 1.6;">
      Your claim has been successfully submitted. Our team will review your details and be in touch within 24-48 hours.
    </p>
    <div style="background: white; border-radius: 10px; padding: 20px; margin: 20px 0;">
      <h3 style="color: #1a1f35; margin-top: 0;">What Happens Next?</h3>
      <ol style="color: #555; line-height: 1.8;">
        <li>Our team will review your submission</li>
        <li>We'll search for your eligible finance agreements</li>
        <li>If eligible, we'll submit your claim on your behalf</li>
        <li>You'll only pay if your claim is successful</li>
      </ol>
    </div>
    <p style="color: #333;">
      <strong>Reference Number:</strong> %s
    </p>
    <p style="color: #888; font-size: 12px;">
      If you have any questions, please contact us at support@pcpclaimtoday.co.uk
    </p>
  </div>
  <div style="background: #1a1f35; padding: 20px; text-align: center;">
    <p style="color: #888; font-size: 12px; margin: 0;">
      © 2026 PCP Claim Today. All rights reserved.
    </p>
  </div>
</div>`, claim.FirstName, reference)
}

// SendClaimConfirmation emails the claimant their reference number. Skipped
// quietly when SMTP is not configured.
func SendClaimConfirmation(claim *models.Claim) error {
	if !config.MailConfigured() {
		log.Println("Email not configured, skipping confirmation email")
		return nil
	}
	return config.SendMail([]string{claim.Email}, confirmationSubject, confirmationBody(claim))
}

// DispatchClaimConfirmation sends the confirmation off the request path.
// Failures are logged, never surfaced; the claim is already durable.
func DispatchClaimConfirmation(claim models.Claim) {
	go func() {
		if err := SendClaimConfirmation(&claim); err != nil {
			log.Printf("Error sending confirmation email for %s: %v", claim.ReferenceNumber, err)
		} else if config.MailConfigured() {
			log.Printf("Confirmation email sent to: %s", claim.Email)
		}
	}()
}
