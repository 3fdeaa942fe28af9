package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"gopkg.in/gomail.v2"
)

// EmailService sends notification mail in response to dispatcher events. It
// is a pure consumer: failures are logged, never propagated to the operation
// that raised the event.
type EmailService struct {
	dialer     *gomail.Dialer
	from       string
	adminEmail string
	enabled    bool
	affiliates *AffiliateService
}

func NewEmailService(affiliates *AffiliateService) *EmailService {
	smtpHost := os.Getenv("SMTP_HOST")
	smtpUser := os.Getenv("SMTP_USERNAME")
	smtpPass := os.Getenv("SMTP_PASSWORD")

	smtpPort := 2525
	if portStr := os.Getenv("SMTP_PORT"); portStr != "" {
		if portNum, err := strconv.Atoi(portStr); err == nil && portNum > 0 {
			smtpPort = portNum
		}
	}

	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = smtpUser
	}

	enabled := smtpHost != ""
	if !enabled {
		log.Printf("WARNING: SMTP_HOST not set, email notifications disabled")
	}

	return &EmailService{
		dialer:     gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPass),
		from:       from,
		adminEmail: os.Getenv("ADMIN_EMAIL"),
		enabled:    enabled,
		affiliates: affiliates,
	}
}

// HandleEvent is the dispatcher subscription point
func (s *EmailService) HandleEvent(event string, payload EventPayload) {
	if !s.enabled {
		return
	}

	switch event {
	case EventAffiliateApproved:
		s.notifyAffiliate(payload, "Your affiliate application was approved",
			"Congratulations! Your affiliate application has been approved. You can now generate links and start earning commissions.")
	case EventAffiliateRejected:
		s.notifyAffiliate(payload, "Your affiliate application was rejected",
			fmt.Sprintf("Unfortunately your affiliate application was rejected. Reason: %v", payload["reason"]))
	case EventCommissionCreated:
		s.notifyAffiliate(payload, "You earned a new commission",
			fmt.Sprintf("A new commission of %v %v has been recorded for order %v.", payload["amount"], payload["currency"], payload["orderId"]))
	case EventPaymentCompleted:
		s.notifyAffiliate(payload, "Your payout was sent",
			fmt.Sprintf("Your payout of %v has been sent. Transaction reference: %v.", payload["amount"], payload["transactionId"]))
	case EventPaymentFailed:
		s.notifyAdmin("Affiliate payout failed",
			fmt.Sprintf("Payment %v for affiliate %v failed: %v", payload["paymentId"], payload["affiliateId"], payload["error"]))
	case EventFraudDetected:
		s.notifyAdmin("Suspicious affiliate traffic detected",
			fmt.Sprintf("Affiliate %v received %v visits from %v within the last hour.", payload["affiliateId"], payload["visitCount"], payload["ipAddress"]))
	}
}

func (s *EmailService) notifyAffiliate(payload EventPayload, subject, body string) {
	idHex, _ := payload["affiliateId"].(string)
	id, err := primitive.ObjectIDFromHex(idHex)
	if err != nil {
		return
	}

	affiliate, err := s.affiliates.Get(context.Background(), id)
	if err != nil || affiliate.PaymentEmail == "" {
		return
	}
	s.send(affiliate.PaymentEmail, subject, body)
}

func (s *EmailService) notifyAdmin(subject, body string) {
	if s.adminEmail == "" {
		return
	}
	s.send(s.adminEmail, subject, body)
}

func (s *EmailService) send(to, subject, body string) {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		log.Printf("WARNING: failed to send email to %s: %v", to, err)
	}
}
