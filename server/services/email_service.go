package services

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"time"

	"desktown-backend/shared/config"
	"desktown-backend/shared/database/models"
)

// ErrEmailDisabled is returned when SMTP is not configured; callers treat it as a skip
var ErrEmailDisabled = errors.New("smtp not configured")

// EmailRequest is one outbound message
type EmailRequest struct {
	To           []string
	Subject      string
	Body         string
	IsHTML       bool
	TemplateID   string
	TemplateVars map[string]interface{}
}

// Mailer sends transactional email
type Mailer interface {
	SendOrderReceipt(order *models.ServiceOrder, buyerName string) error
	SendPaymentFailed(order *models.ServiceOrder, buyerName string) error
	SendOfficeMessage(ownerEmail string, office *models.Office, msg *models.OfficeMessage) error
}

// EmailService sends SMTP mail rendered from the embedded templates
type EmailService struct {
	config          *config.Config
	templateService *TemplateService
}

func NewEmailService(cfg *config.Config) *EmailService {
	return &EmailService{
		config:          cfg,
		templateService: NewTemplateService(),
	}
}

// Configured reports whether SMTP host and sender are set
func (es *EmailService) Configured() bool {
	return es.config.SMTPHost != "" && es.config.EmailFrom != ""
}

// SendEmail renders the template, if any, and delivers immediately
func (es *EmailService) SendEmail(request EmailRequest) error {
	if !es.Configured() {
		return ErrEmailDisabled
	}
	if len(request.To) == 0 {
		return fmt.Errorf("recipient list cannot be empty")
	}
	if request.Subject == "" {
		return fmt.Errorf("subject cannot be empty")
	}

	if request.TemplateID != "" {
		rendered, err := es.templateService.RenderTemplate(request.TemplateID, request.TemplateVars)
		if err != nil {
			return err
		}
		request.Body = rendered
		request.IsHTML = true
	}
	if request.Body == "" {
		return fmt.Errorf("body cannot be empty")
	}

	if err := es.sendSMTPEmail(request); err != nil {
		log.Printf("❌ Failed to send email to %v: %v", request.To, err)
		return err
	}
	log.Printf("📧 Email sent to %v: %s", request.To, request.Subject)
	return nil
}

func (es *EmailService) sendSMTPEmail(request EmailRequest) error {
	message := es.buildEmailMessage(request)

	host := es.config.SMTPHost
	port := es.config.SMTPPort
	addr := fmt.Sprintf("%s:%s", host, port)

	var auth smtp.Auth
	if es.config.SMTPUsername != "" {
		auth = smtp.PlainAuth("", es.config.SMTPUsername, es.config.SMTPPassword, host)
	}

	// 465 is implicit TLS; other ports negotiate STARTTLS inside smtp.SendMail
	if port == "465" || es.config.SMTPUseTLS {
		return es.sendWithTLS(addr, host, auth, es.config.EmailFrom, request.To, []byte(message))
	}
	return smtp.SendMail(addr, auth, es.config.EmailFrom, request.To, []byte(message))
}

func (es *EmailService) sendWithTLS(addr, host string, auth smtp.Auth, from string, to []string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer client.Quit()

	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return err
		}
	}
	if err = client.Mail(from); err != nil {
		return err
	}
	for _, recipient := range to {
		if err = client.Rcpt(recipient); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err = w.Write(msg); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (es *EmailService) buildEmailMessage(request EmailRequest) string {
	var msg strings.Builder

	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", es.config.EmailFromName, es.config.EmailFrom))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(request.To, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", request.Subject))
	msg.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	msg.WriteString("MIME-Version: 1.0\r\n")
	if request.IsHTML {
		msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	} else {
		msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	}
	msg.WriteString("\r\n")
	msg.WriteString(request.Body)

	return msg.String()
}

// FormatAmount renders cents as "12.50 USD"
func FormatAmount(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, strings.ToUpper(currency))
}

func (es *EmailService) SendOrderReceipt(order *models.ServiceOrder, buyerName string) error {
	paidAt := ""
	if order.PaidAt != nil {
		paidAt = order.PaidAt.Format("2006-01-02 15:04 MST")
	}
	return es.SendEmail(EmailRequest{
		To:         []string{order.BuyerEmail},
		Subject:    fmt.Sprintf("Your DeskTown receipt for %s", order.ServiceName),
		TemplateID: TemplateOrderReceipt,
		TemplateVars: map[string]interface{}{
			"Name":        buyerName,
			"ServiceName": order.ServiceName,
			"OrderID":     order.ID.String(),
			"Amount":      FormatAmount(order.AmountCents, order.Currency),
			"Reference":   order.PaymentReference,
			"PaidAt":      paidAt,
			"OrdersURL":   es.config.FrontendURL + "/orders",
		},
	})
}

func (es *EmailService) SendPaymentFailed(order *models.ServiceOrder, buyerName string) error {
	return es.SendEmail(EmailRequest{
		To:         []string{order.BuyerEmail},
		Subject:    fmt.Sprintf("Payment for %s was not completed", order.ServiceName),
		TemplateID: TemplatePaymentFailed,
		TemplateVars: map[string]interface{}{
			"Name":        buyerName,
			"ServiceName": order.ServiceName,
			"Amount":      FormatAmount(order.AmountCents, order.Currency),
			"Reason":      order.FailureReason,
			"OrdersURL":   es.config.FrontendURL + "/orders",
		},
	})
}

func (es *EmailService) SendOfficeMessage(ownerEmail string, office *models.Office, msg *models.OfficeMessage) error {
	return es.SendEmail(EmailRequest{
		To:         []string{ownerEmail},
		Subject:    fmt.Sprintf("New message for %s", office.Name),
		TemplateID: TemplateOfficeMessage,
		TemplateVars: map[string]interface{}{
			"OfficeName":  office.Name,
			"SenderName":  msg.SenderName,
			"SenderEmail": msg.SenderEmail,
			"Body":        msg.Body,
			"InboxURL":    fmt.Sprintf("%s/offices/%s/messages", es.config.FrontendURL, office.ID),
		},
	})
}
