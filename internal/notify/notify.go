// Package notify delivers scan reports by email, or to the log when no mail
// server is configured.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"scoutgate/internal/models"
	"strings"

	"gopkg.in/gomail.v2"
)

// sender is satisfied by *gomail.Dialer.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier emails each report as plain text.
type SMTPNotifier struct {
	from      string
	recipient string
	sender    sender
}

// NewSMTPNotifier creates a notifier that sends through the given SMTP server.
func NewSMTPNotifier(cfg models.NotifyConfig) *SMTPNotifier {
	return &SMTPNotifier{
		from:      cfg.SMTP.From,
		recipient: cfg.Recipient,
		sender:    gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password),
	}
}

// Send builds and sends the report email.
func (n *SMTPNotifier) Send(ctx context.Context, report *models.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", n.recipient)
	m.SetHeader("Subject", Subject(report))
	m.SetBody("text/plain", Body(report))

	if err := n.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send report email: %w", err)
	}

	slog.Info("Report emailed", "report_id", report.ID, "recipient", n.recipient, "products", len(report.Products))
	return nil
}

// LogNotifier writes the report to the structured log instead of sending it.
type LogNotifier struct {
	recipient string
}

func NewLogNotifier(recipient string) *LogNotifier {
	return &LogNotifier{recipient: recipient}
}

func (n *LogNotifier) Send(ctx context.Context, report *models.Report) error {
	names := make([]string, 0, len(report.Products))
	for _, p := range report.Products {
		names = append(names, p.Name)
	}
	slog.Info("Report ready (SMTP not configured, not emailed)",
		"report_id", report.ID,
		"recipient", n.recipient,
		"subject", Subject(report),
		"products", names)
	return nil
}

// Subject is the email subject line for report.
func Subject(report *models.Report) string {
	return fmt.Sprintf("[Weekly Report] Amazon Product Scout - %s", report.Date)
}

// Body renders the plain-text email for report.
func Body(report *models.Report) string {
	var b strings.Builder
	const rule = "--------------------------------------------------\n"

	b.WriteString("Hi Team,\n\n")
	b.WriteString("Here is this week's summary of new Amazon (US) product opportunities, filtered against our R&D capabilities.\n\n")
	b.WriteString("EXECUTIVE SUMMARY:\n")
	b.WriteString(report.Summary)
	b.WriteString("\n\n")
	b.WriteString(rule)
	fmt.Fprintf(&b, "IDENTIFIED OPPORTUNITIES - %d items\n", len(report.Products))
	b.WriteString(rule)

	for i, p := range report.Products {
		if i > 0 {
			b.WriteString("\n")
			b.WriteString(rule)
		}
		fmt.Fprintf(&b, "\n#%d: %s\n", i+1, p.Name)
		fmt.Fprintf(&b, "> Match score: %d/100\n", p.MatchScore)
		fmt.Fprintf(&b, "> Price: %s | Rating: %s\n", orNA(p.Price), orNA(p.Rating))
		fmt.Fprintf(&b, "> Link: %s\n\n", p.SafeURL())
		b.WriteString("WHY IT FITS US:\n")
		b.WriteString(p.Reasoning)
		b.WriteString("\n\nREQUIRED TECH STACK:\n")
		if len(p.RequiredTech) > 0 {
			fmt.Fprintf(&b, "[ %s ]\n", strings.Join(p.RequiredTech, " ] [ "))
		}
	}

	b.WriteString("\nNext steps:\n")
	b.WriteString("1. Review the match score to assess technical feasibility.\n")
	b.WriteString("2. Follow the links to analyse competing features.\n\n")
	b.WriteString("Regards,\nAmazon Product Scout Agent\n")
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
