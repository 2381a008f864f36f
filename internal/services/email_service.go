package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	pkglogger "github.com/lverdier/boutique/pkg/logger"
)

// AWSSESEmailService sends transactional emails using AWS SES. It
// satisfies both OrderMailer and InvoiceMailer; when email delivery is
// disabled the services receive nil instead.
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

// SendOrderConfirmation sends the payment confirmation email
func (s *AWSSESEmailService) SendOrderConfirmation(ctx context.Context, email, orderID string, totalCents int64) error {
	subject := "Confirmation de votre commande"
	textBody := fmt.Sprintf(`Bonjour,

Nous avons bien reçu votre paiement de %s pour la commande %s.

Votre commande est en cours de préparation. Vous recevrez un email dès son expédition.

Merci de votre confiance.
`, formatEuros(totalCents), orderID)

	return s.send(ctx, email, subject, textBody)
}

// SendInvoiceIssued sends the invoice notification email
func (s *AWSSESEmailService) SendInvoiceIssued(ctx context.Context, email, invoiceNumber string, totalCents int64, dueDate time.Time) error {
	subject := fmt.Sprintf("Votre facture %s", invoiceNumber)
	textBody := fmt.Sprintf(`Bonjour,

Votre facture %s d'un montant de %s est disponible dans votre espace client.

Date d'échéance : %s

Merci de votre confiance.
`, invoiceNumber, formatEuros(totalCents), dueDate.Format("02/01/2006"))

	return s.send(ctx, email, subject, textBody)
}

func (s *AWSSESEmailService) send(ctx context.Context, email, subject, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send email via SES",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.String("message_id", *result.MessageId))

	return nil
}

// formatEuros renders an amount in cents as a French euro string
func formatEuros(cents int64) string {
	return fmt.Sprintf("%d,%02d €", cents/100, cents%100)
}
