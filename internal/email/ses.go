package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, opts ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender delivers through Amazon SES v2 from a verified source address.
type SESSender struct {
	api    SESAPI
	source string
}

func NewSESSender(api SESAPI, source string) *SESSender {
	return &SESSender{api: api, source: source}
}

func (s *SESSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(FormatFrom(msg.SenderName, s.source)),
		Destination: &types.Destination{
			ToAddresses: msg.To,
			CcAddresses: msg.Cc,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTMLBody), Charset: aws.String("UTF-8")},
				},
			},
		},
	}
	if msg.ReplyTo != "" {
		in.ReplyToAddresses = []string{msg.ReplyTo}
	}
	if _, err := s.api.SendEmail(ctx, in); err != nil {
		if sesRejected(err) {
			return fmt.Errorf("%w: ses send: %w", ErrUndeliverable, err)
		}
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}

// sesRejected reports SES errors caused by the message or the account.
// Throttling and service faults stay retryable.
func sesRejected(err error) bool {
	var (
		rejected   *types.MessageRejected
		unverified *types.MailFromDomainNotVerifiedException
		badRequest *types.BadRequestException
		suspended  *types.AccountSuspendedException
		paused     *types.SendingPausedException
		notFound   *types.NotFoundException
	)
	return errors.As(err, &rejected) ||
		errors.As(err, &unverified) ||
		errors.As(err, &badRequest) ||
		errors.As(err, &suspended) ||
		errors.As(err, &paused) ||
		errors.As(err, &notFound)
}
