package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMSender delivers notifications through Firebase Cloud Messaging.
//
// The messaging client is built lazily on first use, guarded by sync.Once
// so concurrent first sends cannot double-initialize the credential handle.
type FCMSender struct {
	credentialsFile string
	logger          *slog.Logger

	once    sync.Once
	client  *messaging.Client
	initErr error
}

// NewFCMSender creates an FCM sender from a service account credentials
// file. Returns nil when credentialsFile is empty (notifications disabled).
func NewFCMSender(credentialsFile string, logger *slog.Logger) *FCMSender {
	if credentialsFile == "" {
		return nil
	}
	return &FCMSender{credentialsFile: credentialsFile, logger: logger}
}

func (s *FCMSender) messagingClient(ctx context.Context) (*messaging.Client, error) {
	s.once.Do(func() {
		app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(s.credentialsFile))
		if err != nil {
			s.initErr = fmt.Errorf("init firebase app: %w", err)
			return
		}
		s.client, s.initErr = app.Messaging(ctx)
		if s.initErr != nil {
			s.initErr = fmt.Errorf("init messaging client: %w", s.initErr)
			return
		}
		s.logger.Info("FCM messaging client initialized")
	})
	return s.client, s.initErr
}

// Send delivers the message to a single token.
func (s *FCMSender) Send(ctx context.Context, token string, msg Message) error {
	client, err := s.messagingClient(ctx)
	if err != nil {
		return err
	}
	_, err = client.Send(ctx, &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
	})
	return err
}

// SendEach delivers the message to every token in one multicast call and
// maps the per-token responses back to error slots.
func (s *FCMSender) SendEach(ctx context.Context, tokens []string, msg Message) []error {
	errs := make([]error, len(tokens))

	client, err := s.messagingClient(ctx)
	if err != nil {
		for i := range errs {
			errs[i] = err
		}
		return errs
	}

	resp, err := client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
	})
	if err != nil {
		for i := range errs {
			errs[i] = err
		}
		return errs
	}

	for i, r := range resp.Responses {
		if i >= len(errs) {
			break
		}
		if !r.Success {
			errs[i] = r.Error
		}
	}
	return errs
}
