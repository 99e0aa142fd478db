package service

import (
	"context"
	"strings"
	"time"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"
	"github.com/makerlink/sourcing-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const maxMessageLength = 4000

// MessageService manages the append-only buyer/agent message log of an
// RFI. Clients poll List on a fixed interval with a since cursor; there
// is no push channel.
type MessageService struct {
	messages port.MessageStore
	rfis     port.RFIStore
	profiles port.ProfileStore
	logger   *zap.Logger
}

// NewMessageService creates the message service.
func NewMessageService(messages port.MessageStore, rfis port.RFIStore, profiles port.ProfileStore, logger *zap.Logger) *MessageService {
	return &MessageService{
		messages: messages,
		rfis:     rfis,
		profiles: profiles,
		logger:   logger,
	}
}

// Append adds one message to the RFI's log. Messages are immutable once
// written; there is no edit or delete.
func (s *MessageService) Append(ctx context.Context, userID, rfiID, text string) (*domain.Message, error) {
	ctx, span := tracer.Start(ctx, "Message.Append")
	defer span.End()
	span.SetAttributes(attribute.String("rfi.id", rfiID))

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &domain.ErrValidation{Field: "text", Message: "message text must not be empty"}
	}
	if len(text) > maxMessageLength {
		return nil, &domain.ErrValidation{Field: "text", Message: "message text is too long"}
	}

	if err := s.authorize(ctx, userID, rfiID); err != nil {
		return nil, err
	}

	msg, err := s.messages.CreateMessage(ctx, &domain.Message{
		ID:       uuid.NewString(),
		RFIID:    rfiID,
		SenderID: userID,
		Text:     text,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("message appended",
		zap.String("rfi_id", rfiID),
		zap.String("message_id", msg.ID),
	)
	return msg, nil
}

// List returns the RFI's messages in chronological order. A non-zero
// since returns only messages created after it, serving the poll loop.
func (s *MessageService) List(ctx context.Context, userID, rfiID string, since time.Time) ([]domain.Message, error) {
	ctx, span := tracer.Start(ctx, "Message.List")
	defer span.End()
	span.SetAttributes(attribute.String("rfi.id", rfiID))

	if err := s.authorize(ctx, userID, rfiID); err != nil {
		return nil, err
	}
	return s.messages.ListMessages(ctx, rfiID, since)
}

// authorize allows the RFI's company members and staff.
func (s *MessageService) authorize(ctx context.Context, userID, rfiID string) error {
	rfi, err := s.rfis.GetRFI(ctx, rfiID)
	if err != nil {
		return err
	}

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if profile.Role.IsStaff() {
		return nil
	}
	if profile.CompanyID == "" || profile.CompanyID != rfi.CompanyID {
		return &domain.ErrForbidden{Action: "access this RFI's messages"}
	}
	return nil
}
