package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/popeskul/whatsapp-followup/internal/config"
	"github.com/popeskul/whatsapp-followup/internal/repository"
	"github.com/popeskul/whatsapp-followup/internal/transport"
)

type inboundService struct {
	cfg      *config.Config
	repo     repository.Repository
	followUp FollowUpService
	logger   *zap.Logger
}

func NewInboundService(
	cfg *config.Config,
	repo repository.Repository,
	followUp FollowUpService,
	logger *zap.Logger,
) InboundService {
	return &inboundService{
		cfg:      cfg,
		repo:     repo,
		followUp: followUp,
		logger:   logger,
	}
}

// HandleInbound processes one reply event. The state write happens before the
// timer cancel: if the timer fires in between, its own state re-read sees
// ACCEPTED and backs off, and the cancel below finds no timer — both
// orderings converge on exactly one outcome. Every internal failure is logged
// and absorbed; the webhook contract requires an acknowledgment regardless.
func (s *inboundService) HandleInbound(ctx context.Context, from, body string) string {
	ack := s.cfg.FollowUp.AckMessage

	address := transport.Normalize(from)
	if address == "" {
		s.logger.Warn("inbound message with unusable sender address",
			zap.String("from", from))
		return ack
	}

	contact, err := s.repo.Contact().GetByPhone(address)
	if err != nil {
		s.logger.Error("inbound: contact lookup failed",
			zap.String("address", address),
			zap.Error(err))
		return ack
	}
	if contact == nil {
		// Unknown senders are never auto-enrolled.
		s.logger.Info("inbound message from unknown contact, ignoring",
			zap.String("address", address))
		return ack
	}

	if err := s.repo.Contact().MarkAccepted(contact.ID, time.Now()); err != nil {
		s.logger.Error("inbound: failed to persist reply",
			zap.Int64("contact_id", contact.ID),
			zap.Error(err))
		return ack
	}

	cancelled := s.followUp.CancelFollowUp(address)

	s.logger.Info("reply received",
		zap.Int64("contact_id", contact.ID),
		zap.String("address", address),
		zap.Int("body_len", len(body)),
		zap.Bool("timer_cancelled", cancelled))

	return ack
}
