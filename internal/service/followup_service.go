package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/popeskul/whatsapp-followup/internal/config"
	"github.com/popeskul/whatsapp-followup/internal/genai"
	"github.com/popeskul/whatsapp-followup/internal/models"
	"github.com/popeskul/whatsapp-followup/internal/repository"
	"github.com/popeskul/whatsapp-followup/internal/scheduler"
	"github.com/popeskul/whatsapp-followup/internal/transport"
)

const deliveryCacheTTL = 24 * time.Hour

type followUpService struct {
	cfg         *config.Config
	repo        repository.Repository
	redisClient *redis.Client
	transport   transport.Transport
	generator   genai.Generator
	breaker     *CircuitBreaker
	scheduler   *scheduler.FollowUpScheduler
	logger      *zap.Logger
}

func NewFollowUpService(
	cfg *config.Config,
	repo repository.Repository,
	redisClient *redis.Client,
	tr transport.Transport,
	generator genai.Generator,
	logger *zap.Logger,
) FollowUpService {
	svc := &followUpService{
		cfg:         cfg,
		repo:        repo,
		redisClient: redisClient,
		transport:   tr,
		generator:   generator,
		breaker:     NewCircuitBreaker(&cfg.Twilio.CircuitBreaker, logger),
		logger:      logger,
	}

	svc.scheduler = scheduler.New(logger, cfg.FollowUp.Delay, svc.handleExpiry)
	return svc
}

// StartFollowUp runs the first half of the workflow: generate, send, persist,
// arm. The generation step cannot fail (it falls back internally); the send
// can, and a failed send aborts the workflow with the contact marked
// INVALID_CONTACT and no timer armed.
func (s *followUpService) StartFollowUp(ctx context.Context, phoneNumber, name, contactContext string) (*models.FollowUpResult, error) {
	address := transport.Normalize(phoneNumber)
	if address == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, phoneNumber)
	}

	contact, err := s.repo.Contact().GetByPhone(address)
	if err != nil {
		return nil, fmt.Errorf("failed to look up contact: %w", err)
	}
	if contact == nil {
		contact, err = s.repo.Contact().Create(name, address)
		if err != nil {
			return nil, fmt.Errorf("failed to create contact: %w", err)
		}
		s.logger.Info("contact created",
			zap.Int64("contact_id", contact.ID),
			zap.String("address", address))
	}

	body := s.generator.FirstMessage(ctx, name, contactContext)

	var deliveryID string
	err = s.breaker.Execute(ctx, func() error {
		id, sendErr := s.transport.Send(ctx, address, body)
		if sendErr != nil {
			return sendErr
		}
		deliveryID = id
		return nil
	})
	if err != nil {
		if markErr := s.repo.Contact().MarkInvalid(contact.ID); markErr != nil {
			s.logger.Error("failed to mark contact invalid after send failure",
				zap.Int64("contact_id", contact.ID),
				zap.Error(markErr))
		}
		s.logger.Error("first message send failed",
			zap.String("address", address),
			zap.Error(err))
		return nil, fmt.Errorf("failed to send first message: %w", err)
	}

	now := time.Now()
	scheduledAt := now.Add(s.cfg.FollowUp.Delay)

	if err := s.repo.Contact().MarkFollowedUp(contact.ID, body, contactContext, now, scheduledAt); err != nil {
		return nil, fmt.Errorf("failed to persist follow-up state: %w", err)
	}

	if _, err := s.repo.Message().Create(contact.ID, body, now); err != nil {
		return nil, fmt.Errorf("failed to append message log: %w", err)
	}

	s.cacheDelivery(deliveryID, contact.ID, now)

	if err := s.scheduler.Arm(address); err != nil {
		return nil, fmt.Errorf("failed to arm follow-up timer: %w", err)
	}

	s.logger.Info("follow-up started",
		zap.Int64("contact_id", contact.ID),
		zap.String("address", address),
		zap.String("delivery_id", deliveryID),
		zap.Time("escalation_at", scheduledAt))

	return &models.FollowUpResult{
		ContactID:   contact.ID,
		PhoneNumber: address,
		DeliveryID:  deliveryID,
		Body:        body,
	}, nil
}

// CancelFollowUp drops the timer for an address. The contact row is the
// caller's responsibility; this only touches the timer table.
func (s *followUpService) CancelFollowUp(phoneNumber string) bool {
	return s.scheduler.Cancel(transport.Normalize(phoneNumber))
}

func (s *followUpService) ActiveFollowUps() int {
	return s.scheduler.Active()
}

func (s *followUpService) BreakerStatus() (string, uint32, uint32) {
	requests, failures := s.breaker.GetCounts()
	return s.breaker.GetState(), requests, failures
}

// ReportOrphans logs contacts stuck in FOLLOWED_UP with a scheduled time in
// the past. Those timers died with a previous process and will never fire;
// the rows stay as they are so an operator can see and act on them.
func (s *followUpService) ReportOrphans() int {
	orphans, err := s.repo.Contact().ListOrphanedFollowUps(time.Now())
	if err != nil {
		s.logger.Error("failed to list orphaned follow-ups", zap.Error(err))
		return 0
	}

	for _, contact := range orphans {
		s.logger.Warn("orphaned follow-up: scheduled before this process started, will never fire",
			zap.Int64("contact_id", contact.ID),
			zap.String("address", contact.PhoneNumber),
			zap.Time("scheduled_at", contact.FollowUpScheduledAt.Time))
	}

	return len(orphans)
}

func (s *followUpService) Shutdown() {
	s.scheduler.Stop()
}

// handleExpiry is the timer-fire path. It re-reads persisted state before
// acting: any state other than FOLLOWED_UP means a reply (or an operator)
// got there first and the fire is a no-op. Errors here are logged and
// swallowed — nobody is waiting on this path, and a failure must not take
// the scheduling process down. On a send failure the contact stays in
// FOLLOWED_UP so the situation remains inspectable.
func (s *followUpService) handleExpiry(ctx context.Context, address string) {
	contact, err := s.repo.Contact().GetByPhone(address)
	if err != nil {
		s.logger.Error("expiry: failed to re-read contact",
			zap.String("address", address),
			zap.Error(err))
		return
	}
	if contact == nil {
		s.logger.Warn("expiry: contact no longer exists", zap.String("address", address))
		return
	}

	if contact.Status != models.ContactStatusFollowedUp {
		s.logger.Info("expiry: state changed before fire, skipping escalation",
			zap.String("address", address),
			zap.String("status", string(contact.Status)))
		return
	}

	body := s.generator.SecondMessage(ctx, contact.Name, contact.FirstMessage.String, contact.Context.String)

	var deliveryID string
	err = s.breaker.Execute(ctx, func() error {
		id, sendErr := s.transport.Send(ctx, address, body)
		if sendErr != nil {
			return sendErr
		}
		deliveryID = id
		return nil
	})
	if err != nil {
		s.logger.Error("expiry: escalation send failed, contact left in FOLLOWED_UP",
			zap.Int64("contact_id", contact.ID),
			zap.String("address", address),
			zap.Error(err))
		return
	}

	now := time.Now()

	transitioned, err := s.repo.Contact().CompleteReminder(contact.ID, body, now)
	if err != nil {
		s.logger.Error("expiry: failed to persist reminder state",
			zap.Int64("contact_id", contact.ID),
			zap.Error(err))
		return
	}
	if !transitioned {
		// A reply landed between the state re-read and this write. The
		// message went out either way, so it still belongs in the log.
		s.logger.Warn("expiry: reply arrived during escalation send, state left as written by reply",
			zap.Int64("contact_id", contact.ID),
			zap.String("address", address))
	}

	if _, err := s.repo.Message().Create(contact.ID, body, now); err != nil {
		s.logger.Error("expiry: failed to append message log",
			zap.Int64("contact_id", contact.ID),
			zap.Error(err))
		return
	}

	s.cacheDelivery(deliveryID, contact.ID, now)

	s.logger.Info("escalation sent",
		zap.Int64("contact_id", contact.ID),
		zap.String("address", address),
		zap.String("delivery_id", deliveryID),
		zap.Bool("transitioned", transitioned))
}

// cacheDelivery records delivery id -> contact in Redis. Best effort: a cache
// failure is logged and otherwise ignored.
func (s *followUpService) cacheDelivery(deliveryID string, contactID int64, sentAt time.Time) {
	if deliveryID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := fmt.Sprintf("delivery:%s", deliveryID)
	value := fmt.Sprintf("%d:%s", contactID, sentAt.Format(time.RFC3339))

	if err := s.redisClient.Set(ctx, key, value, deliveryCacheTTL).Err(); err != nil {
		s.logger.Warn("failed to cache delivery id",
			zap.String("delivery_id", deliveryID),
			zap.Error(err))
	}
}
