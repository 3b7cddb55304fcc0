package service

import (
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/popeskul/whatsapp-followup/internal/config"
	"github.com/popeskul/whatsapp-followup/internal/genai"
	"github.com/popeskul/whatsapp-followup/internal/repository"
	"github.com/popeskul/whatsapp-followup/internal/transport"
)

type Service struct {
	FollowUp FollowUpService
	Inbound  InboundService
	Contact  ContactService
	Message  MessageService
	Health   HealthService
}

func NewService(
	cfg *config.Config,
	repo repository.Repository,
	redisClient *redis.Client,
	tr transport.Transport,
	generator genai.Generator,
	logger *zap.Logger,
) *Service {
	followUpService := NewFollowUpService(cfg, repo, redisClient, tr, generator, logger)
	inboundService := NewInboundService(cfg, repo, followUpService, logger)
	contactService := NewContactService(repo, logger)
	messageService := NewMessageService(repo, logger)
	healthService := NewHealthService(repo, redisClient, followUpService)

	return &Service{
		FollowUp: followUpService,
		Inbound:  inboundService,
		Contact:  contactService,
		Message:  messageService,
		Health:   healthService,
	}
}
