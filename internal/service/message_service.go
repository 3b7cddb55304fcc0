package service

import (
	"go.uber.org/zap"

	"github.com/popeskul/whatsapp-followup/internal/models"
	"github.com/popeskul/whatsapp-followup/internal/repository"
)

type messageService struct {
	repo   repository.Repository
	logger *zap.Logger
}

func NewMessageService(repo repository.Repository, logger *zap.Logger) MessageService {
	return &messageService{
		repo:   repo,
		logger: logger,
	}
}

func (s *messageService) ListMessages() ([]*models.Message, error) {
	return s.repo.Message().List()
}

func (s *messageService) ListContactMessages(contactID int64) ([]*models.Message, error) {
	return s.repo.Message().ListByContact(contactID)
}

func (s *messageService) GetMessage(id int64) (*models.Message, error) {
	message, err := s.repo.Message().GetByID(id)
	if err != nil {
		return nil, err
	}
	if message == nil {
		return nil, ErrMessageNotFound
	}

	return message, nil
}
