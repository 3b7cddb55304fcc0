package service

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/popeskul/whatsapp-followup/internal/models"
	"github.com/popeskul/whatsapp-followup/internal/repository"
	"github.com/popeskul/whatsapp-followup/internal/transport"
)

type contactService struct {
	repo   repository.Repository
	logger *zap.Logger
}

func NewContactService(repo repository.Repository, logger *zap.Logger) ContactService {
	return &contactService{
		repo:   repo,
		logger: logger,
	}
}

func (s *contactService) ListContacts() ([]*models.Contact, error) {
	return s.repo.Contact().List()
}

func (s *contactService) GetContactByPhone(phoneNumber string) (*models.Contact, error) {
	address := transport.Normalize(phoneNumber)
	if address == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, phoneNumber)
	}

	contact, err := s.repo.Contact().GetByPhone(address)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, ErrContactNotFound
	}

	return contact, nil
}

func (s *contactService) UpdateContactStatus(id int64, status models.ContactStatus) (*models.Contact, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	contact, err := s.repo.Contact().UpdateStatus(id, status)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, ErrContactNotFound
	}

	s.logger.Info("contact status updated by operator",
		zap.Int64("contact_id", id),
		zap.String("status", string(status)))

	return contact, nil
}

func (s *contactService) RemoveContact(id int64) error {
	return s.repo.Contact().Remove(id)
}
