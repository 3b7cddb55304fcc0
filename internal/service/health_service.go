package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/popeskul/whatsapp-followup/internal/models"
	"github.com/popeskul/whatsapp-followup/internal/repository"
)

const (
	componentConnected    = "connected"
	componentDisconnected = "disconnected"
)

type healthService struct {
	repo        repository.Repository
	redisClient *redis.Client
	followUp    FollowUpService
}

func NewHealthService(
	repo repository.Repository,
	redisClient *redis.Client,
	followUp FollowUpService,
) HealthService {
	return &healthService{
		repo:        repo,
		redisClient: redisClient,
		followUp:    followUp,
	}
}

func (s *healthService) GetHealth() *models.HealthResponse {
	status := &models.HealthResponse{
		Status:          models.HealthStatusHealthy,
		DatabaseStatus:  s.checkDatabaseHealth(),
		RedisStatus:     s.checkRedisHealth(),
		ActiveFollowUps: s.followUp.ActiveFollowUps(),
	}

	state, requests, failures := s.followUp.BreakerStatus()
	status.CircuitBreakerState = state
	if requests > 0 {
		failureRate := float64(failures) / float64(requests) * 100
		status.CircuitBreakerCounts = fmt.Sprintf("Requests: %d, Failures: %d (%.1f%%)", requests, failures, failureRate)
	} else {
		status.CircuitBreakerCounts = "No requests yet"
	}

	if status.DatabaseStatus != componentConnected || status.RedisStatus != componentConnected {
		status.Status = models.HealthStatusUnhealthy
	} else if state == BreakerStateOpen {
		status.Status = models.HealthStatusDegraded
	}

	return status
}

func (s *healthService) checkDatabaseHealth() string {
	if err := s.repo.Ping(); err != nil {
		return componentDisconnected
	}
	return componentConnected
}

func (s *healthService) checkRedisHealth() string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.redisClient.Ping(ctx).Err(); err != nil {
		return componentDisconnected
	}
	return componentConnected
}
