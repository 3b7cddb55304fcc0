package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/popeskul/whatsapp-followup/internal/config"
	"github.com/popeskul/whatsapp-followup/internal/models"
	"github.com/popeskul/whatsapp-followup/internal/repository/mocks"
)

const testAddress = "+33612345678"

func testConfig(delay time.Duration) *config.Config {
	return &config.Config{
		Twilio: config.TwilioConfig{
			CircuitBreaker: config.CircuitBreakerConfig{
				MaxRequests:      3,
				Interval:         60,
				Timeout:          60,
				FailureRatio:     0.6,
				ConsecutiveFails: 5,
			},
		},
		FollowUp: config.FollowUpConfig{
			Delay:      delay,
			AckMessage: "Merci pour votre message! Nous vous répondrons sous peu.",
		},
	}
}

type sentMessage struct {
	to   string
	body string
}

// fakeTransport records sends and can be told to fail.
type fakeTransport struct {
	mu    sync.Mutex
	sends []sentMessage
	err   error
}

func (f *fakeTransport) Send(_ context.Context, to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return "", f.err
	}
	f.sends = append(f.sends, sentMessage{to: to, body: body})
	return fmt.Sprintf("SM%04d", len(f.sends)), nil
}

func (f *fakeTransport) sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]sentMessage, len(f.sends))
	copy(out, f.sends)
	return out
}

// fakeGenerator produces deterministic bodies.
type fakeGenerator struct{}

func (fakeGenerator) Plan(_ context.Context, name, _ string) []string {
	return []string{"Contacter " + name}
}

func (fakeGenerator) FirstMessage(_ context.Context, name, _ string) string {
	return "Bonjour " + name
}

func (fakeGenerator) SecondMessage(_ context.Context, name, _, _ string) string {
	return "Relance " + name
}

type followUpFixture struct {
	svc         FollowUpService
	contactRepo *mocks.MockContactRepository
	messageRepo *mocks.MockMessageRepository
	transport   *fakeTransport
	redisServer *miniredis.Miniredis
}

func newFollowUpFixture(t *testing.T, delay time.Duration) *followUpFixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)
	contactRepo := mocks.NewMockContactRepository(ctrl)
	messageRepo := mocks.NewMockMessageRepository(ctrl)
	repo.EXPECT().Contact().Return(contactRepo).AnyTimes()
	repo.EXPECT().Message().Return(messageRepo).AnyTimes()

	redisServer := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: redisServer.Addr()})

	tr := &fakeTransport{}

	svc := NewFollowUpService(testConfig(delay), repo, redisClient, tr, fakeGenerator{}, zap.NewNop())
	t.Cleanup(svc.Shutdown)

	return &followUpFixture{
		svc:         svc,
		contactRepo: contactRepo,
		messageRepo: messageRepo,
		transport:   tr,
		redisServer: redisServer,
	}
}

func TestFollowUpService_StartFollowUp_NewContact(t *testing.T) {
	f := newFollowUpFixture(t, time.Hour)

	contact := &models.Contact{ID: 1, Name: "Alice", PhoneNumber: testAddress, Status: models.ContactStatusNotContacted}

	f.contactRepo.EXPECT().GetByPhone(testAddress).Return(nil, nil)
	f.contactRepo.EXPECT().Create("Alice", testAddress).Return(contact, nil)
	f.contactRepo.EXPECT().MarkFollowedUp(int64(1), "Bonjour Alice", "devis", gomock.Any(), gomock.Any()).Return(nil)
	f.messageRepo.EXPECT().Create(int64(1), "Bonjour Alice", gomock.Any()).Return(&models.Message{ID: 1}, nil)

	result, err := f.svc.StartFollowUp(context.Background(), "whatsapp:+33 612 345 678", "Alice", "devis")
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.ContactID)
	assert.Equal(t, testAddress, result.PhoneNumber)
	assert.Equal(t, "Bonjour Alice", result.Body)
	assert.Equal(t, "SM0001", result.DeliveryID)

	assert.Equal(t, 1, f.svc.ActiveFollowUps())

	sends := f.transport.sent()
	require.Len(t, sends, 1)
	assert.Equal(t, testAddress, sends[0].to)

	cached, err := f.redisServer.Get("delivery:SM0001")
	require.NoError(t, err)
	assert.Contains(t, cached, "1:")
}

func TestFollowUpService_StartFollowUp_ExistingContact(t *testing.T) {
	f := newFollowUpFixture(t, time.Hour)

	contact := &models.Contact{ID: 7, Name: "Bob", PhoneNumber: testAddress, Status: models.ContactStatusAccepted}

	f.contactRepo.EXPECT().GetByPhone(testAddress).Return(contact, nil)
	f.contactRepo.EXPECT().MarkFollowedUp(int64(7), "Bonjour Bob", "", gomock.Any(), gomock.Any()).Return(nil)
	f.messageRepo.EXPECT().Create(int64(7), "Bonjour Bob", gomock.Any()).Return(&models.Message{ID: 2}, nil)

	result, err := f.svc.StartFollowUp(context.Background(), testAddress, "Bob", "")
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.ContactID)
}

func TestFollowUpService_StartFollowUp_InvalidAddress(t *testing.T) {
	f := newFollowUpFixture(t, time.Hour)

	_, err := f.svc.StartFollowUp(context.Background(), "not-a-number", "Alice", "")
	assert.ErrorIs(t, err, ErrInvalidAddress)
	assert.Equal(t, 0, f.svc.ActiveFollowUps())
}

func TestFollowUpService_StartFollowUp_SendFailureMarksInvalid(t *testing.T) {
	f := newFollowUpFixture(t, time.Hour)
	f.transport.err = errors.New("twilio: 21211 invalid number")

	contact := &models.Contact{ID: 3, Name: "Carol", PhoneNumber: testAddress, Status: models.ContactStatusNotContacted}

	f.contactRepo.EXPECT().GetByPhone(testAddress).Return(nil, nil)
	f.contactRepo.EXPECT().Create("Carol", testAddress).Return(contact, nil)
	f.contactRepo.EXPECT().MarkInvalid(int64(3)).Return(nil)

	_, err := f.svc.StartFollowUp(context.Background(), testAddress, "Carol", "")
	require.Error(t, err)

	// No timer is armed on a failed send.
	assert.Equal(t, 0, f.svc.ActiveFollowUps())
}

func TestFollowUpService_EscalationFires(t *testing.T) {
	f := newFollowUpFixture(t, 40*time.Millisecond)

	contact := &models.Contact{ID: 1, Name: "Alice", PhoneNumber: testAddress, Status: models.ContactStatusNotContacted}
	followedUp := &models.Contact{
		ID:           1,
		Name:         "Alice",
		PhoneNumber:  testAddress,
		Status:       models.ContactStatusFollowedUp,
		FirstMessage: sql.NullString{String: "Bonjour Alice", Valid: true},
		Context:      sql.NullString{String: "devis", Valid: true},
	}

	f.contactRepo.EXPECT().GetByPhone(testAddress).Return(nil, nil)
	f.contactRepo.EXPECT().Create("Alice", testAddress).Return(contact, nil)
	f.contactRepo.EXPECT().MarkFollowedUp(int64(1), "Bonjour Alice", "devis", gomock.Any(), gomock.Any()).Return(nil)
	f.messageRepo.EXPECT().Create(int64(1), "Bonjour Alice", gomock.Any()).Return(&models.Message{ID: 1}, nil)

	// Expiry path: re-read still FOLLOWED_UP, so the reminder goes out.
	f.contactRepo.EXPECT().GetByPhone(testAddress).Return(followedUp, nil)
	f.contactRepo.EXPECT().CompleteReminder(int64(1), "Relance Alice", gomock.Any()).Return(true, nil)

	done := make(chan struct{})
	f.messageRepo.EXPECT().Create(int64(1), "Relance Alice", gomock.Any()).
		DoAndReturn(func(int64, string, time.Time) (*models.Message, error) {
			close(done)
			return &models.Message{ID: 2}, nil
		})

	_, err := f.svc.StartFollowUp(context.Background(), testAddress, "Alice", "devis")
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for escalation")
	}

	sends := f.transport.sent()
	require.Len(t, sends, 2)
	assert.Equal(t, "Bonjour Alice", sends[0].body)
	assert.Equal(t, "Relance Alice", sends[1].body)

	assert.Equal(t, 0, f.svc.ActiveFollowUps())
}

func TestFollowUpService_CancelPreventsEscalation(t *testing.T) {
	f := newFollowUpFixture(t, 50*time.Millisecond)

	contact := &models.Contact{ID: 1, Name: "Alice", PhoneNumber: testAddress, Status: models.ContactStatusNotContacted}

	f.contactRepo.EXPECT().GetByPhone(testAddress).Return(nil, nil)
	f.contactRepo.EXPECT().Create("Alice", testAddress).Return(contact, nil)
	f.contactRepo.EXPECT().MarkFollowedUp(int64(1), "Bonjour Alice", "", gomock.Any(), gomock.Any()).Return(nil)
	f.messageRepo.EXPECT().Create(int64(1), "Bonjour Alice", gomock.Any()).Return(&models.Message{ID: 1}, nil)

	_, err := f.svc.StartFollowUp(context.Background(), testAddress, "Alice", "")
	require.NoError(t, err)

	// The webhook cancels with the raw channel-prefixed address.
	assert.True(t, f.svc.CancelFollowUp("whatsapp:"+testAddress))
	assert.Equal(t, 0, f.svc.ActiveFollowUps())

	time.Sleep(200 * time.Millisecond)

	// Only the first message ever went out.
	assert.Len(t, f.transport.sent(), 1)
}

func TestFollowUpService_ExpirySkipsWhenStateChanged(t *testing.T) {
	f := newFollowUpFixture(t, 40*time.Millisecond)

	contact := &models.Contact{ID: 1, Name: "Alice", PhoneNumber: testAddress, Status: models.ContactStatusNotContacted}
	accepted := &models.Contact{ID: 1, Name: "Alice", PhoneNumber: testAddress, Status: models.ContactStatusAccepted}

	f.contactRepo.EXPECT().GetByPhone(testAddress).Return(nil, nil)
	f.contactRepo.EXPECT().Create("Alice", testAddress).Return(contact, nil)
	f.contactRepo.EXPECT().MarkFollowedUp(int64(1), "Bonjour Alice", "", gomock.Any(), gomock.Any()).Return(nil)
	f.messageRepo.EXPECT().Create(int64(1), "Bonjour Alice", gomock.Any()).Return(&models.Message{ID: 1}, nil)

	// The reply persisted first; the fire backs off on the state re-read.
	fired := make(chan struct{})
	f.contactRepo.EXPECT().GetByPhone(testAddress).
		DoAndReturn(func(string) (*models.Contact, error) {
			close(fired)
			return accepted, nil
		})

	_, err := f.svc.StartFollowUp(context.Background(), testAddress, "Alice", "")
	require.NoError(t, err)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for timer to fire")
	}
	time.Sleep(50 * time.Millisecond)

	assert.Len(t, f.transport.sent(), 1)
}

func TestFollowUpService_EscalationLosesStateRace(t *testing.T) {
	f := newFollowUpFixture(t, 40*time.Millisecond)

	contact := &models.Contact{ID: 1, Name: "Alice", PhoneNumber: testAddress, Status: models.ContactStatusNotContacted}
	followedUp := &models.Contact{
		ID:           1,
		Name:         "Alice",
		PhoneNumber:  testAddress,
		Status:       models.ContactStatusFollowedUp,
		FirstMessage: sql.NullString{String: "Bonjour Alice", Valid: true},
	}

	f.contactRepo.EXPECT().GetByPhone(testAddress).Return(nil, nil)
	f.contactRepo.EXPECT().Create("Alice", testAddress).Return(contact, nil)
	f.contactRepo.EXPECT().MarkFollowedUp(int64(1), "Bonjour Alice", "", gomock.Any(), gomock.Any()).Return(nil)
	f.messageRepo.EXPECT().Create(int64(1), "Bonjour Alice", gomock.Any()).Return(&models.Message{ID: 1}, nil)

	f.contactRepo.EXPECT().GetByPhone(testAddress).Return(followedUp, nil)
	// A reply landed between the re-read and the write: the transition is
	// lost, but the sent reminder still lands in the message log.
	f.contactRepo.EXPECT().CompleteReminder(int64(1), "Relance Alice", gomock.Any()).Return(false, nil)

	done := make(chan struct{})
	f.messageRepo.EXPECT().Create(int64(1), "Relance Alice", gomock.Any()).
		DoAndReturn(func(int64, string, time.Time) (*models.Message, error) {
			close(done)
			return &models.Message{ID: 2}, nil
		})

	_, err := f.svc.StartFollowUp(context.Background(), testAddress, "Alice", "")
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for escalation")
	}

	assert.Len(t, f.transport.sent(), 2)
}

func TestFollowUpService_RestartSequenceLastCallWins(t *testing.T) {
	f := newFollowUpFixture(t, time.Hour)

	contact := &models.Contact{ID: 1, Name: "Alice", PhoneNumber: testAddress, Status: models.ContactStatusNotContacted}

	f.contactRepo.EXPECT().GetByPhone(testAddress).Return(nil, nil)
	f.contactRepo.EXPECT().Create("Alice", testAddress).Return(contact, nil)
	f.contactRepo.EXPECT().GetByPhone(testAddress).Return(contact, nil)
	f.contactRepo.EXPECT().MarkFollowedUp(int64(1), "Bonjour Alice", "", gomock.Any(), gomock.Any()).Return(nil).Times(2)
	f.messageRepo.EXPECT().Create(int64(1), "Bonjour Alice", gomock.Any()).Return(&models.Message{}, nil).Times(2)

	_, err := f.svc.StartFollowUp(context.Background(), testAddress, "Alice", "")
	require.NoError(t, err)
	_, err = f.svc.StartFollowUp(context.Background(), testAddress, "Alice", "")
	require.NoError(t, err)

	// Two messages went out, but only one timer is live.
	assert.Len(t, f.transport.sent(), 2)
	assert.Equal(t, 1, f.svc.ActiveFollowUps())
}

func TestFollowUpService_ReportOrphans(t *testing.T) {
	f := newFollowUpFixture(t, time.Hour)

	t.Run("logs and counts stale follow-ups", func(t *testing.T) {
		orphans := []*models.Contact{
			{
				ID:                  1,
				PhoneNumber:         testAddress,
				Status:              models.ContactStatusFollowedUp,
				FollowUpScheduledAt: sql.NullTime{Time: time.Now().Add(-time.Hour), Valid: true},
			},
		}
		f.contactRepo.EXPECT().ListOrphanedFollowUps(gomock.Any()).Return(orphans, nil)

		assert.Equal(t, 1, f.svc.ReportOrphans())
	})

	t.Run("returns zero on repository error", func(t *testing.T) {
		f.contactRepo.EXPECT().ListOrphanedFollowUps(gomock.Any()).Return(nil, errors.New("db down"))

		assert.Equal(t, 0, f.svc.ReportOrphans())
	})
}

func TestFollowUpService_BreakerStatus(t *testing.T) {
	f := newFollowUpFixture(t, time.Hour)

	state, requests, failures := f.svc.BreakerStatus()
	assert.Equal(t, BreakerStateClosed, state)
	assert.Zero(t, requests)
	assert.Zero(t, failures)
}
