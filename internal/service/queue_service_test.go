package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/queueflow/queue-core/internal/domain"
	"github.com/queueflow/queue-core/internal/dto"
)

func newTestQueueService(qr *mockQueueRepo, tr *mockTicketRepo) (QueueService, *stubHub, *stubNotifier) {
	hub := newStubHub()
	notifier := &stubNotifier{}
	return NewQueueService(qr, tr, hub, notifier), hub, notifier
}

func TestCreateQueueAppliesDefaults(t *testing.T) {
	queueRepo := new(mockQueueRepo)
	queueRepo.On("Create", mock.Anything, mock.MatchedBy(func(q *domain.Queue) bool {
		return q.Name == "Pharmacy" &&
			q.MaxActiveTickets == domain.DefaultMaxActiveTickets &&
			q.AverageServiceTime == domain.DefaultAverageServiceTime &&
			q.IsActive
	})).Return(nil)

	svc, _, notifier := newTestQueueService(queueRepo, new(mockTicketRepo))
	queue, err := svc.CreateQueue(context.Background(), &dto.CreateQueueRequest{Name: "Pharmacy"})

	require.NoError(t, err)
	assert.NotEmpty(t, queue.ID)
	assert.True(t, queue.IsActive)
	queueRepo.AssertExpectations(t)

	// The queue-created forward is fired after the create commits
	assert.Eventually(t, func() bool {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		return notifier.called == 1
	}, time.Second, 10*time.Millisecond)
}

func TestCreateQueueEmptyName(t *testing.T) {
	svc, _, _ := newTestQueueService(new(mockQueueRepo), new(mockTicketRepo))
	queue, err := svc.CreateQueue(context.Background(), &dto.CreateQueueRequest{Name: "   "})

	assert.Nil(t, queue)
	assert.ErrorIs(t, err, domain.ErrInvalidQueueName)
}

func TestCreateQueueDuplicateName(t *testing.T) {
	queueRepo := new(mockQueueRepo)
	queueRepo.On("Create", mock.Anything, mock.Anything).Return(domain.ErrDuplicateQueueName)

	svc, _, _ := newTestQueueService(queueRepo, new(mockTicketRepo))
	queue, err := svc.CreateQueue(context.Background(), &dto.CreateQueueRequest{Name: "Pharmacy"})

	assert.Nil(t, queue)
	assert.ErrorIs(t, err, domain.ErrDuplicateQueueName)
}

func TestUpdateQueuePartialFields(t *testing.T) {
	existing := testQueue()
	queueRepo := new(mockQueueRepo)
	ticketRepo := new(mockTicketRepo)
	queueRepo.On("GetByID", mock.Anything, existing.ID).Return(existing, nil)
	queueRepo.On("Update", mock.Anything, mock.MatchedBy(func(q *domain.Queue) bool {
		return q.Name == "Pharmacy West" && q.AverageServiceTime == 120 &&
			q.MaxActiveTickets == existing.MaxActiveTickets
	})).Return(nil)
	ticketRepo.On("CountByStatus", mock.Anything, existing.ID, domain.StatusWaiting).Return(int64(2), nil).Maybe()

	svc, hub, _ := newTestQueueService(queueRepo, ticketRepo)
	name := "Pharmacy West"
	avg := int64(120)
	queue, err := svc.UpdateQueue(context.Background(), existing.ID, &dto.UpdateQueueRequest{
		Name:               &name,
		AverageServiceTime: &avg,
	})

	require.NoError(t, err)
	assert.Equal(t, "Pharmacy West", queue.Name)
	assert.Equal(t, int64(120), queue.AverageServiceTime)
	queueRepo.AssertExpectations(t)

	assert.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.statuses) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestDeactivateQueue(t *testing.T) {
	existing := testQueue()
	deactivated := *existing
	deactivated.IsActive = false

	queueRepo := new(mockQueueRepo)
	ticketRepo := new(mockTicketRepo)
	queueRepo.On("Deactivate", mock.Anything, existing.ID).Return(&deactivated, nil)
	ticketRepo.On("CountByStatus", mock.Anything, existing.ID, domain.StatusWaiting).Return(int64(0), nil).Maybe()

	svc, _, _ := newTestQueueService(queueRepo, ticketRepo)
	queue, err := svc.DeactivateQueue(context.Background(), existing.ID)

	require.NoError(t, err)
	assert.False(t, queue.IsActive)
}

func TestGetQueueStatusMath(t *testing.T) {
	existing := testQueue()
	existing.AverageServiceTime = 180

	queueRepo := new(mockQueueRepo)
	ticketRepo := new(mockTicketRepo)
	queueRepo.On("GetByID", mock.Anything, existing.ID).Return(existing, nil)
	ticketRepo.On("CountByStatus", mock.Anything, existing.ID, domain.StatusWaiting).Return(int64(7), nil)

	svc, _, _ := newTestQueueService(queueRepo, ticketRepo)
	status, err := svc.GetQueueStatus(context.Background(), existing.ID)

	require.NoError(t, err)
	assert.Equal(t, int64(7), status.TotalWaiting)
	assert.Equal(t, int64(7*180), status.AverageWaitTime)
	assert.True(t, status.IsActive)
}

func TestGetQueueStatusMissingQueue(t *testing.T) {
	queueRepo := new(mockQueueRepo)
	queueRepo.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrQueueNotFound)

	svc, _, _ := newTestQueueService(queueRepo, new(mockTicketRepo))
	status, err := svc.GetQueueStatus(context.Background(), "missing")

	assert.Nil(t, status)
	assert.ErrorIs(t, err, domain.ErrQueueNotFound)
}
