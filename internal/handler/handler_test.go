package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/queueflow/queue-core/internal/domain"
	"github.com/queueflow/queue-core/internal/dto"
	"github.com/queueflow/queue-core/internal/hub"
	"github.com/queueflow/queue-core/pkg/response"
)

type mockQueueService struct {
	mock.Mock
}

func (m *mockQueueService) CreateQueue(ctx context.Context, req *dto.CreateQueueRequest) (*domain.Queue, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Queue), args.Error(1)
}

func (m *mockQueueService) GetQueue(ctx context.Context, id string) (*domain.Queue, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Queue), args.Error(1)
}

func (m *mockQueueService) ListQueues(ctx context.Context) ([]*domain.Queue, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Queue), args.Error(1)
}

func (m *mockQueueService) UpdateQueue(ctx context.Context, id string, req *dto.UpdateQueueRequest) (*domain.Queue, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Queue), args.Error(1)
}

func (m *mockQueueService) DeactivateQueue(ctx context.Context, id string) (*domain.Queue, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Queue), args.Error(1)
}

func (m *mockQueueService) GetQueueStatus(ctx context.Context, id string) (*domain.QueueStatus, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueueStatus), args.Error(1)
}

type mockTicketService struct {
	mock.Mock
}

func (m *mockTicketService) CreateTicket(ctx context.Context, req *dto.CreateTicketRequest) (*domain.Ticket, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *mockTicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *mockTicketService) ListQueueTickets(ctx context.Context, queueID string, status domain.TicketStatus) ([]*domain.Ticket, error) {
	args := m.Called(ctx, queueID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Ticket), args.Error(1)
}

func (m *mockTicketService) ListUserTickets(ctx context.Context, userID string) ([]*domain.Ticket, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Ticket), args.Error(1)
}

func (m *mockTicketService) CurrentTicket(ctx context.Context, queueID string) (*domain.Ticket, error) {
	args := m.Called(ctx, queueID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *mockTicketService) CallNext(ctx context.Context, queueID string) (*domain.Ticket, error) {
	args := m.Called(ctx, queueID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *mockTicketService) ServeTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *mockTicketService) CancelTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *mockTicketService) ExpireStale(ctx context.Context, ttl time.Duration) ([]*domain.Ticket, error) {
	args := m.Called(ctx, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Ticket), args.Error(1)
}

func setupRouter(qs *mockQueueService, ts *mockTicketService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r,
		NewQueueHandler(qs, ts),
		NewTicketHandler(ts),
		NewHealthHandler(nil),
		hub.NewRegistry(hub.Config{}),
	)
	return r
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var env response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func sampleTicket() *domain.Ticket {
	return &domain.Ticket{
		ID:           "t1",
		QueueID:      "q1",
		TicketNumber: "PHA-001",
		Status:       domain.StatusWaiting,
		Priority:     domain.PriorityNormal,
		Position:     1,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestCreateTicketEndpoint(t *testing.T) {
	ts := new(mockTicketService)
	ts.On("CreateTicket", mock.Anything, mock.MatchedBy(func(req *dto.CreateTicketRequest) bool {
		return req.QueueID == "q1" && req.UserID == "user-1"
	})).Return(sampleTicket(), nil)

	r := setupRouter(new(mockQueueService), ts)
	w := doJSON(r, http.MethodPost, "/api/v1/tickets", gin.H{"queue_id": "q1", "user_id": "user-1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	env := decodeEnvelope(t, w)
	assert.True(t, env.Success)
	ts.AssertExpectations(t)
}

func TestCreateTicketMissingQueueID(t *testing.T) {
	r := setupRouter(new(mockQueueService), new(mockTicketService))
	w := doJSON(r, http.MethodPost, "/api/v1/tickets", gin.H{"user_id": "user-1"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestCreateTicketInactiveQueueMapsToConflict(t *testing.T) {
	ts := new(mockTicketService)
	ts.On("CreateTicket", mock.Anything, mock.Anything).Return(nil, domain.ErrQueueInactive)

	r := setupRouter(new(mockQueueService), ts)
	w := doJSON(r, http.MethodPost, "/api/v1/tickets", gin.H{"queue_id": "q1"})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "QUEUE_INACTIVE", decodeEnvelope(t, w).Error.Code)
}

func TestCallNextEndpoint(t *testing.T) {
	called := sampleTicket()
	called.Status = domain.StatusCalled
	ts := new(mockTicketService)
	ts.On("CallNext", mock.Anything, "q1").Return(called, nil)

	r := setupRouter(new(mockQueueService), ts)
	w := doJSON(r, http.MethodPost, "/api/v1/queues/q1/call-next", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCallNextEmptyQueueMapsToNotFoundWithCode(t *testing.T) {
	ts := new(mockTicketService)
	ts.On("CallNext", mock.Anything, "q1").Return(nil, domain.ErrQueueEmpty)

	r := setupRouter(new(mockQueueService), ts)
	w := doJSON(r, http.MethodPost, "/api/v1/queues/q1/call-next", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "QUEUE_EMPTY", decodeEnvelope(t, w).Error.Code)
}

func TestServeInvalidTransitionMapsToConflict(t *testing.T) {
	ts := new(mockTicketService)
	ts.On("ServeTicket", mock.Anything, "t1").Return(nil, domain.ErrInvalidTransition)

	r := setupRouter(new(mockQueueService), ts)
	w := doJSON(r, http.MethodPut, "/api/v1/tickets/t1/serve", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_TRANSITION", decodeEnvelope(t, w).Error.Code)
}

func TestCurrentTicketEmptyIsNull(t *testing.T) {
	ts := new(mockTicketService)
	ts.On("CurrentTicket", mock.Anything, "q1").Return(nil, domain.ErrTicketNotFound)

	r := setupRouter(new(mockQueueService), ts)
	w := doJSON(r, http.MethodGet, "/api/v1/queues/q1/tickets/current", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.True(t, env.Success)
	assert.Nil(t, env.Data)
}

func TestQueueStatusEndpoint(t *testing.T) {
	qs := new(mockQueueService)
	qs.On("GetQueueStatus", mock.Anything, "q1").Return(&domain.QueueStatus{
		QueueID:         "q1",
		TotalWaiting:    4,
		AverageWaitTime: 1200,
		IsActive:        true,
	}, nil)

	r := setupRouter(qs, new(mockTicketService))
	w := doJSON(r, http.MethodGet, "/api/v1/queues/q1/status", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	data := env.Data.(map[string]any)
	assert.Equal(t, float64(4), data["total_waiting"])
	assert.Equal(t, float64(1200), data["average_wait_time"])
}

func TestQueueTicketsRejectsUnknownStatus(t *testing.T) {
	ts := new(mockTicketService)
	ts.On("ListQueueTickets", mock.Anything, "q1", domain.TicketStatus("BOGUS")).
		Return(nil, domain.ErrInvalidTicketStatus)

	r := setupRouter(new(mockQueueService), ts)
	w := doJSON(r, http.MethodGet, "/api/v1/queues/q1/tickets?status=BOGUS", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateQueueDuplicateMapsToConflict(t *testing.T) {
	qs := new(mockQueueService)
	qs.On("CreateQueue", mock.Anything, mock.Anything).Return(nil, domain.ErrDuplicateQueueName)

	r := setupRouter(qs, new(mockTicketService))
	w := doJSON(r, http.MethodPost, "/api/v1/queues", gin.H{"name": "Pharmacy"})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE_QUEUE_NAME", decodeEnvelope(t, w).Error.Code)
}

func TestUnknownErrorMapsToInternal(t *testing.T) {
	qs := new(mockQueueService)
	qs.On("ListQueues", mock.Anything).Return(nil, errors.New("connection reset"))

	r := setupRouter(qs, new(mockTicketService))
	w := doJSON(r, http.MethodGet, "/api/v1/queues", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeEnvelope(t, w).Error.Code)
}

type stubCheck struct{ err error }

func (s stubCheck) HealthCheck(_ context.Context) error { return s.err }

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("healthy", func(t *testing.T) {
		r := gin.New()
		h := NewHealthHandler(map[string]HealthChecker{
			"postgres": stubCheck{},
			"redis":    stubCheck{},
		})
		r.GET("/health", h.Check)

		w := doJSON(r, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("degraded", func(t *testing.T) {
		r := gin.New()
		h := NewHealthHandler(map[string]HealthChecker{
			"postgres": stubCheck{},
			"redis":    stubCheck{err: errors.New("connection refused")},
		})
		r.GET("/health", h.Check)

		w := doJSON(r, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
