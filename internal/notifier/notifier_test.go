package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queueflow/queue-core/internal/domain"
)

func testTicket() *domain.Ticket {
	calledAt := time.Now().UTC()
	return &domain.Ticket{
		ID:           "t1",
		QueueID:      "q1",
		UserID:       "user-1",
		TicketNumber: "PHA-001",
		Status:       domain.StatusCalled,
		Position:     1,
		CalledAt:     &calledAt,
	}
}

func TestNotifyTicketCalledDeliversPayload(t *testing.T) {
	var got ticketCalledPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/notifications/ticket-called", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(&Config{BaseURL: srv.URL})
	queue := domain.NewQueue("q1", "Pharmacy", "", 0, 0)
	err := client.NotifyTicketCalled(context.Background(), testTicket(), queue)

	require.NoError(t, err)
	assert.Equal(t, "PHA-001", got.TicketNumber)
	assert.Equal(t, "Pharmacy", got.QueueName)
	assert.Equal(t, "user-1", got.UserID)
}

func TestNotifyQueueCreated(t *testing.T) {
	var got queueCreatedPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/notifications/queue-created", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewClient(&Config{BaseURL: srv.URL})
	err := client.NotifyQueueCreated(context.Background(), domain.NewQueue("q1", "Pharmacy", "walk-ins", 0, 0))

	require.NoError(t, err)
	assert.Equal(t, "q1", got.QueueID)
	assert.Equal(t, "walk-ins", got.Description)
}

func TestRemoteErrorClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(&Config{BaseURL: srv.URL})
	err := client.NotifyTicketCalled(context.Background(), testTicket(), domain.NewQueue("q1", "Pharmacy", "", 0, 0))

	assert.ErrorIs(t, err, domain.ErrNotifierRemote)
	assert.Contains(t, err.Error(), "500")
	assert.True(t, domain.IsDependencyError(err))
}

func TestTimeoutClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(&Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	err := client.NotifyTicketCalled(context.Background(), testTicket(), domain.NewQueue("q1", "Pharmacy", "", 0, 0))

	assert.ErrorIs(t, err, domain.ErrNotifierTimeout)
}

func TestConnectionRefusedClassification(t *testing.T) {
	// A server that is already closed refuses new connections
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient(&Config{BaseURL: url})
	err := client.NotifyTicketCalled(context.Background(), testTicket(), domain.NewQueue("q1", "Pharmacy", "", 0, 0))

	assert.ErrorIs(t, err, domain.ErrNotifierUnreachable)
}

func TestDisabledForwardingIsSilent(t *testing.T) {
	client := NewClient(&Config{})
	err := client.NotifyTicketCalled(context.Background(), testTicket(), domain.NewQueue("q1", "Pharmacy", "", 0, 0))
	assert.NoError(t, err)
}
