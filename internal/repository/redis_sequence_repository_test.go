package repository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgredis "github.com/queueflow/queue-core/pkg/redis"
)

// skipIfNoIntegration skips the test if INTEGRATION_TEST env var is not set
func skipIfNoIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}
}

func getRedisClient(t *testing.T) *pkgredis.Client {
	t.Helper()

	host := os.Getenv("TEST_REDIS_HOST")
	if host == "" {
		host = "localhost"
	}

	ctx := context.Background()
	client, err := pkgredis.NewClient(ctx, &pkgredis.Config{
		Host:          host,
		Port:          6379,
		Password:      os.Getenv("TEST_REDIS_PASSWORD"),
		DB:            15, // test database
		PoolSize:      10,
		MinIdleConns:  2,
		DialTimeout:   5 * time.Second,
		ReadTimeout:   3 * time.Second,
		WriteTimeout:  3 * time.Second,
		MaxRetries:    3,
		RetryInterval: time.Second,
	})
	require.NoError(t, err, "failed to create redis client")

	require.NoError(t, client.FlushDB(ctx).Err(), "failed to flush test database")
	return client
}

func TestRedisSequenceRepositoryIssue(t *testing.T) {
	skipIfNoIntegration(t)

	ctx := context.Background()
	client := getRedisClient(t)
	defer client.Close()

	repo := NewRedisSequenceRepository(client)
	require.NoError(t, repo.LoadScripts(ctx))

	day := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	for i := int64(1); i <= 3; i++ {
		got, err := repo.Issue(ctx, "queue-a", "PHA", day)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("PHA-%03d", i), got.TicketNumber)
		assert.Equal(t, i, got.Position)
		assert.Equal(t, i, got.Ordinal)
	}
}

func TestRedisSequenceRepositoryIsolatesQueuesAndDays(t *testing.T) {
	skipIfNoIntegration(t)

	ctx := context.Background()
	client := getRedisClient(t)
	defer client.Close()

	repo := NewRedisSequenceRepository(client)
	require.NoError(t, repo.LoadScripts(ctx))

	day := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	nextDay := day.AddDate(0, 0, 1)

	first, err := repo.Issue(ctx, "queue-a", "PHA", day)
	require.NoError(t, err)
	require.Equal(t, int64(1), first.Ordinal)

	// A different queue starts its own sequence
	other, err := repo.Issue(ctx, "queue-b", "LAB", day)
	require.NoError(t, err)
	assert.Equal(t, "LAB-001", other.TicketNumber)
	assert.Equal(t, int64(1), other.Position)

	// The same queue resets on the next calendar day
	tomorrow, err := repo.Issue(ctx, "queue-a", "PHA", nextDay)
	require.NoError(t, err)
	assert.Equal(t, "PHA-001", tomorrow.TicketNumber)
}

func TestRedisSequenceRepositoryConcurrentIssue(t *testing.T) {
	skipIfNoIntegration(t)

	ctx := context.Background()
	client := getRedisClient(t)
	defer client.Close()

	repo := NewRedisSequenceRepository(client)
	require.NoError(t, repo.LoadScripts(ctx))

	const n = 50
	day := time.Now().UTC()
	results := make(chan *IssueResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := repo.Issue(ctx, "queue-hot", "HOT", day)
			assert.NoError(t, err)
			results <- got
		}()
	}
	wg.Wait()
	close(results)

	numbers := make(map[string]bool, n)
	positions := make(map[int64]bool, n)
	for got := range results {
		require.NotNil(t, got)
		assert.False(t, numbers[got.TicketNumber], "duplicate number %s", got.TicketNumber)
		assert.False(t, positions[got.Position], "duplicate position %d", got.Position)
		numbers[got.TicketNumber] = true
		positions[got.Position] = true
	}
	assert.Len(t, numbers, n)
}

func TestRedisSequenceRepositoryEvalFallback(t *testing.T) {
	skipIfNoIntegration(t)

	ctx := context.Background()
	client := getRedisClient(t)
	defer client.Close()

	// No LoadScripts: the first call must fall back to EVAL
	repo := NewRedisSequenceRepository(client)
	got, err := repo.Issue(ctx, "queue-a", "PHA", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, "PHA-001", got.TicketNumber)
}
