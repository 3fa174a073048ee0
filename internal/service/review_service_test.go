package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/folio-go-api/internal/models"
)

func newReviewFixture(t *testing.T) (ReviewService, *memoryDocumentRepo, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	repo := newMemoryDocumentRepo()
	service := NewReviewService(repo, client, time.Minute, testLogger())
	return service, repo, mr
}

func TestQueueListsSubmittedDocuments(t *testing.T) {
	service, repo, _ := newReviewFixture(t)

	submitted := completeDocument(1)
	submitted.Status = models.StatusSubmitted
	seedDocument(t, repo, submitted)
	seedDocument(t, repo, completeDocument(2)) // still a draft

	queue, err := service.Queue(context.Background())
	require.NoError(t, err)
	require.Len(t, queue, 1)
	require.Equal(t, models.StatusSubmitted, queue[0].Status)
}

func TestQueueServesSecondReadFromCache(t *testing.T) {
	service, repo, _ := newReviewFixture(t)

	submitted := completeDocument(1)
	submitted.Status = models.StatusSubmitted
	seedDocument(t, repo, submitted)

	_, err := service.Queue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, repo.listCallCount())

	queue, err := service.Queue(context.Background())
	require.NoError(t, err)
	require.Len(t, queue, 1)
	require.Equal(t, 1, repo.listCallCount(), "second read must come from cache")
}

func TestInvalidateDropsCachedQueue(t *testing.T) {
	service, repo, _ := newReviewFixture(t)

	submitted := completeDocument(1)
	submitted.Status = models.StatusSubmitted
	seedDocument(t, repo, submitted)

	_, err := service.Queue(context.Background())
	require.NoError(t, err)

	service.Invalidate(context.Background())

	_, err = service.Queue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, repo.listCallCount())
}

func TestQueueSurvivesCorruptCacheEntry(t *testing.T) {
	service, repo, mr := newReviewFixture(t)

	submitted := completeDocument(1)
	submitted.Status = models.StatusSubmitted
	seedDocument(t, repo, submitted)

	require.NoError(t, mr.Set("review:queue", "{not json"))

	queue, err := service.Queue(context.Background())
	require.NoError(t, err)
	require.Len(t, queue, 1)
	require.Equal(t, 1, repo.listCallCount())
}
