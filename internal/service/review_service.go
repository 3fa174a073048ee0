package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/folio-go-api/internal/dto"
	"github.com/noah-isme/folio-go-api/internal/models"
	"github.com/noah-isme/folio-go-api/internal/repository"
)

const reviewQueueCacheKey = "review:queue"

// ReviewService lists documents waiting for teacher review.
type ReviewService interface {
	Queue(ctx context.Context) ([]dto.DocumentResponse, error)
	Invalidate(ctx context.Context)
}

type reviewService struct {
	documents repository.DocumentRepository
	cache     *redis.Client
	cacheTTL  time.Duration
	logger    zerolog.Logger
}

// NewReviewService builds the review queue reader with a cache-aside layer.
func NewReviewService(documents repository.DocumentRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) ReviewService {
	return &reviewService{
		documents: documents,
		cache:     cache,
		cacheTTL:  ttl,
		logger:    logger.With().Str("component", "review_service").Logger(),
	}
}

func (s *reviewService) Queue(ctx context.Context) ([]dto.DocumentResponse, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, reviewQueueCacheKey).Result(); err == nil {
			var queue []dto.DocumentResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &queue); unmarshalErr == nil {
				s.logger.Debug().Msg("review queue cache hit")
				return queue, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read review queue cache")
		}
	}

	status := models.StatusSubmitted
	docs, err := s.documents.List(ctx, repository.DocumentFilter{Status: &status})
	if err != nil {
		return nil, err
	}

	queue := dto.NewDocumentResponseSlice(docs)

	if s.cache != nil {
		if payload, err := json.Marshal(queue); err == nil {
			if err := s.cache.Set(ctx, reviewQueueCacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store review queue cache")
			}
		}
	}

	return queue, nil
}

// Invalidate drops the cached queue; called after every lifecycle transition.
func (s *reviewService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Del(ctx, reviewQueueCacheKey).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate review queue cache")
	}
}
