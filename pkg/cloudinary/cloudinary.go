package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"

	"github.com/noah-isme/folio-go-api/internal/workflow"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Service implements the workflow.BlobStorage interface using Cloudinary.
type Service struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Service{
		client: cld,
		folder: cfg.Folder,
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Upload sends the file to Cloudinary and returns its secure URL together
// with the storage key used for later removal.
func (s *Service) Upload(ctx context.Context, name string, reader io.Reader) (workflow.BlobUploadResult, error) {
	folder := strings.Trim(s.folder, "/")
	publicID := buildPublicID(name)

	params := uploader.UploadParams{
		Folder:       folder,
		PublicID:     publicID,
		ResourceType: "auto",
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return workflow.BlobUploadResult{}, fmt.Errorf("failed to upload asset: %w", err)
	}

	s.logger.Info().Str("public_id", result.PublicID).Msg("file uploaded to cloudinary")

	return workflow.BlobUploadResult{
		URL:        result.SecureURL,
		StorageKey: result.PublicID,
	}, nil
}

// Remove deletes a previously uploaded asset by its storage key.
func (s *Service) Remove(ctx context.Context, storageKey string) error {
	if storageKey == "" {
		return fmt.Errorf("storage key must not be empty")
	}

	_, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: storageKey})
	if err != nil {
		return fmt.Errorf("failed to remove asset: %w", err)
	}

	s.logger.Info().Str("public_id", storageKey).Msg("file removed from cloudinary")

	return nil
}

// ResolvePublicURL builds the delivery URL for a stored asset.
func (s *Service) ResolvePublicURL(storageKey string) (string, error) {
	asset, err := s.client.Image(storageKey)
	if err != nil {
		return "", fmt.Errorf("failed to build asset url: %w", err)
	}

	url, err := asset.String()
	if err != nil {
		return "", fmt.Errorf("failed to render asset url: %w", err)
	}

	return url, nil
}

func buildPublicID(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("upload-%d", time.Now().Unix())
	}

	return fmt.Sprintf("%s-%d", base, time.Now().Unix())
}
