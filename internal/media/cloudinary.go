// Package media uploads listing photos to Cloudinary.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/vroommarket/listingbot/internal/config"
	"github.com/vroommarket/listingbot/internal/pipeline"
	"github.com/vroommarket/listingbot/internal/retry"
)

// Uploader is the part of the Cloudinary upload API the store uses.
type Uploader interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
}

// Store hosts photos on Cloudinary. A failed upload is logged and reported
// through ok=false; it never fails the listing on its own.
type Store struct {
	up     Uploader
	folder string
	policy *retry.Policy
	log    *slog.Logger
}

var _ pipeline.MediaStore = (*Store)(nil)

// NewCloudinaryStore connects to the account named by cfg.URL.
func NewCloudinaryStore(cfg config.CloudinaryConfig, policy *retry.Policy, log *slog.Logger) (*Store, error) {
	cld, err := cloudinary.NewFromURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudinary client: %w", err)
	}
	return NewStore(&cld.Upload, cfg.Folder, policy, log), nil
}

// NewStore builds a Store around up.
func NewStore(up Uploader, folder string, policy *retry.Policy, log *slog.Logger) *Store {
	return &Store{
		up:     up,
		folder: folder,
		policy: policy,
		log:    log.With("component", "media_store"),
	}
}

// Upload sends the file at localPath as publicID, overwriting any previous
// asset with that id.
func (s *Store) Upload(ctx context.Context, localPath, publicID string) (string, bool) {
	url, err := retry.Do(ctx, s.policy, "media upload", func(ctx context.Context) (string, error) {
		return s.upload(ctx, localPath, publicID)
	})
	if err != nil {
		s.log.WarnContext(ctx, "Photo upload failed", "public_id", publicID, "path", localPath, "error", err)
		return "", false
	}
	s.log.DebugContext(ctx, "Photo uploaded", "public_id", publicID, "url", url)
	return url, true
}

func (s *Store) upload(ctx context.Context, localPath, publicID string) (string, error) {
	resp, err := s.up.Upload(ctx, localPath, uploader.UploadParams{
		PublicID:  publicID,
		Folder:    s.folder,
		Overwrite: api.Bool(true),
	})
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", errors.New("cloudinary returned no result")
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("cloudinary: %s", resp.Error.Message)
	}
	if resp.SecureURL == "" {
		return "", errors.New("cloudinary returned no secure url")
	}
	return resp.SecureURL, nil
}
