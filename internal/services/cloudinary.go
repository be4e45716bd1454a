package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"slices"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// Uploader forwards a local file to object storage and returns its public URL.
// Delete removes an asset previously returned by Upload.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
	Delete(ctx context.Context, assetURL string) error
}

type CloudinaryService struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryService(cloudName, apiKey, apiSecret, folder string) (*CloudinaryService, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &CloudinaryService{cld: cld, folder: folder}, nil
}

func (s *CloudinaryService) Upload(ctx context.Context, localPath string) (string, error) {
	result, err := s.cld.Upload.Upload(ctx, localPath, uploader.UploadParams{
		Folder:       s.folder,
		ResourceType: "auto", // image, video or raw
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}
	// API failures come back in the body with a nil error
	if result.Error.Message != "" {
		return "", errors.New("cloudinary: " + result.Error.Message)
	}
	return result.SecureURL, nil
}

func (s *CloudinaryService) Delete(ctx context.Context, assetURL string) error {
	resourceType, publicID, err := publicIDFromURL(assetURL)
	if err != nil {
		return err
	}
	result, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
	})
	if err != nil {
		return fmt.Errorf("failed to delete from Cloudinary: %w", err)
	}
	if result.Error.Message != "" {
		return errors.New("cloudinary: " + result.Error.Message)
	}
	return nil
}

// publicIDFromURL splits a delivery URL of the form
// https://res.cloudinary.com/<cloud>/<type>/upload/[v<version>/]<public id>.<ext>
// Raw assets keep their extension as part of the public id.
func publicIDFromURL(assetURL string) (resourceType, publicID string, err error) {
	u, err := url.Parse(assetURL)
	if err != nil {
		return "", "", fmt.Errorf("parse asset url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	idx := slices.Index(parts, "upload")
	if idx < 1 || idx == len(parts)-1 {
		return "", "", fmt.Errorf("not a cloudinary delivery url: %q", assetURL)
	}

	resourceType = parts[idx-1]
	rest := parts[idx+1:]
	if len(rest) > 1 && isVersion(rest[0]) {
		rest = rest[1:]
	}
	publicID = strings.Join(rest, "/")
	if resourceType != "raw" {
		publicID = strings.TrimSuffix(publicID, path.Ext(publicID))
	}
	return resourceType, publicID, nil
}

func isVersion(segment string) bool {
	digits, ok := strings.CutPrefix(segment, "v")
	if !ok || digits == "" {
		return false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
