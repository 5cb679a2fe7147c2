package media

import (
	"bytes"
	"context"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryUploader stores photos in a Cloudinary media folder per
// owner. Alternative blob backend for deployments without an
// S3-compatible store.
type CloudinaryUploader struct {
	cld *cloudinary.Cloudinary
}

// NewCloudinaryUploader builds the Cloudinary-backed uploader.
func NewCloudinaryUploader(cloudName, apiKey, apiSecret string) (*CloudinaryUploader, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("initializing cloudinary: %w", err)
	}

	return &CloudinaryUploader{cld: cld}, nil
}

// Upload pushes the photo bytes and returns the served HTTPS URL.
func (u *CloudinaryUploader) Upload(ctx context.Context, ownerID string, photo []byte) (string, error) {
	resp, err := u.cld.Upload.Upload(ctx, bytes.NewReader(photo), uploader.UploadParams{
		Folder: "reports/" + ownerID,
	})
	if err != nil {
		return "", fmt.Errorf("uploading photo for %s: %w", ownerID, err)
	}

	return resp.SecureURL, nil
}
