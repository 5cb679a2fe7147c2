package media

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioUploader stores photos in an S3-compatible bucket.
type MinioUploader struct {
	client *minio.Client
	bucket string
}

// MinioConfig carries the connection settings for the blob store.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewMinioUploader builds the S3-compatible uploader.
func NewMinioUploader(cfg MinioConfig) (*MinioUploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing minio client: %w", err)
	}

	return &MinioUploader{client: client, bucket: cfg.Bucket}, nil
}

// Upload writes the photo under reports/<owner>/<millis>.jpg and
// returns the object's public URL.
func (u *MinioUploader) Upload(ctx context.Context, ownerID string, photo []byte) (string, error) {
	key := objectKey(ownerID, time.Now())

	_, err := u.client.PutObject(ctx, u.bucket, key,
		bytes.NewReader(photo), int64(len(photo)),
		minio.PutObjectOptions{ContentType: "image/jpeg"},
	)
	if err != nil {
		return "", fmt.Errorf("uploading photo %s: %w", key, err)
	}

	return fmt.Sprintf("%s/%s/%s", u.client.EndpointURL(), u.bucket, key), nil
}
