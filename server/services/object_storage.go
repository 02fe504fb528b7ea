package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"desktown-backend/shared/config"
	"desktown-backend/shared/database/models"
)

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"

	tagOwner      = "owner"
	tagVisibility = "visibility"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectACL is stored as object tags next to every upload
type ObjectACL struct {
	Owner      string
	Visibility string
}

// CanRead allows public objects to anyone, private objects to the owner and admins
func (a ObjectACL) CanRead(user *models.User) bool {
	if a.Visibility != VisibilityPrivate {
		return true
	}
	if user == nil {
		return false
	}
	return a.Owner == user.ID.String() || user.IsAdmin()
}

// StoredObject is an open download with its metadata
type StoredObject struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
	ACL         ObjectACL
}

// ObjectStorage keeps uploaded media in a single MinIO bucket
type ObjectStorage struct {
	client     *minio.Client
	bucketName string
}

func NewObjectStorage() (*ObjectStorage, error) {
	cfg := config.GetConfig()

	parsedURL, err := url.Parse(cfg.MinIOServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid MinIO endpoint: %w", err)
	}

	log.Printf("🔗 Connecting to MinIO: %s (SSL: %v)", parsedURL.Host, cfg.MinIOUseSSL)

	client, err := minio.New(parsedURL.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIORootUser, cfg.MinIORootPassword, ""),
		Secure: cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	s := &ObjectStorage{client: client, bucketName: cfg.MinIOBucketName}
	if err := s.initializeBucket(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ObjectStorage) initializeBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		log.Printf("✅ MinIO bucket '%s' already exists", s.bucketName)
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	log.Printf("✅ MinIO bucket '%s' created successfully", s.bucketName)
	return nil
}

// ObjectKey builds "<visibility>/<owner>/<uuid><ext>"
func ObjectKey(visibility string, owner uuid.UUID, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	if len(ext) > 10 {
		ext = ""
	}
	return fmt.Sprintf("%s/%s/%s%s", visibility, owner, uuid.NewString(), ext)
}

// NormalizeVisibility defaults anything unknown to public
func NormalizeVisibility(v string) string {
	if strings.EqualFold(v, VisibilityPrivate) {
		return VisibilityPrivate
	}
	return VisibilityPublic
}

// Upload stores body with ACL tags and returns the object key
func (s *ObjectStorage) Upload(ctx context.Context, owner uuid.UUID, visibility, fileName, contentType string, body io.Reader, size int64) (string, error) {
	visibility = NormalizeVisibility(visibility)
	key := ObjectKey(visibility, owner, fileName)

	_, err := s.client.PutObject(ctx, s.bucketName, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
		UserTags: map[string]string{
			tagOwner:      owner.String(),
			tagVisibility: visibility,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	log.Printf("⬆️ Object stored: %s (%d bytes)", key, size)
	return key, nil
}

// ACL reads the owner and visibility tags of key
func (s *ObjectStorage) ACL(ctx context.Context, key string) (ObjectACL, error) {
	t, err := s.client.GetObjectTagging(ctx, s.bucketName, key, minio.GetObjectTaggingOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return ObjectACL{}, ErrObjectNotFound
		}
		return ObjectACL{}, fmt.Errorf("failed to read object tags: %w", err)
	}
	m := t.ToMap()
	return ObjectACL{Owner: m[tagOwner], Visibility: NormalizeVisibility(m[tagVisibility])}, nil
}

// Open stats key, reads its ACL and returns a streaming reader
func (s *ObjectStorage) Open(ctx context.Context, key string) (*StoredObject, error) {
	info, err := s.client.StatObject(ctx, s.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}

	acl, err := s.ACL(ctx, key)
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to download object: %w", err)
	}

	return &StoredObject{Body: obj, Size: info.Size, ContentType: info.ContentType, ACL: acl}, nil
}

func (s *ObjectStorage) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object: %w", err)
	}
	log.Printf("🗑️ Object removed: %s", key)
	return nil
}

// Ping lists the bucket to confirm MinIO is reachable
func (s *ObjectStorage) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucketName)
	return err
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
