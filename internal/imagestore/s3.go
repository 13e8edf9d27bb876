// Package imagestore uploads generated images to S3-compatible object storage so
// history and favorites hold short URLs instead of inline data.
package imagestore

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"thumbexpert/internal/apperror"
	"thumbexpert/internal/gemini"
)

const (
	presignTTL = 7 * 24 * time.Hour
	keyPrefix  = "thumbnails/"

	// MaxObjectBytes caps how much of a stored image Load reads back.
	MaxObjectBytes = 10 << 20
)

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

type Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	// PublicBaseURL serves objects directly; when empty, presigned GET URLs are returned.
	PublicBaseURL string
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type objectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type objectPresigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*PresignedURL, error)
}

// PresignedURL mirrors the part of the v4 presign result the store needs.
type PresignedURL struct {
	URL string
}

type presignAdapter struct {
	client *s3.PresignClient
}

func (p presignAdapter) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*PresignedURL, error) {
	req, err := p.client.PresignGetObject(ctx, in, optFns...)
	if err != nil {
		return nil, err
	}
	return &PresignedURL{URL: req.URL}, nil
}

type S3Sink struct {
	bucket     string
	publicBase string
	put        objectPutter
	get        objectGetter
	presign    objectPresigner
	now        func() time.Time
}

func NewS3Sink(ctx context.Context, cfg Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("imagestore: bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("imagestore: loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Sink{
		bucket:     cfg.Bucket,
		publicBase: strings.TrimRight(cfg.PublicBaseURL, "/"),
		put:        client,
		get:        client,
		presign:    presignAdapter{client: s3.NewPresignClient(client)},
		now:        time.Now,
	}, nil
}

// Store uploads one data URL and returns the URL the object can be fetched from.
func (s *S3Sink) Store(ctx context.Context, dataURL string) (string, error) {
	img, err := gemini.ParseDataURL(dataURL)
	if err != nil {
		return "", err
	}
	body, err := img.Bytes()
	if err != nil {
		return "", err
	}

	key := s.objectKey(img.MimeType)
	_, err = s.put.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(img.MimeType),
	})
	if err != nil {
		return "", fmt.Errorf("imagestore: uploading %s: %w", key, err)
	}

	if s.publicBase != "" {
		return s.publicBase + "/" + key, nil
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignTTL))
	if err != nil {
		return "", fmt.Errorf("imagestore: presigning %s: %w", key, err)
	}
	return req.URL, nil
}

func (s *S3Sink) objectKey(mimeType string) string {
	d := s.now().UTC()
	ext, ok := extensions[mimeType]
	if !ok {
		ext = ".png"
	}
	return fmt.Sprintf(keyPrefix+"%d/%02d/%02d/%s%s", d.Year(), d.Month(), d.Day(), uuid.New(), ext)
}

// Load reads an image this sink issued back into a data URL. References pointing
// anywhere else are rejected without any network access.
func (s *S3Sink) Load(ctx context.Context, ref string) (string, error) {
	key, ok := s.ownedKey(ctx, ref)
	if !ok {
		return "", apperror.ValidationFailed("image", "image URL was not issued by this service")
	}

	out, err := s.get.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("imagestore: reading %s: %w", key, err)
	}
	defer out.Body.Close()

	if aws.ToInt64(out.ContentLength) > MaxObjectBytes {
		return "", apperror.ValidationFailed("image", "stored image is too large")
	}
	body, err := io.ReadAll(io.LimitReader(out.Body, MaxObjectBytes+1))
	if err != nil {
		return "", fmt.Errorf("imagestore: reading %s: %w", key, err)
	}
	if len(body) > MaxObjectBytes {
		return "", apperror.ValidationFailed("image", "stored image is too large")
	}

	mimeType := aws.ToString(out.ContentType)
	if _, known := extensions[mimeType]; !known {
		mimeType = mimeFromKey(key)
	}
	img := gemini.ImageInput{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(body)}
	return img.DataURL(), nil
}

// ownedKey maps a URL handed out by Store back to its object key.
func (s *S3Sink) ownedKey(ctx context.Context, ref string) (string, bool) {
	u, err := url.Parse(ref)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}

	if s.publicBase != "" {
		rest, found := strings.CutPrefix(ref, s.publicBase+"/")
		if !found {
			return "", false
		}
		key, _, _ := strings.Cut(rest, "?")
		return key, validKey(key)
	}

	key := strings.TrimPrefix(u.Path, "/")
	key = strings.TrimPrefix(key, s.bucket+"/")
	if !validKey(key) {
		return "", false
	}
	// A presigned URL is ours when presigning its key again lands on the same object URL.
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignTTL))
	if err != nil {
		return "", false
	}
	want, err := url.Parse(req.URL)
	if err != nil {
		return "", false
	}
	return key, want.Scheme == u.Scheme && want.Host == u.Host && want.Path == u.Path
}

func validKey(key string) bool {
	return strings.HasPrefix(key, keyPrefix) && path.Clean(key) == key && !strings.Contains(key, "..")
}

func mimeFromKey(key string) string {
	ext := path.Ext(key)
	for mimeType, e := range extensions {
		if e == ext {
			return mimeType
		}
	}
	return "image/png"
}
