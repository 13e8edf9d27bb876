package imagestore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thumbexpert/internal/apperror"
)

type fakePutter struct {
	key         string
	contentType string
	body        []byte
	err         error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.key = aws.ToString(in.Key)
	f.contentType = aws.ToString(in.ContentType)
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

// fakeGetter serves whatever the putter last stored.
type fakeGetter struct {
	put  *fakePutter
	size int64
	keys []string
	err  error
}

func (f *fakeGetter) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Key)
	f.keys = append(f.keys, key)
	if f.err != nil {
		return nil, f.err
	}
	if key != f.put.key {
		return nil, errors.New("NoSuchKey")
	}
	size := int64(len(f.put.body))
	if f.size > 0 {
		size = f.size
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(f.put.body)),
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(f.put.contentType),
	}, nil
}

type fakePresigner struct{}

func (fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*PresignedURL, error) {
	return &PresignedURL{URL: "https://signed.example/" + aws.ToString(in.Key) + "?sig=1"}, nil
}

func newSink(put *fakePutter, publicBase string) *S3Sink {
	return &S3Sink{
		bucket:     "thumbs",
		publicBase: strings.TrimRight(publicBase, "/"),
		put:        put,
		get:        &fakeGetter{put: put},
		presign:    fakePresigner{},
		now:        func() time.Time { return time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC) },
	}
}

// "aGVsbG8=" is base64 for "hello".
const helloPNG = "data:image/png;base64,aGVsbG8="

func TestStorePublicURL(t *testing.T) {
	put := &fakePutter{}
	s := newSink(put, "https://cdn.example/")

	url, err := s.Store(context.Background(), helloPNG)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(put.key, "thumbnails/2026/03/07/"))
	assert.True(t, strings.HasSuffix(put.key, ".png"))
	assert.Equal(t, "image/png", put.contentType)
	assert.Equal(t, []byte("hello"), put.body)
	assert.Equal(t, "https://cdn.example/"+put.key, url)
}

func TestStorePresigned(t *testing.T) {
	put := &fakePutter{}
	url, err := newSink(put, "").Store(context.Background(), helloPNG)
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/"+put.key+"?sig=1", url)
}

func TestStoreErrors(t *testing.T) {
	_, err := newSink(&fakePutter{}, "").Store(context.Background(), "https://not-inline")
	assert.Error(t, err)

	_, err = newSink(&fakePutter{err: errors.New("access denied")}, "").Store(context.Background(), helloPNG)
	assert.ErrorContains(t, err, "access denied")
}

func TestLoadReadsBackStoredImage(t *testing.T) {
	for _, base := range []string{"https://cdn.example/", ""} {
		put := &fakePutter{}
		s := newSink(put, base)

		url, err := s.Store(context.Background(), helloPNG)
		require.NoError(t, err)

		dataURL, err := s.Load(context.Background(), url)
		require.NoError(t, err, url)
		assert.Equal(t, helloPNG, dataURL)
	}
}

func TestLoadRejectsForeignURLs(t *testing.T) {
	put := &fakePutter{}
	s := newSink(put, "https://cdn.example")
	url, err := s.Store(context.Background(), helloPNG)
	require.NoError(t, err)
	key := strings.TrimPrefix(url, "https://cdn.example/")

	for _, ref := range []string{
		"https://evil.example/" + key,
		"https://cdn.example.evil.net/" + key,
		"https://cdn.example/other/" + key,
		"https://cdn.example/thumbnails/../secrets.png",
		"http://169.254.169.254/latest/meta-data",
		"file:///etc/passwd",
	} {
		_, err := s.Load(context.Background(), ref)
		assert.ErrorIs(t, err, apperror.ErrValidation, ref)
	}
	assert.Empty(t, s.get.(*fakeGetter).keys)

	presigned := newSink(&fakePutter{}, "")
	_, err = presigned.Load(context.Background(), "https://attacker.example/"+key+"?sig=1")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestLoadSizeLimitAndErrors(t *testing.T) {
	put := &fakePutter{}
	s := newSink(put, "https://cdn.example")
	url, err := s.Store(context.Background(), helloPNG)
	require.NoError(t, err)

	s.get = &fakeGetter{put: put, size: MaxObjectBytes + 1}
	_, err = s.Load(context.Background(), url)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	s.get = &fakeGetter{put: put, err: errors.New("access denied")}
	_, err = s.Load(context.Background(), url)
	assert.ErrorContains(t, err, "access denied")
	assert.NotErrorIs(t, err, apperror.ErrValidation)
}
