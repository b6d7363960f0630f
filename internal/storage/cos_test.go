package storage

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tencentyun/cos-go-sdk-v5"

	"github.com/graph-analysis/pkg/config"
	apperrors "github.com/graph-analysis/pkg/errors"
)

func TestNewCOSStorage_Validation(t *testing.T) {
	tests := []struct {
		name   string
		cfg    COSConfig
		errMsg string
	}{
		{"MissingBucket", COSConfig{Region: "ap-guangzhou", SecretID: "id", SecretKey: "key"}, "bucket and region are required"},
		{"MissingRegion", COSConfig{Bucket: "b", SecretID: "id", SecretKey: "key"}, "bucket and region are required"},
		{"MissingCredentials", COSConfig{Bucket: "b", Region: "ap-guangzhou"}, "credentials are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, err := NewCOSStorage(&tt.cfg)
			require.Error(t, err)
			assert.Nil(t, storage)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.Equal(t, apperrors.CodeConfigError, apperrors.GetErrorCode(err))
		})
	}

	t.Run("ValidConfig", func(t *testing.T) {
		storage, err := NewCOSStorage(&COSConfig{
			Bucket:    "test-bucket",
			Region:    "ap-guangzhou",
			SecretID:  "test-id",
			SecretKey: "test-key",
		})
		assert.NoError(t, err)
		assert.NotNil(t, storage)
	})
}

func TestCOSStorage_GetURL(t *testing.T) {
	storage, err := NewCOSStorage(&COSConfig{
		Bucket:    "my-bucket",
		Region:    "ap-guangzhou",
		SecretID:  "test-id",
		SecretKey: "test-key",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://my-bucket.cos.ap-guangzhou.myqcloud.com/runs/abc/scores.json.zst",
		storage.GetURL("runs/abc/scores.json.zst"))

	storage, err = NewCOSStorage(&COSConfig{
		Bucket:    "my-bucket",
		Region:    "local",
		SecretID:  "test-id",
		SecretKey: "test-key",
		Domain:    "example.test",
		Scheme:    "http",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://my-bucket.cos.local.example.test/k", storage.GetURL("k"))
}

func TestIsCOSNotFound(t *testing.T) {
	notFound := &cos.ErrorResponse{Response: &http.Response{StatusCode: http.StatusNotFound}}
	forbidden := &cos.ErrorResponse{Response: &http.Response{StatusCode: http.StatusForbidden}}

	assert.True(t, isCOSNotFound(notFound))
	assert.True(t, isCOSNotFound(fmt.Errorf("get: %w", notFound)))
	assert.False(t, isCOSNotFound(forbidden))
	assert.False(t, isCOSNotFound(fmt.Errorf("network down")))

	s := &COSStorage{}
	assert.True(t, apperrors.IsNotFound(s.wrapGetError("k", "failed", notFound)))
	assert.Equal(t, apperrors.CodeStorageError, apperrors.GetErrorCode(s.wrapGetError("k", "failed", forbidden)))
}

func TestNewStorage_COS(t *testing.T) {
	storage, err := NewStorage(&config.StorageConfig{
		Type:      "cos",
		Bucket:    "test-bucket",
		Region:    "ap-guangzhou",
		SecretID:  "test-id",
		SecretKey: "test-key",
	})
	require.NoError(t, err)
	assert.IsType(t, &COSStorage{}, storage)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		cfg    *config.StorageConfig
		errMsg string
	}{
		{"NilConfig", nil, "storage config is nil"},
		{"InvalidStorageType", &config.StorageConfig{Type: "s3"}, "unsupported storage type"},
		{"COSMissingBucket", &config.StorageConfig{Type: "cos", Region: "r", SecretID: "i", SecretKey: "k"}, "COS bucket is required"},
		{"COSMissingRegion", &config.StorageConfig{Type: "cos", Bucket: "b", SecretID: "i", SecretKey: "k"}, "COS region is required"},
		{"COSMissingCredentials", &config.StorageConfig{Type: "cos", Bucket: "b", Region: "r"}, "COS credentials are required"},
		{"LocalMissingPath", &config.StorageConfig{Type: "local"}, "local storage path is required"},
		{"EmptyTypeMissingPath", &config.StorageConfig{}, "local storage path is required"},
		{"ValidCOSConfig", &config.StorageConfig{Type: "cos", Bucket: "b", Region: "r", SecretID: "i", SecretKey: "k"}, ""},
		{"ValidLocalConfig", &config.StorageConfig{Type: "local", LocalPath: "/tmp/storage"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.cfg)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
