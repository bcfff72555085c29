package storage

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"

	"github.com/laburoapp/laburo-backend/internal/pkg/apperror"
)

// ProofStorageConfig — подключение к S3-совместимому хранилищу.
type ProofStorageConfig struct {
	Endpoint    string
	Region      string
	Bucket      string
	AccessKey   string
	SecretKey   string
	BaseURL     string
	MaxUploadMB int64
}

// ProofStorage хранит подтверждения банковских переводов в S3-совместимом
// хранилище. Файлы не перезаписываются и не удаляются: история
// подтверждений по платежу append-only.
type ProofStorage struct {
	client         *s3.S3
	bucket         string
	baseURL        string
	maxUploadBytes int64
}

// NewProofStorage создаёт хранилище подтверждений.
func NewProofStorage(cfg ProofStorageConfig) (*ProofStorage, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:   aws.String(cfg.Region),
		Endpoint: aws.String(cfg.Endpoint),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKey, cfg.SecretKey, "",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: не удалось создать сессию S3: %w", err)
	}

	return &ProofStorage{
		client:         s3.New(sess),
		bucket:         cfg.Bucket,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		maxUploadBytes: cfg.MaxUploadMB * 1024 * 1024,
	}, nil
}

// Save загружает подтверждение перевода и возвращает публичный URL файла.
func (s *ProofStorage) Save(ctx context.Context, contractID uuid.UUID, originalName, contentType string, data []byte) (string, error) {
	return s.upload(ctx, "proofs", contractID, originalName, contentType, data)
}

// SaveEvidence загружает доказательство по спору.
func (s *ProofStorage) SaveEvidence(ctx context.Context, disputeID uuid.UUID, originalName, contentType string, data []byte) (string, error) {
	return s.upload(ctx, "disputes", disputeID, originalName, contentType, data)
}

func (s *ProofStorage) upload(ctx context.Context, prefix string, ownerID uuid.UUID, originalName, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("storage: файл не может быть пустым")
	}
	if int64(len(data)) > s.maxUploadBytes {
		return "", fmt.Errorf("storage: размер файла превышает лимит %d байт", s.maxUploadBytes)
	}

	safeName := sanitizeFilename(originalName)
	key := fmt.Sprintf("%s/%s/%d%s", prefix, ownerID.String(), time.Now().UnixNano(), filepath.Ext(safeName))

	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		ACL:           aws.String("public-read"),
	})
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeExternalDependency, "хранилище файлов недоступно")
	}

	return s.baseURL + "/" + key, nil
}

// sanitizeFilename удаляет потенциально опасные символы.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" {
		name = "proof"
	}
	return name
}
