package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arbos-dev/arbos-api/internal/models"
	"github.com/arbos-dev/arbos-api/internal/policy"
	appErrors "github.com/arbos-dev/arbos-api/pkg/errors"
	"github.com/arbos-dev/arbos-api/pkg/storage"
)

type attachmentRequestStore interface {
	GetByID(ctx context.Context, id string) (*models.Request, error)
	SetAttachment(ctx context.Context, id, path string) error
}

type attachmentAuditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AttachmentConfig bounds uploaded formal letters.
type AttachmentConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// AttachmentService stores formal request letters on disk and hands out
// time-limited signed download links.
type AttachmentService struct {
	requests attachmentRequestStore
	files    *storage.LocalStorage
	signer   *storage.SignedURLSigner
	audit    attachmentAuditLogger
	logger   *zap.Logger
	config   AttachmentConfig
}

// NewAttachmentService constructs the attachment service.
func NewAttachmentService(requests attachmentRequestStore, files *storage.LocalStorage, signer *storage.SignedURLSigner, audit attachmentAuditLogger, logger *zap.Logger, config AttachmentConfig) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxFileSizeBytes <= 0 {
		config.MaxFileSizeBytes = 10 * 1024 * 1024
	}
	if len(config.AllowedMIMEs) == 0 {
		config.AllowedMIMEs = []string{"application/pdf"}
	}
	return &AttachmentService{
		requests: requests,
		files:    files,
		signer:   signer,
		audit:    audit,
		logger:   logger,
		config:   config,
	}
}

// UploadResult describes a stored attachment and its download link.
type UploadResult struct {
	RequestID string    `json:"request_id"`
	Filename  string    `json:"filename"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Upload validates and stores the formal letter for a request. Only the
// filing party (or the tribunal) may attach, and only while size and content
// type pass the configured limits.
func (s *AttachmentService) Upload(ctx context.Context, requestID, filename, contentType string, size int64, r io.Reader, actor *models.JWTClaims) (*UploadResult, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}

	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}

	if !policy.Allowed(actor.Role, policy.ActionViewAllRequests) && request.CreatedBy != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another party")
	}

	if size <= 0 || size > s.config.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("file size must be between 1 byte and %d bytes", s.config.MaxFileSizeBytes))
	}
	if !s.mimeAllowed(contentType) {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("content type %q is not accepted", contentType))
	}

	ext := filepath.Ext(filename)
	relPath := filepath.Join(requestID, uuid.NewString()+ext)
	if _, err := s.files.SaveStream(relPath, io.LimitReader(r, s.config.MaxFileSizeBytes)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attachment")
	}

	if err := s.requests.SetAttachment(ctx, requestID, relPath); err != nil {
		if removeErr := s.files.Delete(relPath); removeErr != nil {
			s.logger.Warn("failed to remove orphaned attachment", zap.String("path", relPath), zap.Error(removeErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link attachment")
	}

	token, expiresAt, err := s.signer.Generate(requestID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}

	if s.audit != nil {
		meta, _ := json.Marshal(map[string]string{"filename": filename, "path": relPath})
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actor.UserID,
			Action:     models.AuditActionAttachmentStore,
			Resource:   "attachments",
			ResourceID: &requestID,
			NewValues:  meta,
		}); err != nil {
			s.logger.Warn("failed to record attachment audit log", zap.Error(err))
		}
	}

	s.logger.Info("attachment stored",
		zap.String("request_id", requestID),
		zap.String("path", relPath),
		zap.Int64("size", size))

	return &UploadResult{
		RequestID: requestID,
		Filename:  filepath.Base(relPath),
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// SignedLink re-issues a download token for an already-attached letter.
func (s *AttachmentService) SignedLink(ctx context.Context, requestID string, actor *models.JWTClaims) (*UploadResult, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}

	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if !policy.Allowed(actor.Role, policy.ActionViewAllRequests) && request.CreatedBy != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another party")
	}
	if request.Attachment == nil || *request.Attachment == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "request has no attachment")
	}

	token, expiresAt, err := s.signer.Generate(requestID, *request.Attachment)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return &UploadResult{
		RequestID: requestID,
		Filename:  filepath.Base(*request.Attachment),
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// Download validates the signed token and opens the stored file.
func (s *AttachmentService) Download(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download link")
	}

	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "attachment no longer exists")
	}
	return file, filepath.Base(relPath), nil
}

func (s *AttachmentService) mimeAllowed(contentType string) bool {
	normalized := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(normalized, ";"); idx >= 0 {
		normalized = strings.TrimSpace(normalized[:idx])
	}
	for _, allowed := range s.config.AllowedMIMEs {
		if normalized == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}
