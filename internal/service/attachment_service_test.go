package service

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbos-dev/arbos-api/internal/dto"
	appErrors "github.com/arbos-dev/arbos-api/pkg/errors"
	"github.com/arbos-dev/arbos-api/pkg/storage"
)

func (s *fakeRequestStore) SetAttachment(_ context.Context, id, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[id]
	if !ok {
		return io.EOF
	}
	request.Attachment = &path
	return nil
}

func newAttachmentFixture(t *testing.T) (*AttachmentService, *fakeRequestStore, string) {
	t.Helper()

	workflow, requests, _, _ := newWorkflow(t)
	created, err := workflow.Create(context.Background(), dto.CreateRequestRequest{
		Summary:      "Extension",
		ProposedDate: "2026-01-29",
		TargetEvent:  "Statement of Defence",
	}, claimantClaims())
	require.NoError(t, err)

	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Minute)

	svc := NewAttachmentService(requests, files, signer, &fakeAuditLogger{}, nil, AttachmentConfig{
		MaxFileSizeBytes: 1024,
		AllowedMIMEs:     []string{"application/pdf"},
	})
	return svc, requests, created.ID
}

func TestUploadAndDownloadRoundTrip(t *testing.T) {
	svc, requests, requestID := newAttachmentFixture(t)
	content := []byte("%PDF-1.4 formal letter")

	result, err := svc.Upload(context.Background(), requestID, "letter.pdf", "application/pdf",
		int64(len(content)), bytes.NewReader(content), claimantClaims())
	require.NoError(t, err)
	assert.Equal(t, requestID, result.RequestID)
	assert.NotEmpty(t, result.Token)

	stored, err := requests.GetByID(context.Background(), requestID)
	require.NoError(t, err)
	require.NotNil(t, stored.Attachment)

	file, filename, err := svc.Download(result.Token)
	require.NoError(t, err)
	defer file.Close()

	downloaded, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, content, downloaded)
	assert.NotEmpty(t, filename)
}

func TestUploadRejectsWrongMIMEAndSize(t *testing.T) {
	svc, _, requestID := newAttachmentFixture(t)
	content := []byte("hello")

	_, err := svc.Upload(context.Background(), requestID, "letter.docx",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		int64(len(content)), bytes.NewReader(content), claimantClaims())
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Upload(context.Background(), requestID, "letter.pdf", "application/pdf",
		4096, bytes.NewReader(content), claimantClaims())
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestUploadRejectsOtherParty(t *testing.T) {
	svc, _, requestID := newAttachmentFixture(t)
	content := []byte("%PDF-1.4")

	respondent := claimantClaims()
	respondent.UserID = "someone-else"
	_, err := svc.Upload(context.Background(), requestID, "letter.pdf", "application/pdf",
		int64(len(content)), bytes.NewReader(content), respondent)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestDownloadRejectsForgedToken(t *testing.T) {
	svc, _, _ := newAttachmentFixture(t)

	_, _, err := svc.Download("forged.token.value.here")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestSignedLinkRequiresExistingAttachment(t *testing.T) {
	svc, _, requestID := newAttachmentFixture(t)

	_, err := svc.SignedLink(context.Background(), requestID, claimantClaims())
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
