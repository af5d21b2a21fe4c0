package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jobchat/internal/constants"
	"jobchat/internal/errors"
	"jobchat/internal/metrics"
	"jobchat/internal/models"
	"jobchat/internal/security"
	"jobchat/internal/tracing"
	"jobchat/pkg/media"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// AttachmentUploader uploads picked files. It never retries and never touches
// chat state; callers decide what to do with a failure.
type AttachmentUploader struct {
	api     UploadAPI
	config  models.MediaConfig
	metrics *metrics.Registry
	logger  *logrus.Logger
}

func NewAttachmentUploader(api UploadAPI, config models.MediaConfig, registry *metrics.Registry, logger *logrus.Logger) *AttachmentUploader {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	return &AttachmentUploader{api: api, config: config, metrics: registry, logger: logger}
}

func (u *AttachmentUploader) UploadImage(ctx context.Context, localURI, mimeType string) (*models.AttachmentUploadResult, error) {
	return u.Upload(ctx, models.Attachment{
		Kind:     models.AttachmentImage,
		LocalURI: localURI,
		MimeType: mimeType,
	})
}

func (u *AttachmentUploader) UploadDocument(ctx context.Context, localURI, mimeType, fileName string) (*models.AttachmentUploadResult, error) {
	return u.Upload(ctx, models.Attachment{
		Kind:     models.AttachmentDocument,
		LocalURI: localURI,
		MimeType: mimeType,
		FileName: fileName,
	})
}

// Upload validates and uploads a single attachment. Errors are AppErrors with
// code UPLOAD_FAILED (or VALIDATION_FAILED) and a user-facing message.
func (u *AttachmentUploader) Upload(ctx context.Context, attachment models.Attachment) (*models.AttachmentUploadResult, error) {
	ctx, span := tracing.StartSpan(ctx, "chat.upload",
		attribute.String("attachment.kind", string(attachment.Kind)),
		attribute.String("attachment.source", string(attachment.Source)),
	)
	defer span.End()

	start := time.Now()
	labels := map[string]string{"kind": string(attachment.Kind)}

	result, err := u.upload(ctx, attachment)
	u.metrics.RecordTimer(metrics.UploadLatency, time.Since(start), labels)
	if err != nil {
		tracing.RecordError(ctx, err)
		u.metrics.IncrementCounter(metrics.UploadsFailed, labels)
		u.logger.WithFields(logrus.Fields{
			LogFieldAttachmentKind: attachment.Kind,
			LogFieldSource:         attachment.Source,
			LogFieldErrorCode:      errors.GetCode(err),
		}).WithError(err).Warn("Failed to upload attachment")
		return nil, err
	}

	u.metrics.IncrementCounter(metrics.Uploads, labels)
	u.logger.WithFields(logrus.Fields{
		LogFieldAttachmentKind: attachment.Kind,
		LogFieldMimeType:       result.MimeType,
		LogFieldDuration:       time.Since(start).Milliseconds(),
	}).Debug("Attachment upload completed successfully")
	return result, nil
}

func (u *AttachmentUploader) upload(ctx context.Context, attachment models.Attachment) (*models.AttachmentUploadResult, error) {
	kind := string(attachment.Kind)
	if attachment.Kind != models.AttachmentImage && attachment.Kind != models.AttachmentDocument {
		return nil, errors.NewValidationError("kind", fmt.Sprintf("unsupported attachment kind %q", kind))
	}
	if strings.TrimSpace(attachment.LocalURI) == "" {
		return nil, errors.NewValidationError("uri", "attachment has no local file")
	}

	data, fileName, mimeType, err := u.readAttachment(attachment)
	if err != nil {
		return nil, err
	}

	if err := u.checkType(attachment.Kind, fileName, mimeType); err != nil {
		return nil, err
	}
	if err := u.checkSize(attachment.Kind, int64(len(data))); err != nil {
		return nil, err
	}

	result, err := u.api.Upload(ctx, attachment.Kind, fileName, mimeType, bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewUploadError(kind, err)
	}
	if err := media.ValidateRemoteURL(result.RemoteURL); err != nil {
		return nil, errors.NewUploadError(kind,
			errors.Wrap(err, errors.ErrCodeMalformedInput, "upload returned no usable URL"))
	}
	if result.MimeType == "" {
		result.MimeType = mimeType
	}
	return result, nil
}

// readAttachment loads the picked bytes from a file path, a file:// URI or a
// data URI and fills in the file name and MIME type when the picker omitted
// them.
func (u *AttachmentUploader) readAttachment(attachment models.Attachment) ([]byte, string, string, error) {
	kind := string(attachment.Kind)
	fileName := attachment.FileName
	mimeType := attachment.MimeType

	var data []byte
	if strings.HasPrefix(attachment.LocalURI, "data:") {
		parsedMime, decoded, err := media.ParseDataURI(attachment.LocalURI)
		if err != nil {
			return nil, "", "", errors.NewUploadError(kind, err)
		}
		data = decoded
		if mimeType == "" {
			mimeType = parsedMime
		}
		if fileName == "" {
			fileName = defaultFileName(attachment.Kind, mimeType)
		}
	} else {
		path, err := localPath(attachment.LocalURI)
		if err != nil {
			return nil, "", "", errors.NewUploadError(kind, err)
		}
		data, err = u.readLocalFile(attachment.Kind, path)
		if errors.GetCode(err) == errors.ErrCodeValidationFailed {
			return nil, "", "", err
		}
		if err != nil {
			return nil, "", "", errors.NewUploadError(kind,
				errors.Wrap(err, errors.ErrCodeNotFound, "failed to read attachment").
					WithUserMessage("The selected file could not be read"))
		}
		if fileName == "" {
			fileName = filepath.Base(path)
		}
	}

	if mimeType == "" {
		mimeType = constants.MimeTypeForFile(fileName)
	}
	return data, fileName, mimeType, nil
}

func (u *AttachmentUploader) checkType(kind models.AttachmentKind, fileName, mimeType string) error {
	allowed := u.config.AllowedTypes.Document
	prefixOK := true
	if kind == models.AttachmentImage {
		allowed = u.config.AllowedTypes.Image
		prefixOK = strings.HasPrefix(strings.ToLower(mimeType), "image/")
	}
	if !prefixOK {
		return errors.NewValidationError("mime_type", fmt.Sprintf("%s is not an image", mimeType))
	}
	if len(allowed) == 0 {
		return nil
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	if ext == "" {
		return nil
	}
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimPrefix(a, "."), ext) {
			return nil
		}
	}
	return errors.NewValidationError("file_type", fmt.Sprintf(".%s files are not supported", ext))
}

func (u *AttachmentUploader) checkSize(kind models.AttachmentKind, size int64) error {
	limitMB := u.config.MaxSizeMB.Document
	if kind == models.AttachmentImage {
		limitMB = u.config.MaxSizeMB.Image
	}
	if size == 0 {
		return errors.NewValidationError("size", "file is empty")
	}
	if limitMB > 0 && size > int64(limitMB)*1024*1024 {
		return errors.NewValidationError("size", fmt.Sprintf("file exceeds %d MB", limitMB))
	}
	return nil
}

func localPath(uri string) (string, error) {
	if !strings.HasPrefix(uri, "file://") {
		return filepath.Clean(uri), nil
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid file URI: %w", err)
	}
	return filepath.Clean(parsed.Path), nil
}

// readLocalFile checks the file size against the kind's limit before reading,
// so an oversized pick is rejected without loading it.
func (u *AttachmentUploader) readLocalFile(kind models.AttachmentKind, path string) ([]byte, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path) // #nosec G304 - local paths reach the uploader only from the OS picker
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}
	if err := u.checkSize(kind, info.Size()); err != nil {
		return nil, err
	}
	return io.ReadAll(io.LimitReader(f, info.Size()+1))
}

func defaultFileName(kind models.AttachmentKind, mimeType string) string {
	if kind == models.AttachmentImage {
		if idx := strings.Index(mimeType, "/"); idx >= 0 && idx < len(mimeType)-1 {
			return "image." + mimeType[idx+1:]
		}
		return "image.jpg"
	}
	return "document." + constants.DocumentExtension(mimeType)
}
