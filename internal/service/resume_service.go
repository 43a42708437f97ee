package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"time"

	"github.com/rs/zerolog"

	"github.com/sitskillbridge/skillbridge-backend/internal/model"
	"github.com/sitskillbridge/skillbridge-backend/internal/resume"
	"github.com/sitskillbridge/skillbridge-backend/internal/storage"
)

// ErrFileTooLarge is returned for uploads above the configured limit.
var ErrFileTooLarge = errors.New("file too large")

// ResumeResult is a parsed resume and whether it was persisted.
type ResumeResult struct {
	Resume  *model.ParsedResume `json:"resume"`
	SavedOK bool                `json:"saved_ok"`
}

// ResumeService turns uploaded resumes into structured profiles.
type ResumeService struct {
	archive  storage.Archive
	docs     *DocumentService
	users    UserStore
	maxBytes int64
	log      zerolog.Logger
	now      func() time.Time
}

// NewResumeService creates a new ResumeService. archive may be nil, in
// which case raw files are not kept.
func NewResumeService(archive storage.Archive, docs *DocumentService, users UserStore, maxBytes int64, log zerolog.Logger) *ResumeService {
	return &ResumeService{
		archive:  archive,
		docs:     docs,
		users:    users,
		maxBytes: maxBytes,
		log:      log.With().Str("component", "resume_service").Logger(),
		now:      time.Now,
	}
}

// ParseUpload reads an uploaded PDF or DOCX, extracts its sections, archives
// the raw file and merges the result into the user's resume document.
func (s *ResumeService) ParseUpload(ctx context.Context, userID string, header *multipart.FileHeader) (*ResumeResult, error) {
	if header.Size > s.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (max: %d)", ErrFileTooLarge, header.Size, s.maxBytes)
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: max %d bytes", ErrFileTooLarge, s.maxBytes)
	}

	return s.Parse(ctx, userID, header.Filename, data)
}

// Parse processes resume bytes named filename.
func (s *ResumeService) Parse(ctx context.Context, userID, filename string, data []byte) (*ResumeResult, error) {
	doc, err := resume.Extract(filename, data)
	if err != nil {
		return nil, err
	}

	parsed := resume.Parse(doc.Text)
	parsed.UID = userID
	parsed.ParsedAt = s.now().UTC().Format(time.RFC3339)
	parsed.Metadata = model.ResumeMetadata{
		FileName:  filename,
		PageCount: doc.PageCount,
		Title:     doc.Title,
		Author:    doc.Author,
		MIMEType:  doc.MIMEType,
	}

	if u, err := s.users.GetByID(ctx, userID); err == nil {
		parsed.FullName = u.FullName
	} else {
		s.log.Debug().Err(err).Str("user_id", userID).Msg("Resume owner lookup failed")
	}

	if s.archive != nil {
		key := storage.ObjectKey("resumes", userID, filename)
		if loc, err := s.archive.Put(ctx, key, doc.MIMEType, data); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Archive resume failed")
		} else {
			parsed.Metadata.Archive = loc
		}
	}

	saved := s.docs.Save(ctx, model.CollectionResumes, userID, parsed)

	s.log.Info().
		Str("user_id", userID).
		Str("mime", doc.MIMEType).
		Int("skills", len(parsed.Skills)).
		Int("experience", len(parsed.Experience)).
		Int("projects", len(parsed.Projects)).
		Bool("saved", saved).
		Msg("Resume parsed")

	return &ResumeResult{Resume: &parsed, SavedOK: saved}, nil
}

// Get returns the stored resume of the user.
func (s *ResumeService) Get(ctx context.Context, userID string) (json.RawMessage, error) {
	return s.docs.Get(ctx, model.CollectionResumes, userID)
}
