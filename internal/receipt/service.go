package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"team-receipts-bot/internal/extraction"
)

// BlobNamer generates unique name prefixes for stored blobs
type BlobNamer interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultBlobNamer generates UUID prefixes so uploads with the same
// filename never collide
type defaultBlobNamer struct{}

func (g *defaultBlobNamer) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service runs the receipt ingestion pipeline and the team operations
// around it.
type Service struct {
	db         DB
	storage    Storage
	extractor  extraction.TextExtractor
	validator  *Validator
	blobNamer  BlobNamer
	timeSource TimeSource
}

// NewService creates a Service with default blob naming and time source
func NewService(db DB, storage Storage, extractor extraction.TextExtractor, validator *Validator) *Service {
	return &Service{
		db:         db,
		storage:    storage,
		extractor:  extractor,
		validator:  validator,
		blobNamer:  &defaultBlobNamer{},
		timeSource: &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, extractor extraction.TextExtractor, validator *Validator, namer BlobNamer, timeSrc TimeSource) *Service {
	return &Service{
		db:         db,
		storage:    storage,
		extractor:  extractor,
		validator:  validator,
		blobNamer:  namer,
		timeSource: timeSrc,
	}
}

// internalErr hides an unexpected cause behind ErrInternal while keeping it
// reachable through errors.Is/As for logging.
func internalErr(err error) error {
	return fmt.Errorf("%w: %w", ErrInternal, err)
}

var reFilenameNoise = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
var reSpaces = regexp.MustCompile(`\s+`)

// sanitizeFilename cleans up a filename by removing special characters and
// truncating length; phone-generated names can be long and messy.
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	base = reFilenameNoise.ReplaceAllString(base, "")
	base = reSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// RegisterUser gets or creates the user record for a Telegram identity.
// The display name is refreshed when it changed since last contact.
func (s *Service) RegisterUser(telegramID int64, username, fullName string) (*User, error) {
	user, err := s.db.GetUserByTelegramID(telegramID)
	if errors.Is(err, ErrUserNotFound) {
		user = &User{
			TelegramID: telegramID,
			Username:   username,
			FullName:   fullName,
			CreatedAt:  s.timeSource.Now(),
		}
		if err := s.db.CreateUser(user); err != nil {
			return nil, internalErr(err)
		}
		slog.Info("registered new user", "telegram_id", telegramID, "username", username)
		return user, nil
	}
	if err != nil {
		return nil, internalErr(err)
	}

	if user.Username != username || user.FullName != fullName {
		user.Username = username
		user.FullName = fullName
		if err := s.db.SaveUser(user); err != nil {
			return nil, internalErr(err)
		}
	}
	return user, nil
}

// Ingest runs the full pipeline for one uploaded document: authorize,
// validate, store the blob, extract text, parse fields, persist the
// receipt. Business failures come back as sentinel errors; extraction
// failures as *extraction.Error. When extraction succeeds but date or
// amount is missing, the blob stays stored and ErrIncompleteExtraction is
// returned without creating a receipt.
func (s *Service) Ingest(ctx context.Context, telegramID int64, data []byte, filename, mimeType string) (*Receipt, error) {
	user, err := s.db.GetUserByTelegramID(telegramID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, internalErr(err)
	}

	membership, err := s.db.MembershipForUser(user.ID)
	if err != nil {
		if errors.Is(err, ErrNoTeam) {
			return nil, err
		}
		return nil, internalErr(err)
	}

	if err := s.validator.Validate(mimeType, int64(len(data))); err != nil {
		return nil, err
	}

	blobName := fmt.Sprintf("%s_%s", s.blobNamer.Generate(), sanitizeFilename(filename))
	savedPath, err := s.storage.Save(blobName, data)
	if err != nil {
		return nil, internalErr(err)
	}

	// The blob is kept on every failure from here on: a stored original can
	// be reprocessed manually, a deleted one cannot.
	text, err := s.extractor.ExtractText(ctx, s.storage.Resolve(savedPath))
	if err != nil {
		slog.Error("text extraction failed",
			"filename", filename,
			"mime_type", mimeType,
			"file_size", len(data),
			"error", err,
		)
		var exErr *extraction.Error
		if errors.As(err, &exErr) {
			return nil, err
		}
		return nil, internalErr(err)
	}

	fields := extraction.ParseFields(text)
	if fields.Date == nil || fields.Amount == nil {
		return nil, ErrIncompleteExtraction
	}

	rec := &Receipt{
		TeamID:          membership.TeamID,
		UploadedBy:      user.ID,
		Date:            *fields.Date,
		Amount:          *fields.Amount,
		OperationNumber: fields.OperationNumber,
		Sender:          fields.Sender,
		Receiver:        fields.Receiver,
		Organization:    fields.Organization,
		Fee:             fields.Fee,
		Status:          StatusPending,
		FilePath:        savedPath,
		CreatedAt:       s.timeSource.Now(),
	}
	if err := s.db.CreateReceipt(rec); err != nil {
		return nil, internalErr(err)
	}

	slog.Info("receipt ingested",
		"receipt_id", rec.ID,
		"team_id", rec.TeamID,
		"uploaded_by", rec.UploadedBy,
		"amount", rec.Amount,
		"date", rec.Date.Format("2006-01-02"),
	)
	return rec, nil
}

// ListReceipts returns the caller's team receipts with dates in [from, to],
// ordered by date ascending, plus the aggregate amount in kopecks/cents.
// An empty window is an empty slice and zero total, not an error.
func (s *Service) ListReceipts(telegramID int64, from, to time.Time) ([]*Receipt, int64, error) {
	user, err := s.db.GetUserByTelegramID(telegramID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, 0, err
		}
		return nil, 0, internalErr(err)
	}

	membership, err := s.db.MembershipForUser(user.ID)
	if err != nil {
		if errors.Is(err, ErrNoTeam) {
			return nil, 0, err
		}
		return nil, 0, internalErr(err)
	}

	receipts, err := s.db.ListTeamReceipts(membership.TeamID, from, to)
	if err != nil {
		return nil, 0, internalErr(err)
	}

	var total int64
	for _, r := range receipts {
		total += r.Amount
	}
	return receipts, total, nil
}

// GetReceiptFile retrieves the stored blob for a receipt
func (s *Service) GetReceiptFile(id int64) ([]byte, error) {
	rec, err := s.db.GetReceipt(id)
	if err != nil {
		if errors.Is(err, ErrReceiptNotFound) {
			return nil, err
		}
		return nil, internalErr(err)
	}
	data, err := s.storage.Get(rec.FilePath)
	if err != nil {
		return nil, internalErr(err)
	}
	return data, nil
}
