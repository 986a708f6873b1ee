package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront-service/internal/db"
	"github.com/vasiliy-maslov/storefront-service/internal/storage"
)

const MaxFileSize = 10 << 20

var (
	ErrUploadNotFound      = errors.New("upload not found")
	ErrOwnerRequired       = errors.New("upload requires a user or an anonymous id")
	ErrUnsupportedType     = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file is too large")
	ErrUploadNotAccessible = errors.New("upload belongs to another owner")
)

var allowedTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/webp":      true,
	"image/gif":       true,
	"image/svg+xml":   true,
	"application/pdf": true,
}

// DesignUpload is the audit record of a customer artwork upload.
type DesignUpload struct {
	ID          uuid.UUID  `json:"id"`
	UserID      *uuid.UUID `json:"user_id"`
	AnonymousID *string    `json:"anonymous_id"`
	StoragePath string     `json:"storage_path"`
	Filename    string     `json:"filename"`
	FileSize    int64      `json:"file_size"`
	MimeType    string     `json:"mime_type"`
	CreatedAt   time.Time  `json:"created_at"`
}

type Request struct {
	UserID      *uuid.UUID
	AnonymousID string
	Filename    string
	FileSize    int64
	MimeType    string
}

type Ticket struct {
	Upload    DesignUpload       `json:"upload"`
	SignedURL *storage.SignedURL `json:"signed_url"`
}

type Repository interface {
	Create(ctx context.Context, u *DesignUpload) error
	GetByID(ctx context.Context, id uuid.UUID) (*DesignUpload, error)
}

type postgresRepository struct {
	db db.Querier
}

func NewRepository(database db.Querier) Repository {
	return &postgresRepository{db: database}
}

func (r *postgresRepository) Create(ctx context.Context, u *DesignUpload) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.Must(uuid.NewV4())
	}
	u.CreatedAt = time.Now().UTC()
	query := `
		INSERT INTO design_uploads (id, user_id, anonymous_id, storage_path, filename, file_size, mime_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query, u.ID, u.UserID, u.AnonymousID, u.StoragePath, u.Filename, u.FileSize, u.MimeType, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert design upload: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*DesignUpload, error) {
	query := `
		SELECT id, user_id, anonymous_id, storage_path, filename, file_size, mime_type, created_at
		FROM design_uploads WHERE id = $1
	`
	var u DesignUpload
	err := r.db.QueryRow(ctx, query, id).Scan(&u.ID, &u.UserID, &u.AnonymousID, &u.StoragePath,
		&u.Filename, &u.FileSize, &u.MimeType, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUploadNotFound
		}
		return nil, fmt.Errorf("repository: failed to select design upload %s: %w", id, err)
	}
	return &u, nil
}

type Service interface {
	// CreateDesignUpload records the upload and returns a signed URL the client PUTs the file to.
	CreateDesignUpload(ctx context.Context, req Request) (*Ticket, error)
	// DesignReadURL signs a time-limited read URL for an upload owned by the caller.
	DesignReadURL(ctx context.Context, id uuid.UUID, userID *uuid.UUID, anonymousID string) (*storage.SignedURL, error)
	// ProductImageUpload signs an upload for an admin product image.
	ProductImageUpload(ctx context.Context, filename, mimeType string) (*storage.SignedURL, string, error)
}

type service struct {
	repo  Repository
	store storage.Storage
}

func NewService(repo Repository, store storage.Storage) Service {
	return &service{repo: repo, store: store}
}

func validateFile(mimeType string, size int64) error {
	if !allowedTypes[strings.ToLower(mimeType)] {
		return ErrUnsupportedType
	}
	if size < 0 || size > MaxFileSize {
		return ErrFileTooLarge
	}
	return nil
}

func (s *service) CreateDesignUpload(ctx context.Context, req Request) (*Ticket, error) {
	anonymousID := strings.TrimSpace(req.AnonymousID)
	if req.UserID == nil && anonymousID == "" {
		return nil, ErrOwnerRequired
	}
	if err := validateFile(req.MimeType, req.FileSize); err != nil {
		return nil, err
	}

	owner := anonymousID
	if req.UserID != nil {
		owner = req.UserID.String()
	}
	id := uuid.Must(uuid.NewV4())
	filename := storage.SanitizeFilename(req.Filename)
	objectPath, err := storage.JoinPath("designs", storage.SanitizeFilename(owner), id.String()+"-"+filename)
	if err != nil {
		return nil, err
	}

	signed, err := s.store.SignedUploadURL(ctx, objectPath)
	if err != nil {
		log.Error().Err(err).Str("path", objectPath).Msg("service: failed to sign design upload")
		return nil, fmt.Errorf("service: failed to sign design upload: %w", err)
	}

	u := &DesignUpload{
		ID:          id,
		UserID:      req.UserID,
		StoragePath: objectPath,
		Filename:    filename,
		FileSize:    req.FileSize,
		MimeType:    strings.ToLower(req.MimeType),
	}
	if anonymousID != "" {
		u.AnonymousID = &anonymousID
	}
	if err := s.repo.Create(ctx, u); err != nil {
		log.Error().Err(err).Str("path", objectPath).Msg("service: failed to record design upload")
		return nil, fmt.Errorf("service: failed to record design upload: %w", err)
	}

	return &Ticket{Upload: *u, SignedURL: signed}, nil
}

func (s *service) DesignReadURL(ctx context.Context, id uuid.UUID, userID *uuid.UUID, anonymousID string) (*storage.SignedURL, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ownedByUser := userID != nil && u.UserID != nil && *u.UserID == *userID
	ownedByAnon := anonymousID != "" && u.AnonymousID != nil && *u.AnonymousID == anonymousID
	if !ownedByUser && !ownedByAnon {
		return nil, ErrUploadNotAccessible
	}

	signed, err := s.store.SignedReadURL(ctx, u.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("service: failed to sign design read: %w", err)
	}
	return signed, nil
}

func (s *service) ProductImageUpload(ctx context.Context, filename, mimeType string) (*storage.SignedURL, string, error) {
	if err := validateFile(mimeType, 0); err != nil {
		return nil, "", err
	}
	objectPath, err := storage.JoinPath("products", uuid.Must(uuid.NewV4()).String()+"-"+storage.SanitizeFilename(filename))
	if err != nil {
		return nil, "", err
	}
	signed, err := s.store.SignedUploadURL(ctx, objectPath)
	if err != nil {
		return nil, "", fmt.Errorf("service: failed to sign product image upload: %w", err)
	}
	return signed, s.store.PublicURL(objectPath), nil
}
