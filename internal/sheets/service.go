package sheets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/uninote/uninote-backend/pkg/db"
	"github.com/uninote/uninote-backend/pkg/db/models"
	pkgerrors "github.com/uninote/uninote-backend/pkg/errors"
	"github.com/uninote/uninote-backend/pkg/logger"
	"github.com/uninote/uninote-backend/pkg/pagination"
)

const pdfMIME = "application/pdf"

// UploadKind selects which object of a sheet an upload replaces.
type UploadKind string

const (
	UploadKindFile    UploadKind = "file"
	UploadKindPreview UploadKind = "preview"
)

var pdfPageMarker = regexp.MustCompile(`/Type\s*/Page[^s]`)

// Service exposes catalog operations to the controllers.
type Service interface {
	Create(ctx context.Context, sellerID uuid.UUID, input CreateSheetInput) (*SheetDTO, error)
	Update(ctx context.Context, sellerID, sheetID uuid.UUID, input UpdateSheetInput) (*SheetDTO, error)
	AttachObject(ctx context.Context, sellerID, sheetID uuid.UUID, kind UploadKind, data []byte) (*SheetDTO, error)
	Get(ctx context.Context, viewerID *uuid.UUID, sheetID uuid.UUID) (*SheetDTO, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) (pagination.Page[SheetDTO], error)
	ListForSeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (pagination.Page[SheetDTO], error)
}

type sellerLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type objectStore interface {
	Upload(ctx context.Context, key string, body io.ReadSeeker, contentType string) error
	Delete(ctx context.Context, key string) error
}

// ServiceParams bundles catalog service dependencies.
type ServiceParams struct {
	Repo            Repository
	Users           sellerLookup
	Storage         objectStore
	DefaultCurrency string
	MaxUploadBytes  int64
	Logger          *logger.Logger
}

type service struct {
	repo            Repository
	users           sellerLookup
	storage         objectStore
	defaultCurrency string
	maxUploadBytes  int64
	logg            *logger.Logger
}

// NewService builds the catalog service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("sheets repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user lookup required")
	}
	if params.Storage == nil {
		return nil, fmt.Errorf("object storage required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:            params.Repo,
		users:           params.Users,
		storage:         params.Storage,
		defaultCurrency: params.DefaultCurrency,
		maxUploadBytes:  params.MaxUploadBytes,
		logg:            params.Logger,
	}, nil
}

func (s *service) Create(ctx context.Context, sellerID uuid.UUID, input CreateSheetInput) (*SheetDTO, error) {
	seller, err := s.users.FindByID(ctx, sellerID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
	}
	if !seller.IsApprovedSeller() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "seller approval required")
	}
	if input.PriceCents < MinPriceCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("price_cents must be at least %d", MinPriceCents))
	}

	sheet := &models.Sheet{
		ID:          uuid.New(),
		SellerID:    sellerID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Course:      strings.TrimSpace(input.Course),
		University:  strings.TrimSpace(input.University),
		Subject:     trimmedOrNil(input.Subject),
		Price:       PriceFromCents(input.PriceCents),
		Currency:    NormalizeCurrency(input.Currency, s.defaultCurrency),
		IsActive:    false,
	}
	if err := s.repo.Create(ctx, sheet); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create sheet")
	}

	ctx = s.logg.WithSheetID(ctx, sheet.ID.String())
	s.logg.Info(ctx, "sheet.created")
	return FromModel(sheet), nil
}

func (s *service) Update(ctx context.Context, sellerID, sheetID uuid.UUID, input UpdateSheetInput) (*SheetDTO, error) {
	sheet, err := s.ownedSheet(ctx, sellerID, sheetID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Title != nil {
		updates["title"] = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Course != nil {
		updates["course"] = strings.TrimSpace(*input.Course)
	}
	if input.Subject != nil {
		updates["subject"] = trimmedOrNil(input.Subject)
	}
	if input.PriceCents != nil {
		if *input.PriceCents < MinPriceCents {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("price_cents must be at least %d", MinPriceCents))
		}
		updates["price"] = PriceFromCents(*input.PriceCents)
	}
	if input.IsActive != nil {
		if *input.IsActive && !sheet.HasFile() {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "upload a file before activating the sheet")
		}
		updates["is_active"] = *input.IsActive
	}
	if len(updates) == 0 {
		return FromModel(sheet), nil
	}

	if err := s.repo.Update(ctx, sheetID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update sheet")
	}
	return s.reload(ctx, sheetID)
}

func (s *service) AttachObject(ctx context.Context, sellerID, sheetID uuid.UUID, kind UploadKind, data []byte) (*SheetDTO, error) {
	if kind != UploadKindFile && kind != UploadKindPreview {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown upload kind")
	}
	sheet, err := s.ownedSheet(ctx, sellerID, sheetID)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is empty")
	}
	if s.maxUploadBytes > 0 && int64(len(data)) > s.maxUploadBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("file exceeds %d bytes", s.maxUploadBytes))
	}
	if detected := mimetype.Detect(data); !detected.Is(pdfMIME) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("file must be a PDF, got %s", detected.String())).
			WithDetails(map[string]any{"detected": detected.String()})
	}

	ctx = s.logg.WithSheetID(ctx, sheetID.String())
	key := ObjectKey(sheetID, kind)
	if err := s.storage.Upload(ctx, key, bytes.NewReader(data), pdfMIME); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload object")
	}

	updates := map[string]any{}
	previous := sheet.PreviewKey
	if kind == UploadKindFile {
		previous = sheet.FileKey
		updates["file_key"] = key
		updates["page_count"] = countPDFPages(data)
	} else {
		updates["preview_key"] = key
	}
	if err := s.repo.Update(ctx, sheetID, updates); err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "key", key), "sheet.object.orphaned")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record object key")
	}

	if previous != nil && *previous != "" && *previous != key {
		if err := s.storage.Delete(ctx, *previous); err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"key": *previous, "error": err.Error()}), "sheet.object.delete_failed")
		}
	}

	s.logg.Info(s.logg.WithField(ctx, "kind", string(kind)), "sheet.object.uploaded")
	return s.reload(ctx, sheetID)
}

func (s *service) Get(ctx context.Context, viewerID *uuid.UUID, sheetID uuid.UUID) (*SheetDTO, error) {
	sheet, err := s.load(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	if !sheet.IsActive && (viewerID == nil || *viewerID != sheet.SellerID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sheet not found")
	}
	return FromModel(sheet), nil
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) (pagination.Page[SheetDTO], error) {
	filters.IncludeHidden = false
	return s.list(ctx, filters, params)
}

func (s *service) ListForSeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (pagination.Page[SheetDTO], error) {
	return s.list(ctx, ListFilters{SellerID: &sellerID, IncludeHidden: true}, params)
}

func (s *service) list(ctx context.Context, filters ListFilters, params pagination.Params) (pagination.Page[SheetDTO], error) {
	page, err := s.repo.List(ctx, filters, params)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return pagination.Page[SheetDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return pagination.Page[SheetDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sheets")
	}
	return pagination.Page[SheetDTO]{Items: FromModels(page.Items), NextCursor: page.NextCursor}, nil
}

func (s *service) ownedSheet(ctx context.Context, sellerID, sheetID uuid.UUID) (*models.Sheet, error) {
	sheet, err := s.load(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	if sheet.SellerID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the seller can modify this sheet")
	}
	return sheet, nil
}

func (s *service) load(ctx context.Context, sheetID uuid.UUID) (*models.Sheet, error) {
	sheet, err := s.repo.FindByID(ctx, sheetID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sheet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sheet")
	}
	return sheet, nil
}

func (s *service) reload(ctx context.Context, sheetID uuid.UUID) (*SheetDTO, error) {
	sheet, err := s.load(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	return FromModel(sheet), nil
}

// ObjectKey returns a fresh storage key for an upload of the given kind.
func ObjectKey(sheetID uuid.UUID, kind UploadKind) string {
	return fmt.Sprintf("sheets/%s/%s/%s.pdf", sheetID, kind, uuid.New())
}

func countPDFPages(data []byte) int {
	return len(pdfPageMarker.FindAllIndex(data, -1))
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
