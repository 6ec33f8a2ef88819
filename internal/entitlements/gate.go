package entitlements

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/uninote/uninote-backend/pkg/db"
	"github.com/uninote/uninote-backend/pkg/db/models"
	pkgerrors "github.com/uninote/uninote-backend/pkg/errors"
	"github.com/uninote/uninote-backend/pkg/storage/s3"
)

type ownershipReader interface {
	ExistsCompleted(ctx context.Context, userID, sheetID uuid.UUID) (bool, error)
}

type sheetReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Sheet, error)
}

// Grant names the stored object a caller may fetch.
type Grant struct {
	SheetID  uuid.UUID
	FileKey  string
	Filename string
	Full     bool
}

// Gate answers ownership questions from the purchase ledger. It keeps no
// cache; every check reads the current ledger state.
type Gate struct {
	purchases ownershipReader
	sheets    sheetReader
}

// NewGate builds an entitlement gate.
func NewGate(purchases ownershipReader, sheets sheetReader) (*Gate, error) {
	if purchases == nil {
		return nil, fmt.Errorf("purchase reader required")
	}
	if sheets == nil {
		return nil, fmt.Errorf("sheet reader required")
	}
	return &Gate{purchases: purchases, sheets: sheets}, nil
}

// IsOwned reports whether userID holds a completed purchase of sheetID.
func (g *Gate) IsOwned(ctx context.Context, userID, sheetID uuid.UUID) (bool, error) {
	owned, err := g.purchases.ExistsCompleted(ctx, userID, sheetID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check ownership")
	}
	return owned, nil
}

// AuthorizeDownload returns the full file of a sheet the user owns.
func (g *Gate) AuthorizeDownload(ctx context.Context, userID, sheetID uuid.UUID) (Grant, error) {
	sheet, err := g.loadSheet(ctx, sheetID)
	if err != nil {
		return Grant{}, err
	}
	owned, err := g.IsOwned(ctx, userID, sheetID)
	if err != nil {
		return Grant{}, err
	}
	if !owned {
		return Grant{}, pkgerrors.New(pkgerrors.CodeForbidden, "purchase required to download this sheet")
	}
	if !sheet.HasFile() {
		return Grant{}, pkgerrors.New(pkgerrors.CodeNotFound, "sheet file not uploaded")
	}
	return Grant{SheetID: sheet.ID, FileKey: *sheet.FileKey, Filename: filename(sheet, false), Full: true}, nil
}

// AuthorizePreview hands owners the full file and everyone else the preview
// object. userID may be nil for anonymous callers.
func (g *Gate) AuthorizePreview(ctx context.Context, userID *uuid.UUID, sheetID uuid.UUID) (Grant, error) {
	sheet, err := g.loadSheet(ctx, sheetID)
	if err != nil {
		return Grant{}, err
	}

	if userID != nil && sheet.HasFile() {
		owned, err := g.IsOwned(ctx, *userID, sheetID)
		if err != nil {
			return Grant{}, err
		}
		if owned {
			return Grant{SheetID: sheet.ID, FileKey: *sheet.FileKey, Filename: filename(sheet, false), Full: true}, nil
		}
	}

	if !sheet.IsActive && (userID == nil || *userID != sheet.SellerID) {
		return Grant{}, pkgerrors.New(pkgerrors.CodeNotFound, "sheet not found")
	}
	if !sheet.HasPreview() {
		return Grant{}, pkgerrors.New(pkgerrors.CodeNotFound, "sheet has no preview")
	}
	return Grant{SheetID: sheet.ID, FileKey: *sheet.PreviewKey, Filename: filename(sheet, true)}, nil
}

func (g *Gate) loadSheet(ctx context.Context, sheetID uuid.UUID) (*models.Sheet, error) {
	sheet, err := g.sheets.FindByID(ctx, sheetID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sheet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sheet")
	}
	return sheet, nil
}

func filename(sheet *models.Sheet, preview bool) string {
	name := s3.Slug(sheet.Title)
	if name == "" {
		name = sheet.ID.String()
	}
	if preview {
		name += "-preview"
	}
	return name + ".pdf"
}
