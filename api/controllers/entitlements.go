package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/uninote/uninote-backend/api/responses"
	"github.com/uninote/uninote-backend/api/validators"
	"github.com/uninote/uninote-backend/internal/entitlements"
	pkgerrors "github.com/uninote/uninote-backend/pkg/errors"
	"github.com/uninote/uninote-backend/pkg/logger"
	"github.com/uninote/uninote-backend/pkg/storage/s3"
)

// EntitlementGate answers ownership questions for the download routes.
type EntitlementGate interface {
	IsOwned(ctx context.Context, userID, sheetID uuid.UUID) (bool, error)
	AuthorizeDownload(ctx context.Context, userID, sheetID uuid.UUID) (entitlements.Grant, error)
	AuthorizePreview(ctx context.Context, userID *uuid.UUID, sheetID uuid.UUID) (entitlements.Grant, error)
}

// Presigner issues short-lived object links.
type Presigner interface {
	PresignGet(ctx context.Context, key, filename string) (s3.PresignedURL, error)
}

type downloadResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	Filename  string    `json:"filename"`
	Full      bool      `json:"full"`
}

func SheetOwnership(gate EntitlementGate, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gate == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("entitlement gate"))
			return
		}
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sheetID, err := validators.ParseUUIDParam(r, "sheetId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		owned, err := gate.IsOwned(r.Context(), userID, sheetID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"owned": owned})
	}
}

// SheetDownload hands an owner a short-lived link to the full file.
func SheetDownload(gate EntitlementGate, storage Presigner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gate == nil || storage == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("download"))
			return
		}
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sheetID, err := validators.ParseUUIDParam(r, "sheetId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		grant, err := gate.AuthorizeDownload(r.Context(), userID, sheetID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeGrant(r.Context(), w, storage, grant, logg)
	}
}

// SheetPreview serves the preview object, or the full file when the caller
// owns the sheet.
func SheetPreview(gate EntitlementGate, storage Presigner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gate == nil || storage == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("preview"))
			return
		}
		sheetID, err := validators.ParseUUIDParam(r, "sheetId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		grant, err := gate.AuthorizePreview(r.Context(), optionalUser(r), sheetID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeGrant(r.Context(), w, storage, grant, logg)
	}
}

func writeGrant(ctx context.Context, w http.ResponseWriter, storage Presigner, grant entitlements.Grant, logg *logger.Logger) {
	link, err := storage.PresignGet(ctx, grant.FileKey, grant.Filename)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "presign download"))
		return
	}
	if logg != nil {
		logg.Info(logg.WithSheetID(ctx, grant.SheetID.String()), "sheet.download.granted")
	}
	responses.WriteSuccess(w, downloadResponse{
		URL:       link.URL,
		ExpiresAt: link.ExpiresAt,
		Filename:  grant.Filename,
		Full:      grant.Full,
	})
}
