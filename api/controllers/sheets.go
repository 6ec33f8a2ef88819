package controllers

import (
	"net/http"
	"strings"

	"github.com/uninote/uninote-backend/api/responses"
	"github.com/uninote/uninote-backend/api/validators"
	"github.com/uninote/uninote-backend/internal/sheets"
	pkgerrors "github.com/uninote/uninote-backend/pkg/errors"
	"github.com/uninote/uninote-backend/pkg/logger"
)

const uploadField = "file"

// SheetCreate lists a new, inactive sheet for an approved seller.
func SheetCreate(svc sheets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("sheet service"))
			return
		}
		sellerID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body sheets.CreateSheetInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sheet, err := svc.Create(r.Context(), sellerID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sheet)
	}
}

func SheetUpdate(svc sheets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("sheet service"))
			return
		}
		sellerID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sheetID, err := validators.ParseUUIDParam(r, "sheetId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body sheets.UpdateSheetInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sheet, err := svc.Update(r.Context(), sellerID, sheetID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sheet)
	}
}

// SheetUpload replaces the sheet's full file or its preview with the PDF in
// the multipart field "file".
func SheetUpload(svc sheets.Service, kind sheets.UploadKind, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("sheet service"))
			return
		}
		sellerID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sheetID, err := validators.ParseUUIDParam(r, "sheetId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		data, err := validators.ReadMultipartFile(w, r, uploadField, maxBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sheet, err := svc.AttachObject(r.Context(), sellerID, sheetID, kind, data)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sheet)
	}
}

// SheetList is the public catalog search.
func SheetList(svc sheets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("sheet service"))
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters, err := parseSheetFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), filters, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func SheetGet(svc sheets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("sheet service"))
			return
		}
		sheetID, err := validators.ParseUUIDParam(r, "sheetId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sheet, err := svc.Get(r.Context(), optionalUser(r), sheetID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sheet)
	}
}

// SellerSheets lists the caller's own sheets, hidden ones included.
func SellerSheets(svc sheets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("sheet service"))
			return
		}
		sellerID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListForSeller(r.Context(), sellerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func parseSheetFilters(r *http.Request) (sheets.ListFilters, error) {
	q := r.URL.Query()
	filters := sheets.ListFilters{
		Query:      strings.TrimSpace(q.Get("q")),
		Course:     strings.TrimSpace(q.Get("course")),
		University: strings.TrimSpace(q.Get("university")),
		Subject:    strings.TrimSpace(q.Get("subject")),
	}

	sellerID, err := validators.ParseQueryUUID(r, "seller_id")
	if err != nil {
		return filters, err
	}
	filters.SellerID = sellerID

	minCents, err := validators.ParseQueryInt64(r, "price_min_cents")
	if err != nil {
		return filters, err
	}
	maxCents, err := validators.ParseQueryInt64(r, "price_max_cents")
	if err != nil {
		return filters, err
	}
	if minCents != nil && maxCents != nil && *minCents > *maxCents {
		return filters, pkgerrors.New(pkgerrors.CodeValidation, "price_min_cents exceeds price_max_cents")
	}
	if minCents != nil {
		v := sheets.PriceFromCents(*minCents)
		filters.PriceMin = &v
	}
	if maxCents != nil {
		v := sheets.PriceFromCents(*maxCents)
		filters.PriceMax = &v
	}
	return filters, nil
}
