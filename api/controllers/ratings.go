package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/uninote/uninote-backend/api/responses"
	"github.com/uninote/uninote-backend/api/validators"
	"github.com/uninote/uninote-backend/internal/ratings"
	"github.com/uninote/uninote-backend/pkg/logger"
	"github.com/uninote/uninote-backend/pkg/pagination"
)

type RatingService interface {
	Rate(ctx context.Context, userID, sheetID uuid.UUID, req ratings.RateRequest) (*ratings.RatingDTO, error)
	List(ctx context.Context, sheetID uuid.UUID, params pagination.Params) (pagination.Page[ratings.RatingDTO], error)
}

// SheetRate records or replaces the caller's rating of a sheet they own.
func SheetRate(svc RatingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("rating service"))
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

		var body ratings.RateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rating, err := svc.Rate(r.Context(), userID, sheetID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rating)
	}
}

func SheetRatings(svc RatingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("rating service"))
			return
		}
		sheetID, err := validators.ParseUUIDParam(r, "sheetId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.List(r.Context(), sheetID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
