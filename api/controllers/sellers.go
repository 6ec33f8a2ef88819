package controllers

import (
	"net/http"
	"strings"

	"github.com/uninote/uninote-backend/api/responses"
	"github.com/uninote/uninote-backend/api/validators"
	"github.com/uninote/uninote-backend/internal/sellers"
	"github.com/uninote/uninote-backend/pkg/enums"
	"github.com/uninote/uninote-backend/pkg/logger"
)

// SellerApply submits the caller's seller application.
func SellerApply(svc sellers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("seller service"))
			return
		}
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body sellers.ApplyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Apply(r.Context(), userID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

// AdminSellerList lists applications by status, pending by default.
func AdminSellerList(svc sellers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("seller service"))
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := enums.SellerStatus(strings.TrimSpace(r.URL.Query().Get("status")))

		page, err := svc.List(r.Context(), status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func AdminSellerApprove(svc sellers.Service, logg *logger.Logger) http.HandlerFunc {
	return adminSellerReview(svc, logg, true)
}

func AdminSellerReject(svc sellers.Service, logg *logger.Logger) http.HandlerFunc {
	return adminSellerReview(svc, logg, false)
}

func adminSellerReview(svc sellers.Service, logg *logger.Logger, approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("seller service"))
			return
		}
		adminID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := validators.ParseUUIDParam(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		review := svc.Reject
		if approve {
			review = svc.Approve
		}
		user, err := review(r.Context(), adminID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}
