package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/uninote/uninote-backend/api/middleware"
	pkgerrors "github.com/uninote/uninote-backend/pkg/errors"
)

func requireUser(r *http.Request) (uuid.UUID, error) {
	id, ok := middleware.UserUUIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return id, nil
}

func optionalUser(r *http.Request) *uuid.UUID {
	id, ok := middleware.UserUUIDFromContext(r.Context())
	if !ok {
		return nil
	}
	return &id
}

func unavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" unavailable")
}
