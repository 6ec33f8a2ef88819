package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/uninote/uninote-backend/api/middleware"
	"github.com/uninote/uninote-backend/internal/entitlements"
	"github.com/uninote/uninote-backend/internal/purchases"
	"github.com/uninote/uninote-backend/internal/sheets"
	"github.com/uninote/uninote-backend/pkg/config"
	pkgerrors "github.com/uninote/uninote-backend/pkg/errors"
	"github.com/uninote/uninote-backend/pkg/pagination"
	"github.com/uninote/uninote-backend/pkg/storage/s3"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func asUser(r *http.Request, id uuid.UUID) *http.Request {
	return r.WithContext(middleware.WithUserID(r.Context(), id.String()))
}

type stubPurchases struct {
	purchases.Service
	initiate func(buyerID, sheetID uuid.UUID) (*purchases.InitiateResult, error)
}

func (s stubPurchases) Initiate(_ context.Context, buyerID, sheetID uuid.UUID) (*purchases.InitiateResult, error) {
	return s.initiate(buyerID, sheetID)
}

func TestPurchaseInitiate(t *testing.T) {
	buyer, sheet, purchase := uuid.New(), uuid.New(), uuid.New()
	svc := stubPurchases{initiate: func(b, s uuid.UUID) (*purchases.InitiateResult, error) {
		require.Equal(t, buyer, b)
		require.Equal(t, sheet, s)
		return &purchases.InitiateResult{PurchaseID: purchase, CheckoutURL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
	}}

	r := chi.NewRouter()
	r.Post("/api/v1/sheets/{sheetId}/purchase", PurchaseInitiate(svc, nil))

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/sheets/"+sheet.String()+"/purchase", nil), buyer)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var result purchases.InitiateResult
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &result))
	require.Equal(t, purchase, result.PurchaseID)
	require.Contains(t, result.CheckoutURL, "cs_test_1")
}

func TestPurchaseInitiateMapsEngineErrors(t *testing.T) {
	cases := map[pkgerrors.Code]int{
		pkgerrors.CodeAlreadyOwned:       http.StatusConflict,
		pkgerrors.CodeSheetInactive:      http.StatusConflict,
		pkgerrors.CodeNotFound:           http.StatusNotFound,
		pkgerrors.CodeGatewayUnavailable: http.StatusBadGateway,
	}
	for code, status := range cases {
		svc := stubPurchases{initiate: func(uuid.UUID, uuid.UUID) (*purchases.InitiateResult, error) {
			return nil, pkgerrors.New(code, "rejected")
		}}
		r := chi.NewRouter()
		r.Post("/api/v1/sheets/{sheetId}/purchase", PurchaseInitiate(svc, nil))

		req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/sheets/"+uuid.NewString()+"/purchase", nil), uuid.New())
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		require.Equal(t, status, rec.Code, code)
		require.Equal(t, string(code), decode(t, rec).Error.Code)
	}
}

func TestPurchaseInitiateRejectsBadInput(t *testing.T) {
	svc := stubPurchases{initiate: func(uuid.UUID, uuid.UUID) (*purchases.InitiateResult, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}
	r := chi.NewRouter()
	r.Post("/api/v1/sheets/{sheetId}/purchase", PurchaseInitiate(svc, nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sheets/"+uuid.NewString()+"/purchase", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/v1/sheets/not-a-uuid/purchase", nil), uuid.New()))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubGate struct {
	owned    bool
	download entitlements.Grant
	err      error
	preview  entitlements.Grant
	viewer   *uuid.UUID
}

func (g *stubGate) IsOwned(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return g.owned, g.err
}

func (g *stubGate) AuthorizeDownload(context.Context, uuid.UUID, uuid.UUID) (entitlements.Grant, error) {
	return g.download, g.err
}

func (g *stubGate) AuthorizePreview(_ context.Context, userID *uuid.UUID, _ uuid.UUID) (entitlements.Grant, error) {
	g.viewer = userID
	return g.preview, g.err
}

type stubPresigner struct {
	key, filename string
}

func (p *stubPresigner) PresignGet(_ context.Context, key, filename string) (s3.PresignedURL, error) {
	p.key, p.filename = key, filename
	return s3.PresignedURL{URL: "https://bucket.example/" + key + "?sig=1", ExpiresAt: time.Now().Add(10 * time.Minute)}, nil
}

func TestSheetDownload(t *testing.T) {
	sheetID := uuid.New()
	gate := &stubGate{download: entitlements.Grant{SheetID: sheetID, FileKey: "sheets/x/file/a.pdf", Filename: "linear-algebra.pdf", Full: true}}
	storage := &stubPresigner{}

	r := chi.NewRouter()
	r.Get("/api/v1/sheets/{sheetId}/download", SheetDownload(gate, storage, nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/sheets/"+sheetID.String()+"/download", nil), uuid.New()))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "sheets/x/file/a.pdf", storage.key)
	require.Equal(t, "linear-algebra.pdf", storage.filename)

	var body downloadResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &body))
	require.True(t, body.Full)
	require.Contains(t, body.URL, "sig=1")
}

func TestSheetDownloadForbiddenForNonOwner(t *testing.T) {
	gate := &stubGate{err: pkgerrors.New(pkgerrors.CodeForbidden, "sheet not owned")}
	storage := &stubPresigner{}

	r := chi.NewRouter()
	r.Get("/api/v1/sheets/{sheetId}/download", SheetDownload(gate, storage, nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/sheets/"+uuid.NewString()+"/download", nil), uuid.New()))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Empty(t, storage.key)
}

func TestSheetPreviewAnonymous(t *testing.T) {
	gate := &stubGate{preview: entitlements.Grant{FileKey: "sheets/x/preview/p.pdf", Filename: "x-preview.pdf"}}
	r := chi.NewRouter()
	r.Get("/api/v1/sheets/{sheetId}/preview", SheetPreview(gate, &stubPresigner{}, nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sheets/"+uuid.NewString()+"/preview", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, gate.viewer)
}

func TestSheetOwnership(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/v1/sheets/{sheetId}/ownership", SheetOwnership(&stubGate{owned: true}, nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/sheets/"+uuid.NewString()+"/ownership", nil), uuid.New()))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"owned":true}`, string(decode(t, rec).Data))
}

type stubSheets struct {
	sheets.Service
	filters  sheets.ListFilters
	params   pagination.Params
	uploaded []byte
}

func (s *stubSheets) List(_ context.Context, filters sheets.ListFilters, params pagination.Params) (pagination.Page[sheets.SheetDTO], error) {
	s.filters, s.params = filters, params
	return pagination.Page[sheets.SheetDTO]{Items: []sheets.SheetDTO{}}, nil
}

func (s *stubSheets) AttachObject(_ context.Context, _, sheetID uuid.UUID, _ sheets.UploadKind, data []byte) (*sheets.SheetDTO, error) {
	s.uploaded = data
	return &sheets.SheetDTO{ID: sheetID, HasFile: true}, nil
}

func TestSheetListParsesFilters(t *testing.T) {
	svc := &stubSheets{}
	sellerID := uuid.New()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sheets?q=linear&course=MATH+221&seller_id="+sellerID.String()+"&price_min_cents=100&price_max_cents=999&limit=10", nil)
	SheetList(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "linear", svc.filters.Query)
	require.Equal(t, "MATH 221", svc.filters.Course)
	require.Equal(t, sellerID, *svc.filters.SellerID)
	require.Equal(t, "1.00", svc.filters.PriceMin.StringFixed(2))
	require.Equal(t, "9.99", svc.filters.PriceMax.StringFixed(2))
	require.Equal(t, 10, svc.params.Limit)
}

func TestSheetListRejectsBadFilters(t *testing.T) {
	for _, query := range []string{"price_min_cents=abc", "price_min_cents=500&price_max_cents=100", "seller_id=nope", "limit=1000"} {
		rec := httptest.NewRecorder()
		SheetList(&stubSheets{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sheets?"+query, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func multipartBody(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, "notes.pdf")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestSheetUpload(t *testing.T) {
	svc := &stubSheets{}
	r := chi.NewRouter()
	r.Put("/api/v1/sheets/{sheetId}/file", SheetUpload(svc, sheets.UploadKindFile, 1024, nil))

	body, contentType := multipartBody(t, "file", []byte("%PDF-1.4 tiny"))
	req := asUser(httptest.NewRequest(http.MethodPut, "/api/v1/sheets/"+uuid.NewString()+"/file", body), uuid.New())
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []byte("%PDF-1.4 tiny"), svc.uploaded)
}

func TestSheetUploadTooLarge(t *testing.T) {
	svc := &stubSheets{}
	r := chi.NewRouter()
	r.Put("/api/v1/sheets/{sheetId}/file", SheetUpload(svc, sheets.UploadKindFile, 8, nil))

	body, contentType := multipartBody(t, "file", bytes.Repeat([]byte("a"), 64))
	req := asUser(httptest.NewRequest(http.MethodPut, "/api/v1/sheets/"+uuid.NewString()+"/file", body), uuid.New())
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Nil(t, svc.uploaded)
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	rec := httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{"db": ok, "redis": ok}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "dev", rec.Header().Get(envHeader))

	rec = httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{"db": ok, "redis": down}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
