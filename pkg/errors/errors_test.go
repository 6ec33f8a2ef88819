package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized},
		{code: CodeForbidden, status: http.StatusForbidden},
		{code: CodeNotFound, status: http.StatusNotFound},
		{code: CodeConflict, status: http.StatusConflict},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, retryable: true, detailsOK: true},
		{code: CodeSheetInactive, status: http.StatusConflict},
		{code: CodeAlreadyOwned, status: http.StatusConflict},
		{code: CodeGatewayUnavailable, status: http.StatusBadGateway, retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage == "" {
			t.Fatalf("code %s missing public message", tt.code)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeGatewayUnavailable, cause, "create checkout session")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeGatewayUnavailable {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
	if got := Wrap(CodeInternal, nil, "nothing"); got.Unwrap() != nil {
		t.Fatalf("expected nil cause when wrapping nil")
	}
}

func TestAsAndIsCode(t *testing.T) {
	err := fmt.Errorf("handler: %w", New(CodeAlreadyOwned, "sheet already owned"))
	if got := As(err); got == nil || got.Code() != CodeAlreadyOwned {
		t.Fatalf("As failed to return typed error")
	}
	if !IsCode(err, CodeAlreadyOwned) {
		t.Fatalf("expected IsCode to match")
	}
	if IsCode(err, CodeForbidden) {
		t.Fatalf("unexpected match for forbidden")
	}
	if As(nil) != nil || IsCode(nil, CodeInternal) {
		t.Fatalf("nil errors should not match")
	}
}

func TestDumpCapturesPgError(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "purchases_user_sheet_key",
		TableName:      "purchases",
		Message:        "duplicate key value violates unique constraint",
	}
	dump := Dump(Wrap(CodeDependency, pgErr, "insert purchase"))
	if dump.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", dump.Code)
	}
	if dump.PGCode != "23505" || dump.PGConstraint != "purchases_user_sheet_key" {
		t.Fatalf("unexpected pg fields %+v", dump)
	}
	if len(dump.Chain) < 2 {
		t.Fatalf("expected chain to include the cause, got %v", dump.Chain)
	}
	fields := dump.LogFields()
	if fields["pg_table"] != "purchases" {
		t.Fatalf("expected pg_table in log fields, got %v", fields)
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatalf("empty pg_column should be omitted")
	}
}

func TestErrorStringCarriesCause(t *testing.T) {
	err := Wrap(CodeGatewayUnavailable, stdErrors.New("dial tcp: timeout"), "create checkout session")
	if got := err.Error(); got != "GATEWAY_UNAVAILABLE: create checkout session: dial tcp: timeout" {
		t.Fatalf("unexpected error string %q", got)
	}
	if New(CodeNotFound, "sheet not found").Error() != "NOT_FOUND: sheet not found" {
		t.Fatalf("unexpected error string without cause")
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(fmt.Errorf("wrapped: %w", New(CodeGatewayUnavailable, "x"))) {
		t.Fatalf("gateway errors are retryable")
	}
	if Retryable(New(CodeAlreadyOwned, "x")) || Retryable(stdErrors.New("plain")) {
		t.Fatalf("owned and untyped errors are not retryable")
	}
}
