package enums

import "testing"

func TestParsePurchaseStatus(t *testing.T) {
	for _, raw := range []string{"PENDING", "COMPLETED", "FAILED"} {
		status, err := ParsePurchaseStatus(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if status.String() != raw {
			t.Fatalf("expected verbatim value %q, got %q", raw, status)
		}
	}
	if _, err := ParsePurchaseStatus("completed"); err == nil {
		t.Fatalf("expected lower-case status to be rejected")
	}
}

func TestPurchaseStatusTerminal(t *testing.T) {
	if PurchaseStatusPending.IsTerminal() {
		t.Fatalf("pending must not be terminal")
	}
	if !PurchaseStatusCompleted.IsTerminal() || !PurchaseStatusFailed.IsTerminal() {
		t.Fatalf("completed and failed must be terminal")
	}
}

func TestSellerStatusCanApply(t *testing.T) {
	cases := map[SellerStatus]bool{
		SellerStatusNone:     true,
		SellerStatusRejected: true,
		SellerStatusPending:  false,
		SellerStatusApproved: false,
	}
	for status, want := range cases {
		if got := status.CanApply(); got != want {
			t.Fatalf("%s: expected CanApply=%v, got %v", status, want, got)
		}
	}
}

func TestParseUserRole(t *testing.T) {
	if role, err := ParseUserRole("admin"); err != nil || role != UserRoleAdmin {
		t.Fatalf("expected admin role, got %q (%v)", role, err)
	}
	if _, err := ParseUserRole("vendor"); err == nil {
		t.Fatalf("expected unknown role to fail")
	}
}

func TestGatewayEventKindIsKnown(t *testing.T) {
	if !GatewayEventCompleted.IsKnown() || !GatewayEventExpired.IsKnown() {
		t.Fatalf("expected completed and expired to be known")
	}
	if GatewayEventKind("refunded").IsKnown() {
		t.Fatalf("unexpected known kind")
	}
}
