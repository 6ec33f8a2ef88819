package enums

import "fmt"

// SellerStatus captures where a user is in seller onboarding.
type SellerStatus string

const (
	SellerStatusNone     SellerStatus = "none"
	SellerStatusPending  SellerStatus = "pending"
	SellerStatusApproved SellerStatus = "approved"
	SellerStatusRejected SellerStatus = "rejected"
)

var validSellerStatuses = []SellerStatus{
	SellerStatusNone,
	SellerStatusPending,
	SellerStatusApproved,
	SellerStatusRejected,
}

// String implements fmt.Stringer.
func (s SellerStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SellerStatus.
func (s SellerStatus) IsValid() bool {
	for _, candidate := range validSellerStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanApply reports whether a user in this status may submit a seller application.
func (s SellerStatus) CanApply() bool {
	return s == SellerStatusNone || s == SellerStatusRejected || s == ""
}

// ParseSellerStatus converts raw input into a SellerStatus.
func ParseSellerStatus(value string) (SellerStatus, error) {
	for _, candidate := range validSellerStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid seller status %q", value)
}
