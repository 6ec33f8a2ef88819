package enums

// GatewayEventKind is the provider-neutral kind of an inbound checkout callback.
type GatewayEventKind string

const (
	GatewayEventCompleted GatewayEventKind = "completed"
	GatewayEventExpired   GatewayEventKind = "expired"
)

// String implements fmt.Stringer.
func (k GatewayEventKind) String() string {
	return string(k)
}

// IsKnown reports whether the purchase engine acts on this kind.
func (k GatewayEventKind) IsKnown() bool {
	return k == GatewayEventCompleted || k == GatewayEventExpired
}
