package hdcp

// ProtectionState is the content-protection state of a connector, as
// surfaced to the display-management layer.
type ProtectionState int

const (
	// Undesired means protection is off and not wanted.
	Undesired ProtectionState = iota

	// Desired means protection is wanted but not currently established.
	// Failed enables land here so policy can retry.
	Desired

	// Enabled means the link is authenticated and encrypted.
	Enabled
)

// String returns a human-readable name for the state.
func (s ProtectionState) String() string {
	switch s {
	case Undesired:
		return "Undesired"
	case Desired:
		return "Desired"
	case Enabled:
		return "Enabled"
	default:
		return "Unknown"
	}
}
