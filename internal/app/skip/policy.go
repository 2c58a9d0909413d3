package skip

// Policy represents the configured behavior for one segment category.
type Policy int

const (
	PolicyIgnore Policy = iota // Never surface or skip
	PolicyManual               // Offer the skip button once per segment
	PolicyAuto                 // Skip without user action
)

// String returns the string representation of the policy.
func (p Policy) String() string {
	switch p {
	case PolicyIgnore:
		return "ignore"
	case PolicyManual:
		return "manual"
	case PolicyAuto:
		return "auto"
	default:
		return "unknown"
	}
}

// ParsePolicy parses a policy name.
func ParsePolicy(s string) (Policy, bool) {
	switch s {
	case "ignore":
		return PolicyIgnore, true
	case "manual":
		return PolicyManual, true
	case "auto":
		return PolicyAuto, true
	default:
		return 0, false
	}
}
