package hexazine

import "encoding/json"

// EmailVerificationStatus is the coarse state of an account's email setup.
type EmailVerificationStatus string

const (
	// EmailUnset means the account has no email and no pending code.
	EmailUnset EmailVerificationStatus = "unset"
	// EmailUnverified means the account has no email but a verification is
	// in flight.
	EmailUnverified EmailVerificationStatus = "unverified"
	// EmailVerified means the account has a confirmed email and nothing
	// pending.
	EmailVerified EmailVerificationStatus = "verified"
	// EmailPendingChange means the account has a confirmed email and a
	// change to a new address is in flight.
	EmailPendingChange EmailVerificationStatus = "pending_change"
)

// EmailStatus is the email surface returned to the routing layer.
type EmailStatus struct {
	VerifyStatus EmailVerificationStatus `json:"verify_status"`
	CurrentEmail string                  `json:"current_email"`
	PendingEmail string                  `json:"pending_email"`
}

// AccountInfo is the minimal account listing exposed to admin surfaces.
type AccountInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
}

// ProjectInfo is a code-stripped project listing entry. PublishToken is
// empty for unpublished projects.
type ProjectInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         int    `json:"type"`
	PublishToken string `json:"publishToken,omitempty"`
}

// BugReport is a user-submitted report as accepted from and returned to the
// routing layer.
type BugReport struct {
	Account  string `json:"account"`
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	Steps    string `json:"steps"`
	Comments string `json:"comments"`
	Read     bool   `json:"read"`
}

// Settings is the opaque per-account settings blob. The engine stores and
// returns it without inspecting it.
type Settings = json.RawMessage
