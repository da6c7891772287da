package store

import (
	"encoding/json"
	"time"
)

// ProjectType selects the starter template for a project. The value doubles
// as an index into Data.StarterCodes.
//
//	0: HTML
//	1: Markdown
type ProjectType int

const (
	// ProjectHTML is the HTML project type.
	ProjectHTML ProjectType = iota
	// ProjectMarkdown is the Markdown project type.
	ProjectMarkdown
)

// AccountData holds the nested per-account email state. Field names follow
// the persisted document and must not change.
type AccountData struct {
	Email            string   `json:"email"`
	StripeCustomer   string   `json:"stripe_customer"`
	EmailVerifyCode  string   `json:"email_verify_code"`
	EmailRevertCodes []string `json:"email_revert_codes"`
}

// Account is a stored account. Settings is an opaque blob owned by the
// dashboard; the engine never inspects it.
type Account struct {
	ActiveToken string          `json:"activeToken,omitempty"`
	ID          string          `json:"id"`
	Username    string          `json:"username"`
	Password    string          `json:"password"`
	Projects    []string        `json:"projects"`
	Settings    json.RawMessage `json:"settings"`
	Data        AccountData     `json:"data"`
	IsAdmin     bool            `json:"isAdmin"`
}

// Project is a stored project. Code is the full document source.
type Project struct {
	Account      string      `json:"account"`
	Name         string      `json:"name"`
	Code         string      `json:"code"`
	PublishToken string      `json:"publishToken,omitempty"`
	Type         ProjectType `json:"type"`
	ID           string      `json:"id"`
}

// PublishToken maps an opaque publish token back to its project.
type PublishToken struct {
	Project string `json:"project"`
}

// BugReport is a user-submitted report, readable and editable by admins.
type BugReport struct {
	Account  string `json:"account"`
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	Steps    string `json:"steps"`
	Comments string `json:"comments"`
	Read     bool   `json:"read"`
}

// ChangeCode records one pending or historical email change. Verify codes
// and revert codes share this shape and live in separate maps. Time is a
// millisecond unix timestamp, matching the persisted document.
type ChangeCode struct {
	Account string `json:"account"`
	Email   string `json:"email"`
	Time    int64  `json:"time"`
	Code    string `json:"code"`
}

// CreatedAt returns the code's creation time.
func (c *ChangeCode) CreatedAt() time.Time {
	return time.UnixMilli(c.Time)
}

// Data is the whole persisted aggregate. Every map after Version is an
// index or a collection; each index entry must be the exact inverse of its
// forward reference. The engine mutates Data in memory and persists it as a
// single document.
type Data struct {
	Version int `json:"version"`

	Accounts         map[string]*Account `json:"accounts"`
	AccountUsernames map[string]string   `json:"accountUsernames"`
	ActiveTokens     map[string]string   `json:"activeTokens"`

	Projects      map[string]*Project      `json:"projects"`
	PublishTokens map[string]*PublishToken `json:"publishTokens"`

	StarterCodes []string     `json:"starterCodes"`
	BugReports   []*BugReport `json:"bugReports"`

	Emails           map[string]string      `json:"emails"`
	EmailVerifyCodes map[string]*ChangeCode `json:"emailVerifyCodes"`
	EmailRevertCodes map[string]*ChangeCode `json:"emailRevertCodes"`

	// Reserved for the custom-domain proxy; carried but never touched here.
	CustomDomains       map[string]json.RawMessage `json:"customDomains"`
	CustomDomainsLookup map[string]string          `json:"customDomainsLookup"`
}

// defaultSettingsJSON is the settings blob attached to new accounts and
// restored by a settings reset. The dashboard owns its meaning; here it is
// only a default value.
const defaultSettingsJSON = `{
	"editor": {
		"acceptSuggestionOnCommitCharacter": true,
		"acceptSuggestionOnEnter": "on",
		"autoClosingBrackets": "always",
		"autoIndent": true,
		"automaticLayout": true,
		"codeLens": true,
		"cursorBlinking": "blink",
		"cursorStyle": "line",
		"folding": true,
		"fontFamily": "Inconsolata",
		"fontLigatures": true,
		"fontSize": 14,
		"fontWeight": "100",
		"hover": {
			"enabled": true,
			"delay": 300,
			"sticky": true
		},
		"letterSpacing": 0,
		"lineDecorationsWidth": 10,
		"lineHeight": 16,
		"lineNumbers": "on",
		"lineNumbersMinChars": 5,
		"matchBrackets": true,
		"mouseWheelScrollSensitivity": 1,
		"parameterHints": {
			"enabled": true,
			"cycle": false
		},
		"quickSuggestions": true,
		"quickSuggestionsDelay": 500,
		"renderControlCharacters": true,
		"renderIndentGuides": true,
		"renderLineHighlight": "none",
		"renderWhitespace": "all",
		"revealHorizontalRightPadding": 30,
		"scrollBeyondLastLine": false,
		"showFoldingControls": "always",
		"snippetSuggestions": "bottom",
		"stopRenderingLineAfter": -1,
		"suggestFontSize": 14,
		"suggestLineHeight": 16,
		"theme": "vs-dark",
		"useTabStops": true,
		"wordWrap": "on",
		"wordWrapColumn": 80,
		"wrappingIndent": "same"
	}
}`

// DefaultSettings returns a fresh copy of the default settings blob.
func DefaultSettings() json.RawMessage {
	return json.RawMessage(defaultSettingsJSON)
}

// NewData returns an empty aggregate already at the latest schema version,
// used when no data file exists yet.
func NewData() *Data {
	return &Data{
		Version:             SchemaVersion(),
		Accounts:            map[string]*Account{},
		AccountUsernames:    map[string]string{},
		ActiveTokens:        map[string]string{},
		Projects:            map[string]*Project{},
		PublishTokens:       map[string]*PublishToken{},
		StarterCodes:        defaultStarterCodes(),
		BugReports:          []*BugReport{},
		Emails:              map[string]string{},
		EmailVerifyCodes:    map[string]*ChangeCode{},
		EmailRevertCodes:    map[string]*ChangeCode{},
		CustomDomains:       map[string]json.RawMessage{},
		CustomDomainsLookup: map[string]string{},
	}
}
