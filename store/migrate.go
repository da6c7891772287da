package store

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// ErrVersionSkew reports a document written by a newer release than the one
// running. The caller must shut down without touching the data.
var ErrVersionSkew = errors.New("store: data version newer than this build")

// A migration transforms the raw decoded document from one schema version to
// the next. Migrations run over the loosely-typed JSON form, never the typed
// model, so they can re-key maps and rewrite identifier formats freely.
// Each must be a pure function of the document.
type migration func(doc map[string]any) error

// migrations is the ordered pipeline. len(migrations) is the schema version
// a fully upgraded document carries.
var migrations = []migration{
	migrateProjectTypes,
	migrateStarterCodes,
	migratePublishTokenIndexes,
	migrateAccountsToIDs,
}

// SchemaVersion returns the schema version this build reads and writes.
func SchemaVersion() int {
	return len(migrations)
}

// Upgrade applies the migration suffix for doc's version and stamps the
// document with the latest version. It reports whether the document was
// modified; an already-current document is left untouched so the caller can
// skip the persist. A document from a newer release fails with
// ErrVersionSkew before any step runs.
func Upgrade(doc map[string]any) (bool, error) {
	version := intField(doc, "version")

	switch {
	case version == len(migrations):
		return false, nil
	case version > len(migrations):
		return false, fmt.Errorf("%w: data version %d, build supports %d",
			ErrVersionSkew, version, len(migrations))
	}

	for i, step := range migrations[version:] {
		if err := step(doc); err != nil {
			return false, fmt.Errorf("store: migration %d → %d: %w", version+i, version+i+1, err)
		}
	}

	doc["version"] = len(migrations)
	return true, nil
}

// Projects predate project types; stamp everything as HTML.
func migrateProjectTypes(doc map[string]any) error {
	for _, acc := range mapField(doc, "accounts") {
		account, ok := acc.(map[string]any)
		if !ok {
			continue
		}
		for _, p := range sliceField(account, "projects") {
			if project, ok := p.(map[string]any); ok {
				project["type"] = 0
			}
		}
	}
	return nil
}

func migrateStarterCodes(doc map[string]any) error {
	codes := defaultStarterCodes()
	out := make([]any, len(codes))
	for i, c := range codes {
		out[i] = c
	}
	doc["starterCodes"] = out
	return nil
}

// Stamp each publish token with its project's position in the owner's list.
// Transitional form, consumed by migrateAccountsToIDs.
func migratePublishTokenIndexes(doc map[string]any) error {
	tokens := mapField(doc, "publishTokens")

	for _, acc := range mapField(doc, "accounts") {
		account, ok := acc.(map[string]any)
		if !ok {
			continue
		}
		for i, p := range sliceField(account, "projects") {
			project, ok := p.(map[string]any)
			if !ok {
				continue
			}
			token, _ := project["publishToken"].(string)
			if token == "" {
				continue
			}
			entry, ok := tokens[token].(map[string]any)
			if !ok {
				return fmt.Errorf("publish token %q has no entry", token)
			}
			entry["projectIndex"] = i
		}
	}
	return nil
}

// The big re-key: accounts move from username keys to generated ids,
// inline project arrays move into a projects map, and every structure that
// referenced a username or a project position is re-pointed at ids. The
// email ledger and custom-domain maps are introduced here.
func migrateAccountsToIDs(doc map[string]any) error {
	oldAccounts := mapField(doc, "accounts")

	accounts := map[string]any{}
	usernames := map[string]any{}

	for username, acc := range oldAccounts {
		account, ok := acc.(map[string]any)
		if !ok {
			return fmt.Errorf("account %q is not an object", username)
		}

		normalizeEditorSettings(account)
		account["data"] = map[string]any{
			"email":              "",
			"stripe_customer":    "",
			"email_verify_code":  "",
			"email_revert_codes": []any{},
		}

		id := uuid.NewString()
		account["id"] = id
		account["username"] = username
		accounts[id] = account
		usernames[username] = id
	}

	doc["accounts"] = accounts
	doc["accountUsernames"] = usernames

	projects := map[string]any{}
	for id, acc := range accounts {
		account := acc.(map[string]any)
		ids := []any{}
		for _, p := range sliceField(account, "projects") {
			project, ok := p.(map[string]any)
			if !ok {
				continue
			}
			projectID := uuid.NewString()
			project["account"] = id
			project["id"] = projectID
			projects[projectID] = project
			ids = append(ids, projectID)
		}
		account["projects"] = ids
	}
	doc["projects"] = projects

	for token, t := range mapField(doc, "publishTokens") {
		entry, ok := t.(map[string]any)
		if !ok {
			return fmt.Errorf("publish token %q is not an object", token)
		}
		username, _ := entry["username"].(string)
		accountID, _ := usernames[username].(string)
		account, ok := accounts[accountID].(map[string]any)
		if !ok {
			return fmt.Errorf("publish token %q references unknown account %q", token, username)
		}
		index := intField(entry, "projectIndex")
		ids := sliceField(account, "projects")
		if index < 0 || index >= len(ids) {
			return fmt.Errorf("publish token %q references project index %d of %d", token, index, len(ids))
		}
		entry["project"] = ids[index]
		delete(entry, "username")
		delete(entry, "projectIndex")
	}

	for _, r := range sliceField(doc, "bugReports") {
		report, ok := r.(map[string]any)
		if !ok {
			continue
		}
		username, _ := report["username"].(string)
		report["account"] = usernames[username]
		delete(report, "username")
		delete(report, "id")
	}

	tokens := mapField(doc, "activeTokens")
	for token, v := range tokens {
		username, _ := v.(string)
		tokens[token] = usernames[username]
	}

	doc["emails"] = map[string]any{}
	doc["emailVerifyCodes"] = map[string]any{}
	doc["emailRevertCodes"] = map[string]any{}
	doc["customDomains"] = map[string]any{}
	doc["customDomainsLookup"] = map[string]any{}
	return nil
}

// editorIntDefaults restores mis-typed numeric editor settings that older
// dashboard builds stored as strings.
var editorIntDefaults = map[string]float64{
	"fontSize":                     14,
	"letterSpacing":                0,
	"lineDecorationsWidth":         10,
	"lineHeight":                   16,
	"lineNumbersMinChars":          5,
	"mouseWheelScrollSensitivity":  1,
	"overviewRulerLanes":           2,
	"quickSuggestionsDelay":        500,
	"revealHorizontalRightPadding": 30,
	"stopRenderingLineAfter":       -1,
	"suggestFontSize":              14,
	"suggestLineHeight":            16,
	"wordWrapColumn":               80,
}

func normalizeEditorSettings(account map[string]any) {
	editor, ok := account["editorOptions"].(map[string]any)
	if !ok {
		editor = map[string]any{}
	}

	if b, ok := editor["autoClosingBrackets"].(bool); ok {
		if b {
			editor["autoClosingBrackets"] = "always"
		} else {
			editor["autoClosingBrackets"] = "never"
		}
	}
	editor["hover"] = map[string]any{
		"enabled": true,
		"delay":   300,
		"sticky":  true,
	}
	editor["parameterHints"] = map[string]any{
		"enabled": true,
		"cycle":   false,
	}

	for key, fallback := range editorIntDefaults {
		s, ok := editor[key].(string)
		if !ok {
			continue
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			editor[key] = n
		} else {
			editor[key] = fallback
		}
	}

	account["settings"] = map[string]any{"editor": editor}
	delete(account, "editorOptions")
}

func defaultStarterCodes() []string {
	return []string{
		"<!doctype html>\n" +
			"<html>\n" +
			"\t<head>\n" +
			"\t\t<meta charset=\"utf-8\">\n" +
			"\t\t<title>Welcome to Nitrogen</title>\n" +
			"\t\t<style type=\"text/css\">\n" +
			"\t\t\t/* put CSS styles here */\n" +
			"\t\t</style>\n" +
			"\t\t<script type=\"text/javascript\">\n" +
			"\t\t\t/* put JavaScript here */\n" +
			"\t\t</script>\n" +
			"\t</head>\n" +
			"\t<body>\n" +
			"\t\t<h1>New HTML Project</h1>\n" +
			"\t\t<p>Welcome to Nitrogen!</p>\n" +
			"\t</body>\n" +
			"</html>",
		"# New Markdown project\n" +
			"Welcome to Nitrogen!",
	}
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func mapField(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}

func sliceField(m map[string]any, key string) []any {
	v, _ := m[key].([]any)
	return v
}
