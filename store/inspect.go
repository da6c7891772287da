package store

import (
	"encoding/json"
	"fmt"
	"os"
)

// Summary describes a data file without migrating or writing it. Counts are
// taken from the raw document, so they are meaningful at any schema
// version.
type Summary struct {
	Version          int
	Accounts         int
	Projects         int
	PublishTokens    int
	ActiveTokens     int
	Emails           int
	EmailVerifyCodes int
	EmailRevertCodes int
	BugReports       int
}

// Inspect reads the data file at path and summarizes it. The file is never
// written; a document from a newer build inspects fine.
func Inspect(path string) (Summary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, fmt.Errorf("store: read %s: %w", path, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Summary{}, fmt.Errorf("store: decode %s: %w", path, err)
	}

	return Summary{
		Version:          intField(doc, "version"),
		Accounts:         len(mapField(doc, "accounts")),
		Projects:         len(mapField(doc, "projects")),
		PublishTokens:    len(mapField(doc, "publishTokens")),
		ActiveTokens:     len(mapField(doc, "activeTokens")),
		Emails:           len(mapField(doc, "emails")),
		EmailVerifyCodes: len(mapField(doc, "emailVerifyCodes")),
		EmailRevertCodes: len(mapField(doc, "emailRevertCodes")),
		BugReports:       len(sliceField(doc, "bugReports")),
	}, nil
}
