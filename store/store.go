// Package store owns the persisted aggregate: the typed document model, the
// schema migration pipeline that upgrades raw data across releases, and the
// whole-document file store.
//
// A Store loaded once at startup is the sole authority for the document for
// the process lifetime. Persist always rewrites the entire file; there is no
// incremental write. Callers serialize access — the Store itself does no
// locking.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// ErrPersistence reports a failed write of the backing file. The in-memory
// aggregate keeps the mutation that triggered the persist; durability is
// unknown and a supervising layer should treat repeated failures as fatal.
var ErrPersistence = errors.New("store: persist failed")

// Store reads and writes the single backing data file.
type Store struct {
	path   string
	logger *zap.Logger

	data *Data
}

// Open returns a Store for the data file at path. No I/O happens until Load.
func Open(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger}
}

// Load reads the backing file, runs the migration pipeline, validates the
// result, and retains it as the in-memory authority. A migrated document is
// persisted before Load returns so no other operation ever observes stale
// on-disk data. A missing file seeds an empty document at the latest
// version. Load fails with ErrVersionSkew or ErrInvalid without writing
// anything when the data cannot be trusted.
func (s *Store) Load(ctx context.Context) (*Data, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("no data file, seeding empty document", zap.String("path", s.path))
		s.data = NewData()
		if err := s.Persist(ctx); err != nil {
			return nil, err
		}
		return s.data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", s.path, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", s.path, err)
	}

	version := intField(doc, "version")
	modified, err := Upgrade(doc)
	if err != nil {
		return nil, err
	}
	if modified {
		s.logger.Info("migrated data file",
			zap.Int("from_version", version),
			zap.Int("to_version", SchemaVersion()))
	}

	data, err := decodeStrict(doc)
	if err != nil {
		return nil, err
	}
	if err := Validate(data); err != nil {
		return nil, err
	}

	s.data = data
	if modified {
		if err := s.Persist(ctx); err != nil {
			return nil, err
		}
	}

	s.logger.Debug("data file loaded",
		zap.Int("accounts", len(data.Accounts)),
		zap.Int("projects", len(data.Projects)))
	return data, nil
}

// Data returns the in-memory aggregate. Nil before Load.
func (s *Store) Data() *Data {
	return s.data
}

// Persist serializes the whole aggregate and atomically replaces the backing
// file, writing to a temporary path in the same directory and renaming over
// the target so a reader never sees a partial document. A failure wraps
// ErrPersistence and leaves the in-memory aggregate as it was: mutated,
// durability unknown.
func (s *Store) Persist(ctx context.Context) error {
	if s.data == nil {
		return fmt.Errorf("%w: no data loaded", ErrPersistence)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	encoded, err := json.MarshalIndent(s.data, "", "\t")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrPersistence, err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		s.logger.Error("persist failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(encoded); err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmpName, s.path)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		s.logger.Error("persist failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.logger.Debug("aggregate persisted", zap.Int("bytes", len(encoded)))
	return nil
}

// decodeStrict converts the migrated raw document into the typed model,
// rejecting unknown fields. Strictness only applies after the full pipeline
// has run; intermediate shapes are never decoded.
func decodeStrict(doc map[string]any) (*Data, error) {
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: re-encode: %v", ErrInvalid, err)
	}

	dec := json.NewDecoder(bytes.NewReader(encoded))
	dec.DisallowUnknownFields()

	var data Data
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	normalize(&data)
	return &data, nil
}

// normalize replaces nil collections with empty ones so the engine never
// writes to a nil map.
func normalize(d *Data) {
	if d.Accounts == nil {
		d.Accounts = map[string]*Account{}
	}
	if d.AccountUsernames == nil {
		d.AccountUsernames = map[string]string{}
	}
	if d.ActiveTokens == nil {
		d.ActiveTokens = map[string]string{}
	}
	if d.Projects == nil {
		d.Projects = map[string]*Project{}
	}
	if d.PublishTokens == nil {
		d.PublishTokens = map[string]*PublishToken{}
	}
	if d.BugReports == nil {
		d.BugReports = []*BugReport{}
	}
	if d.Emails == nil {
		d.Emails = map[string]string{}
	}
	if d.EmailVerifyCodes == nil {
		d.EmailVerifyCodes = map[string]*ChangeCode{}
	}
	if d.EmailRevertCodes == nil {
		d.EmailRevertCodes = map[string]*ChangeCode{}
	}
	if d.CustomDomains == nil {
		d.CustomDomains = map[string]json.RawMessage{}
	}
	if d.CustomDomainsLookup == nil {
		d.CustomDomainsLookup = map[string]string{}
	}
	for _, account := range d.Accounts {
		if account.Projects == nil {
			account.Projects = []string{}
		}
		if account.Data.EmailRevertCodes == nil {
			account.Data.EmailRevertCodes = []string{}
		}
	}
}
