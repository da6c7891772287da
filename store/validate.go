package store

import (
	"errors"
	"fmt"
)

// ErrInvalid reports a document that failed post-migration validation. The
// caller must abort without persisting.
var ErrInvalid = errors.New("store: data failed validation")

// Validate cross-checks every index in the aggregate against its forward
// reference. It runs after the migration pipeline and after every load; a
// failure means the document cannot be trusted and nothing may be written
// back.
func Validate(d *Data) error {
	if d == nil {
		return fmt.Errorf("%w: nil document", ErrInvalid)
	}
	if d.Version != SchemaVersion() {
		return fmt.Errorf("%w: version %d, want %d", ErrInvalid, d.Version, SchemaVersion())
	}
	if len(d.StarterCodes) < 2 {
		return fmt.Errorf("%w: %d starter codes, want at least 2", ErrInvalid, len(d.StarterCodes))
	}

	for username, id := range d.AccountUsernames {
		account, ok := d.Accounts[id]
		if !ok {
			return fmt.Errorf("%w: username %q indexes missing account %q", ErrInvalid, username, id)
		}
		if account.Username != username {
			return fmt.Errorf("%w: username index %q points at account named %q", ErrInvalid, username, account.Username)
		}
	}

	for id, account := range d.Accounts {
		if account.ID != id {
			return fmt.Errorf("%w: account keyed %q carries id %q", ErrInvalid, id, account.ID)
		}
		if d.AccountUsernames[account.Username] != id {
			return fmt.Errorf("%w: account %q not indexed under username %q", ErrInvalid, id, account.Username)
		}
		if account.ActiveToken != "" && d.ActiveTokens[account.ActiveToken] != id {
			return fmt.Errorf("%w: account %q token not in active-token index", ErrInvalid, id)
		}
		for _, projectID := range account.Projects {
			project, ok := d.Projects[projectID]
			if !ok {
				return fmt.Errorf("%w: account %q owns missing project %q", ErrInvalid, id, projectID)
			}
			if project.Account != id {
				return fmt.Errorf("%w: project %q owned by %q but listed under %q", ErrInvalid, projectID, project.Account, id)
			}
		}
		if account.Data.Email != "" && d.Emails[account.Data.Email] != id {
			return fmt.Errorf("%w: account %q email %q not indexed", ErrInvalid, id, account.Data.Email)
		}
		if ref := account.Data.EmailVerifyCode; ref != "" {
			code, ok := d.EmailVerifyCodes[ref]
			if !ok {
				return fmt.Errorf("%w: account %q pending verify code %q missing", ErrInvalid, id, ref)
			}
			if code.Account != id {
				return fmt.Errorf("%w: verify code %q belongs to %q, referenced by %q", ErrInvalid, ref, code.Account, id)
			}
		}
		for _, ref := range account.Data.EmailRevertCodes {
			code, ok := d.EmailRevertCodes[ref]
			if !ok {
				return fmt.Errorf("%w: account %q revert code %q missing", ErrInvalid, id, ref)
			}
			if code.Account != id {
				return fmt.Errorf("%w: revert code %q belongs to %q, referenced by %q", ErrInvalid, ref, code.Account, id)
			}
		}
	}

	for token, id := range d.ActiveTokens {
		account, ok := d.Accounts[id]
		if !ok {
			return fmt.Errorf("%w: token indexes missing account %q", ErrInvalid, id)
		}
		if account.ActiveToken != token {
			return fmt.Errorf("%w: token index entry for %q is not the account's live token", ErrInvalid, id)
		}
	}

	for id, project := range d.Projects {
		if project.ID != id {
			return fmt.Errorf("%w: project keyed %q carries id %q", ErrInvalid, id, project.ID)
		}
		account, ok := d.Accounts[project.Account]
		if !ok {
			return fmt.Errorf("%w: project %q owned by missing account %q", ErrInvalid, id, project.Account)
		}
		if !containsString(account.Projects, id) {
			return fmt.Errorf("%w: project %q not listed by its owner %q", ErrInvalid, id, project.Account)
		}
		if project.PublishToken != "" {
			entry, ok := d.PublishTokens[project.PublishToken]
			if !ok || entry.Project != id {
				return fmt.Errorf("%w: project %q publish token not indexed", ErrInvalid, id)
			}
		}
		if int(project.Type) < 0 || int(project.Type) >= len(d.StarterCodes) {
			return fmt.Errorf("%w: project %q has type %d", ErrInvalid, id, project.Type)
		}
	}

	for token, entry := range d.PublishTokens {
		project, ok := d.Projects[entry.Project]
		if !ok {
			return fmt.Errorf("%w: publish token indexes missing project %q", ErrInvalid, entry.Project)
		}
		if project.PublishToken != token {
			return fmt.Errorf("%w: publish token for project %q is not the project's token", ErrInvalid, entry.Project)
		}
	}

	for email, id := range d.Emails {
		account, ok := d.Accounts[id]
		if !ok {
			return fmt.Errorf("%w: email %q indexes missing account %q", ErrInvalid, email, id)
		}
		if account.Data.Email != email {
			return fmt.Errorf("%w: email index %q points at account with email %q", ErrInvalid, email, account.Data.Email)
		}
	}

	for key, code := range d.EmailVerifyCodes {
		if err := validateChangeCode(d, key, code); err != nil {
			return err
		}
		account := d.Accounts[code.Account]
		if account.Data.EmailVerifyCode != key {
			return fmt.Errorf("%w: verify code %q not referenced by account %q", ErrInvalid, key, code.Account)
		}
	}

	for key, code := range d.EmailRevertCodes {
		if err := validateChangeCode(d, key, code); err != nil {
			return err
		}
		account := d.Accounts[code.Account]
		if !containsString(account.Data.EmailRevertCodes, key) {
			return fmt.Errorf("%w: revert code %q not in account %q chain", ErrInvalid, key, code.Account)
		}
	}

	return nil
}

func validateChangeCode(d *Data, key string, code *ChangeCode) error {
	if code == nil {
		return fmt.Errorf("%w: change code %q is nil", ErrInvalid, key)
	}
	if code.Code != key {
		return fmt.Errorf("%w: change code keyed %q carries code %q", ErrInvalid, key, code.Code)
	}
	if _, ok := d.Accounts[code.Account]; !ok {
		return fmt.Errorf("%w: change code %q owned by missing account %q", ErrInvalid, key, code.Account)
	}
	return nil
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
