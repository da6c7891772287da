package hexazine

import (
	"context"
	"regexp"
	"sort"

	"go.uber.org/zap"

	"github.com/hexazine/hexazine/credential"
	"github.com/hexazine/hexazine/internal"
	"github.com/hexazine/hexazine/store"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{2,32}$`)

// CreateAccount creates a regular account and returns its id. It fails with
// ErrAccountCreationDisabled when signup is switched off, ErrUsernameInvalid
// when the username fails the format check, and ErrConflict when the
// username is taken.
func (e *Engine) CreateAccount(ctx context.Context, username, password string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if !e.config.Account.CreationEnabled {
		return "", ErrAccountCreationDisabled
	}
	return e.createAccount(ctx, username, password, false)
}

// CreateAdminAccount creates an administrator account and returns its id.
// It is not gated by the signup switch; offline tooling uses it to seed the
// first admin.
func (e *Engine) CreateAdminAccount(ctx context.Context, username, password string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	return e.createAccount(ctx, username, password, true)
}

func (e *Engine) createAccount(ctx context.Context, username, password string, admin bool) (string, error) {
	if !usernamePattern.MatchString(username) {
		return "", ErrUsernameInvalid
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, taken := e.data.AccountUsernames[username]; taken {
		return "", ErrConflict
	}

	stored, err := credential.Encode(credential.Current, username, password)
	if err != nil {
		return "", err
	}

	id := internal.NewID()
	e.data.Accounts[id] = &store.Account{
		ID:       id,
		Username: username,
		Password: stored,
		Projects: []string{},
		Settings: store.DefaultSettings(),
		IsAdmin:  admin,
		Data: store.AccountData{
			EmailRevertCodes: []string{},
		},
	}
	e.data.AccountUsernames[username] = id

	if err := e.persist(ctx); err != nil {
		return "", err
	}

	e.metricInc(MetricAccountCreated)
	e.emitAudit(ctx, auditEventAccountCreated, true, id, nil, func() map[string]string {
		return map[string]string{"username": username, "admin": boolString(admin)}
	})
	e.logger.Info("account created",
		zap.String("account_id", id),
		zap.Bool("admin", admin))
	return id, nil
}

// Authenticate verifies username/password and returns the account's session
// token, issuing a fresh one only when no live token exists. A credential
// stored under a stale algorithm tag is transparently re-hashed under the
// current one on success. Failures are uniformly ErrUnauthorized.
func (e *Engine) Authenticate(ctx context.Context, username, password string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id, ok := e.data.AccountUsernames[username]
	account := e.data.Accounts[id]
	if !ok || account == nil {
		e.loginFailed(ctx, username)
		return "", ErrUnauthorized
	}

	match, upgrade, err := credential.Verify(account.Password, account.Username, password)
	if err != nil || !match {
		e.loginFailed(ctx, username)
		return "", ErrUnauthorized
	}

	dirty := false
	if upgrade {
		stored, err := credential.Encode(credential.Current, account.Username, password)
		if err != nil {
			return "", err
		}
		account.Password = stored
		dirty = true
		e.metricInc(MetricCredentialUpgraded)
		e.emitAudit(ctx, auditEventCredentialUpgraded, true, account.ID, nil, nil)
		e.logger.Info("credential upgraded", zap.String("account_id", account.ID))
	}

	token := account.ActiveToken
	if token == "" {
		token = internal.NewID()
		account.ActiveToken = token
		e.data.ActiveTokens[token] = account.ID
		dirty = true
		e.metricInc(MetricTokenIssued)
	}

	if dirty {
		if err := e.persist(ctx); err != nil {
			return "", err
		}
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, account.ID, nil, nil)
	return token, nil
}

func (e *Engine) loginFailed(ctx context.Context, username string) {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrUnauthorized, func() map[string]string {
		return map[string]string{"username": username}
	})
}

// DeleteAccount removes an account and everything reachable from it: the
// live token mapping, every owned project and its publish-token entry, the
// email index entry, the pending verify code, the whole revert chain, and
// the username index entry. Nothing in the aggregate references the account
// afterwards.
func (e *Engine) DeleteAccount(ctx context.Context, accountID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	account := e.data.Accounts[accountID]
	if account == nil {
		return ErrNotFound
	}

	if account.ActiveToken != "" {
		delete(e.data.ActiveTokens, account.ActiveToken)
	}
	for _, projectID := range account.Projects {
		if project := e.data.Projects[projectID]; project != nil {
			if project.PublishToken != "" {
				delete(e.data.PublishTokens, project.PublishToken)
			}
			delete(e.data.Projects, projectID)
		}
	}
	if account.Data.Email != "" {
		delete(e.data.Emails, account.Data.Email)
	}
	if account.Data.EmailVerifyCode != "" {
		delete(e.data.EmailVerifyCodes, account.Data.EmailVerifyCode)
	}
	for _, code := range account.Data.EmailRevertCodes {
		delete(e.data.EmailRevertCodes, code)
	}
	delete(e.data.AccountUsernames, account.Username)
	delete(e.data.Accounts, accountID)

	if err := e.persist(ctx); err != nil {
		return err
	}

	e.metricInc(MetricAccountDeleted)
	e.emitAudit(ctx, auditEventAccountDeleted, true, accountID, nil, func() map[string]string {
		return map[string]string{"username": account.Username}
	})
	e.logger.Info("account deleted", zap.String("account_id", accountID))
	return nil
}

// ChangeUsername re-keys an account under a new username. The credential is
// always re-stored under the current algorithm tag afterwards: the current
// construction keys the digest by username, so the old stored digest can
// never verify again.
func (e *Engine) ChangeUsername(ctx context.Context, accountID, newUsername, password string) error {
	if err := e.ready(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	account := e.data.Accounts[accountID]
	if account == nil {
		return ErrNotFound
	}

	match, _, err := credential.Verify(account.Password, account.Username, password)
	if err != nil || !match {
		return ErrUnauthorized
	}

	if !usernamePattern.MatchString(newUsername) {
		return ErrUsernameInvalid
	}
	if ownerID, taken := e.data.AccountUsernames[newUsername]; taken && ownerID != accountID {
		return ErrConflict
	}

	stored, err := credential.Encode(credential.Current, newUsername, password)
	if err != nil {
		return err
	}

	oldUsername := account.Username
	delete(e.data.AccountUsernames, oldUsername)
	e.data.AccountUsernames[newUsername] = accountID
	account.Username = newUsername
	account.Password = stored

	if err := e.persist(ctx); err != nil {
		return err
	}

	e.metricInc(MetricUsernameChanged)
	e.emitAudit(ctx, auditEventUsernameChanged, true, accountID, nil, func() map[string]string {
		return map[string]string{"old_username": oldUsername, "new_username": newUsername}
	})
	return nil
}

// ChangePassword verifies the old password and stores the new one under the
// current algorithm tag.
func (e *Engine) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	account := e.data.Accounts[accountID]
	if account == nil {
		return ErrNotFound
	}

	match, _, err := credential.Verify(account.Password, account.Username, oldPassword)
	if err != nil || !match {
		return ErrUnauthorized
	}

	stored, err := credential.Encode(credential.Current, account.Username, newPassword)
	if err != nil {
		return err
	}
	account.Password = stored

	if err := e.persist(ctx); err != nil {
		return err
	}

	e.metricInc(MetricPasswordChanged)
	e.emitAudit(ctx, auditEventPasswordChanged, true, accountID, nil, nil)
	return nil
}

// IsAdmin reports whether the account has the administrator flag.
func (e *Engine) IsAdmin(ctx context.Context, accountID string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	account := e.data.Accounts[accountID]
	if account == nil {
		return false, ErrNotFound
	}
	return account.IsAdmin, nil
}

// Username returns the account's current username.
func (e *Engine) Username(ctx context.Context, accountID string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	account := e.data.Accounts[accountID]
	if account == nil {
		return "", ErrNotFound
	}
	return account.Username, nil
}

// Accounts returns a minimal listing of every account, sorted by username.
func (e *Engine) Accounts(ctx context.Context) ([]AccountInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	infos := make([]AccountInfo, 0, len(e.data.Accounts))
	for _, account := range e.data.Accounts {
		infos = append(infos, AccountInfo{
			ID:       account.ID,
			Username: account.Username,
			IsAdmin:  account.IsAdmin,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Username < infos[j].Username
	})
	return infos, nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
