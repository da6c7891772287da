package hexazine

import (
	"context"

	"github.com/hexazine/hexazine/internal"
)

// Token returns the account's live session token, issuing a fresh one only
// when none exists. Logging in twice never invalidates the first session.
func (e *Engine) Token(ctx context.Context, accountID string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	account := e.data.Accounts[accountID]
	if account == nil {
		return "", ErrNotFound
	}
	if account.ActiveToken != "" {
		return account.ActiveToken, nil
	}

	token := internal.NewID()
	account.ActiveToken = token
	e.data.ActiveTokens[token] = accountID

	if err := e.persist(ctx); err != nil {
		return "", err
	}

	e.metricInc(MetricTokenIssued)
	return token, nil
}

// ValidateToken reports whether token belongs to a live session. The only
// failure is ErrUnauthorized, with no further detail.
func (e *Engine) ValidateToken(ctx context.Context, token string) error {
	if err := e.ready(); err != nil {
		return err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if token == "" {
		return ErrUnauthorized
	}
	if _, ok := e.data.ActiveTokens[token]; !ok {
		return ErrUnauthorized
	}
	return nil
}

// Owner resolves a live session token to its account id.
func (e *Engine) Owner(ctx context.Context, token string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if token == "" {
		return "", ErrUnauthorized
	}
	accountID, ok := e.data.ActiveTokens[token]
	if !ok {
		return "", ErrUnauthorized
	}
	return accountID, nil
}

// Logout revokes the account's live session token. An account with no live
// token succeeds as a no-op.
func (e *Engine) Logout(ctx context.Context, accountID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	account := e.data.Accounts[accountID]
	if account == nil {
		return ErrNotFound
	}
	if account.ActiveToken == "" {
		return nil
	}

	delete(e.data.ActiveTokens, account.ActiveToken)
	account.ActiveToken = ""

	if err := e.persist(ctx); err != nil {
		return err
	}

	e.metricInc(MetricTokenRevoked)
	e.emitAudit(ctx, auditEventLogout, true, accountID, nil, nil)
	return nil
}
