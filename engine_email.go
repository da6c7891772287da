package hexazine

import (
	"context"

	"go.uber.org/zap"

	"github.com/hexazine/hexazine/internal"
	"github.com/hexazine/hexazine/store"
)

// RequestEmailVerification starts an email change to email. The target
// address is notified with a verify link before anything is stored; a
// rejected notification aborts with zero mutation. A second request
// replaces the prior pending code. An email already bound to another
// account, or equal to the account's current one, fails with ErrConflict.
func (e *Engine) RequestEmailVerification(ctx context.Context, accountID, email string) error {
	if err := e.ready(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	account := e.data.Accounts[accountID]
	if account == nil {
		return ErrNotFound
	}
	if email == account.Data.Email {
		return ErrConflict
	}
	if ownerID, taken := e.data.Emails[email]; taken && ownerID != accountID {
		return ErrConflict
	}

	code := internal.NewID()
	if err := e.notify(ctx, email, TemplateEmailVerification, map[string]string{
		"verify_link": e.config.Notify.APIBase + "verifyEmail/" + code,
	}); err != nil {
		return err
	}

	if prior := account.Data.EmailVerifyCode; prior != "" {
		delete(e.data.EmailVerifyCodes, prior)
	}
	e.data.EmailVerifyCodes[code] = &store.ChangeCode{
		Account: accountID,
		Email:   email,
		Time:    nowMillis(),
		Code:    code,
	}
	account.Data.EmailVerifyCode = code

	if err := e.persist(ctx); err != nil {
		return err
	}

	e.metricInc(MetricEmailVerifyRequested)
	e.emitAudit(ctx, auditEventEmailVerifyRequest, true, accountID, nil, func() map[string]string {
		return map[string]string{"email": email}
	})
	return nil
}

// ConfirmEmailVerification applies the pending email change identified by
// code. An expired code is purged as a side effect and the call fails with
// ErrExpired. On a change away from an existing address the old address is
// notified with a revert link and a revert code is appended to the tail of
// the account's revert chain.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, code string) error {
	if err := e.ready(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cc := e.data.EmailVerifyCodes[code]
	if cc == nil {
		return ErrNotFound
	}
	account := e.data.Accounts[cc.Account]
	if account == nil {
		return ErrNotFound
	}

	if !e.changeCodeValid(cc) {
		e.purgeVerifyCode(account, cc)
		if err := e.persist(ctx); err != nil {
			return err
		}
		e.expiredCode(ctx, cc)
		return ErrExpired
	}

	if ownerID, taken := e.data.Emails[cc.Email]; taken && ownerID != cc.Account {
		return ErrConflict
	}

	oldEmail := account.Data.Email
	revertCode := ""
	if oldEmail == "" {
		if err := e.notify(ctx, cc.Email, TemplateEmailAdded, nil); err != nil {
			return err
		}
	} else {
		revertCode = internal.NewID()
		if err := e.notify(ctx, oldEmail, TemplateEmailChanged, map[string]string{
			"old_email":   oldEmail,
			"revert_link": e.config.Notify.APIBase + "api/revertEmail/" + revertCode,
		}); err != nil {
			return err
		}
	}

	if revertCode != "" {
		e.data.EmailRevertCodes[revertCode] = &store.ChangeCode{
			Account: cc.Account,
			Email:   oldEmail,
			Time:    nowMillis(),
			Code:    revertCode,
		}
		account.Data.EmailRevertCodes = append(account.Data.EmailRevertCodes, revertCode)
	}
	e.applyEmail(account, cc.Email)
	e.purgeVerifyCode(account, cc)

	if err := e.persist(ctx); err != nil {
		return err
	}

	e.metricInc(MetricEmailChanged)
	e.emitAudit(ctx, auditEventEmailChanged, true, cc.Account, nil, func() map[string]string {
		return map[string]string{"old_email": oldEmail, "new_email": cc.Email}
	})
	e.logger.Info("email changed",
		zap.String("account_id", cc.Account),
		zap.Bool("added", oldEmail == ""))
	return nil
}

// RevertEmailChange rolls the account's email back to the state recorded by
// code, at position k of the oldest-first revert chain.
//
// An expired code invalidates the whole prefix [0..k]: that span of history
// can no longer be selectively undone. A valid code splits the chain
// asymmetrically: positions [0..k-1] are consumed by replay, oldest first,
// so the email passes through its true historical states; position k is
// applied; positions [k..end] are discarded as superseded. The chain is
// empty afterwards.
func (e *Engine) RevertEmailChange(ctx context.Context, code string) error {
	if err := e.ready(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cc := e.data.EmailRevertCodes[code]
	if cc == nil {
		return ErrNotFound
	}
	account := e.data.Accounts[cc.Account]
	if account == nil {
		return ErrNotFound
	}

	chain := account.Data.EmailRevertCodes
	k := -1
	for i, entry := range chain {
		if entry == code {
			k = i
			break
		}
	}
	if k < 0 {
		return ErrNotFound
	}

	if !e.changeCodeValid(cc) {
		for i := 0; i <= k; i++ {
			delete(e.data.EmailRevertCodes, chain[i])
		}
		account.Data.EmailRevertCodes = append([]string{}, chain[k+1:]...)
		if err := e.persist(ctx); err != nil {
			return err
		}
		e.expiredCode(ctx, cc)
		return ErrExpired
	}

	// Every email the replay will pass through must be free. Checking up
	// front keeps a conflict from leaving the chain half-consumed.
	for i := 0; i <= k; i++ {
		entry := e.data.EmailRevertCodes[chain[i]]
		if entry == nil {
			return ErrNotFound
		}
		if ownerID, taken := e.data.Emails[entry.Email]; taken && ownerID != cc.Account {
			return ErrConflict
		}
	}

	oldEmail := account.Data.Email
	if err := e.notify(ctx, cc.Email, TemplateEmailReverted, map[string]string{
		"old_email": oldEmail,
	}); err != nil {
		return err
	}

	for i := 0; i < k; i++ {
		entry := e.data.EmailRevertCodes[chain[i]]
		e.applyEmail(account, entry.Email)
		delete(e.data.EmailRevertCodes, chain[i])
	}
	e.applyEmail(account, cc.Email)
	for i := k; i < len(chain); i++ {
		delete(e.data.EmailRevertCodes, chain[i])
	}
	account.Data.EmailRevertCodes = []string{}

	if err := e.persist(ctx); err != nil {
		return err
	}

	e.metricInc(MetricEmailReverted)
	e.emitAudit(ctx, auditEventEmailReverted, true, cc.Account, nil, func() map[string]string {
		return map[string]string{"old_email": oldEmail, "new_email": cc.Email}
	})
	e.logger.Info("email reverted",
		zap.String("account_id", cc.Account),
		zap.Int("chain_position", k))
	return nil
}

// EmailStatus reports the account's email state. Reading a pending verify
// code past its validity window purges it as a side effect, so the status
// never reports an unusable pending change.
func (e *Engine) EmailStatus(ctx context.Context, accountID string) (EmailStatus, error) {
	if err := e.ready(); err != nil {
		return EmailStatus{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	account := e.data.Accounts[accountID]
	if account == nil {
		return EmailStatus{}, ErrNotFound
	}

	status := EmailStatus{CurrentEmail: account.Data.Email}

	if pending := account.Data.EmailVerifyCode; pending != "" {
		cc := e.data.EmailVerifyCodes[pending]
		switch {
		case cc == nil:
			account.Data.EmailVerifyCode = ""
		case e.changeCodeValid(cc):
			status.PendingEmail = cc.Email
		default:
			e.purgeVerifyCode(account, cc)
			if err := e.persist(ctx); err != nil {
				return EmailStatus{}, err
			}
			e.expiredCode(ctx, cc)
		}
	}

	switch {
	case account.Data.Email == "" && account.Data.EmailVerifyCode == "":
		status.VerifyStatus = EmailUnset
	case account.Data.Email == "":
		status.VerifyStatus = EmailUnverified
	case account.Data.EmailVerifyCode == "":
		status.VerifyStatus = EmailVerified
	default:
		status.VerifyStatus = EmailPendingChange
	}
	return status, nil
}

// RevokeEmailVerification cancels any in-flight email change for the
// account. Idempotent: an account with nothing pending succeeds unchanged.
func (e *Engine) RevokeEmailVerification(ctx context.Context, accountID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	account := e.data.Accounts[accountID]
	if account == nil {
		return ErrNotFound
	}
	pending := account.Data.EmailVerifyCode
	if pending == "" {
		return nil
	}

	delete(e.data.EmailVerifyCodes, pending)
	account.Data.EmailVerifyCode = ""

	if err := e.persist(ctx); err != nil {
		return err
	}

	e.emitAudit(ctx, auditEventEmailVerifyRevoked, true, accountID, nil, nil)
	return nil
}

// applyEmail re-keys the email index from the account's current address to
// email and sets it on the account.
func (e *Engine) applyEmail(account *store.Account, email string) {
	if account.Data.Email != "" {
		delete(e.data.Emails, account.Data.Email)
	}
	account.Data.Email = email
	if email != "" {
		e.data.Emails[email] = account.ID
	}
}

// purgeVerifyCode removes a verify code from the map and the account's
// pending reference. The caller persists.
func (e *Engine) purgeVerifyCode(account *store.Account, cc *store.ChangeCode) {
	delete(e.data.EmailVerifyCodes, cc.Code)
	if account.Data.EmailVerifyCode == cc.Code {
		account.Data.EmailVerifyCode = ""
	}
}

func (e *Engine) expiredCode(ctx context.Context, cc *store.ChangeCode) {
	e.metricInc(MetricEmailCodeExpired)
	e.emitAudit(ctx, auditEventEmailCodeExpired, false, cc.Account, ErrExpired, func() map[string]string {
		return map[string]string{"code": cc.Code}
	})
}
