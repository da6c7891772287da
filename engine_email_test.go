package hexazine

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

// fileOmitsCode reports whether the persisted data file no longer mentions
// code.
func fileOmitsCode(t *testing.T, e *Engine, code string) bool {
	t.Helper()
	raw, err := os.ReadFile(e.config.Storage.DataPath)
	if err != nil {
		t.Fatalf("read data file: %v", err)
	}
	return !strings.Contains(string(raw), code)
}

// extractCode pulls the opaque change code out of a verify or revert link.
func extractCode(t *testing.T, link string) string {
	t.Helper()
	idx := strings.LastIndex(link, "/")
	if idx < 0 || idx == len(link)-1 {
		t.Fatalf("no code in link %q", link)
	}
	return link[idx+1:]
}

// confirmEmail drives a full verify round trip: request, pull the code out
// of the notification, confirm.
func confirmEmail(t *testing.T, e *Engine, n *recordingNotifier, accountID, email string) {
	t.Helper()
	ctx := context.Background()

	if err := e.RequestEmailVerification(ctx, accountID, email); err != nil {
		t.Fatalf("RequestEmailVerification(%s) failed: %v", email, err)
	}
	call := n.last(t)
	if call.Template != TemplateEmailVerification {
		t.Fatalf("expected %s notification, got %s", TemplateEmailVerification, call.Template)
	}
	code := extractCode(t, call.Vars["verify_link"])
	if err := e.ConfirmEmailVerification(ctx, code); err != nil {
		t.Fatalf("ConfirmEmailVerification(%s) failed: %v", email, err)
	}
}

// changeEmail performs a verified change and returns the revert code sent
// to the old address.
func changeEmail(t *testing.T, e *Engine, n *recordingNotifier, accountID, email string) string {
	t.Helper()

	confirmEmail(t, e, n, accountID, email)
	call := n.last(t)
	if call.Template != TemplateEmailChanged {
		t.Fatalf("expected %s notification, got %s", TemplateEmailChanged, call.Template)
	}
	return extractCode(t, call.Vars["revert_link"])
}

// backdateVerifyCode shifts a pending verify code's creation time.
func backdateVerifyCode(t *testing.T, e *Engine, code string, age time.Duration) {
	t.Helper()
	cc := e.data.EmailVerifyCodes[code]
	if cc == nil {
		t.Fatalf("verify code %q not stored", code)
	}
	cc.Time = time.Now().Add(-age).UnixMilli()
}

func backdateRevertCode(t *testing.T, e *Engine, code string, age time.Duration) {
	t.Helper()
	cc := e.data.EmailRevertCodes[code]
	if cc == nil {
		t.Fatalf("revert code %q not stored", code)
	}
	cc.Time = time.Now().Add(-age).UnixMilli()
}

func TestFirstEmailAdd(t *testing.T) {
	engine, notifier := newTestEngine(t)
	ctx := context.Background()

	id := mustCreateAccount(t, engine, "alice", "hunter22")

	status, err := engine.EmailStatus(ctx, id)
	if err != nil {
		t.Fatalf("EmailStatus failed: %v", err)
	}
	if status.VerifyStatus != EmailUnset {
		t.Fatalf("expected unset, got %s", status.VerifyStatus)
	}

	if err := engine.RequestEmailVerification(ctx, id, "a@example.com"); err != nil {
		t.Fatalf("RequestEmailVerification failed: %v", err)
	}
	status, err = engine.EmailStatus(ctx, id)
	if err != nil {
		t.Fatalf("EmailStatus failed: %v", err)
	}
	if status.VerifyStatus != EmailUnverified || status.PendingEmail != "a@example.com" {
		t.Fatalf("expected unverified pending a@example.com, got %+v", status)
	}

	code := extractCode(t, notifier.last(t).Vars["verify_link"])
	if err := engine.ConfirmEmailVerification(ctx, code); err != nil {
		t.Fatalf("ConfirmEmailVerification failed: %v", err)
	}

	// A first add notifies the new address and creates no revert code.
	if call := notifier.last(t); call.Template != TemplateEmailAdded || call.Email != "a@example.com" {
		t.Fatalf("expected email_added to a@example.com, got %+v", call)
	}
	if len(engine.data.Accounts[id].Data.EmailRevertCodes) != 0 {
		t.Fatal("expected empty revert chain after first add")
	}

	status, err = engine.EmailStatus(ctx, id)
	if err != nil {
		t.Fatalf("EmailStatus failed: %v", err)
	}
	if status.VerifyStatus != EmailVerified || status.CurrentEmail != "a@example.com" || status.PendingEmail != "" {
		t.Fatalf("expected verified a@example.com, got %+v", status)
	}
	if engine.data.Emails["a@example.com"] != id {
		t.Fatal("email not indexed to account")
	}
}

func TestEmailChangeCreatesRevertCode(t *testing.T) {
	engine, notifier := newTestEngine(t)

	id := mustCreateAccount(t, engine, "alice", "hunter22")
	confirmEmail(t, engine, notifier, id, "old@example.com")
	revert := changeEmail(t, engine, notifier, id, "new@example.com")

	// The old address gets the revert link.
	call := notifier.last(t)
	if call.Email != "old@example.com" {
		t.Fatalf("expected notification to old address, got %s", call.Email)
	}
	if call.Vars["old_email"] != "old@example.com" {
		t.Fatalf("expected old_email var, got %+v", call.Vars)
	}

	cc := engine.data.EmailRevertCodes[revert]
	if cc == nil {
		t.Fatal("revert code not stored")
	}
	if cc.Account != id || cc.Email != "old@example.com" {
		t.Fatalf("revert code records wrong state: %+v", cc)
	}
	chain := engine.data.Accounts[id].Data.EmailRevertCodes
	if len(chain) != 1 || chain[0] != revert {
		t.Fatalf("expected chain [%s], got %v", revert, chain)
	}
	if _, ok := engine.data.Emails["old@example.com"]; ok {
		t.Fatal("old email still indexed")
	}
	if engine.data.Emails["new@example.com"] != id {
		t.Fatal("new email not indexed")
	}
}

func TestRequestSameEmailRejected(t *testing.T) {
	engine, notifier := newTestEngine(t)
	ctx := context.Background()

	id := mustCreateAccount(t, engine, "alice", "hunter22")
	confirmEmail(t, engine, notifier, id, "a@example.com")

	if err := engine.RequestEmailVerification(ctx, id, "a@example.com"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestRequestConflictZeroMutation(t *testing.T) {
	engine, notifier := newTestEngine(t)
	ctx := context.Background()

	alice := mustCreateAccount(t, engine, "alice", "hunter22")
	bob := mustCreateAccount(t, engine, "bob", "hunter22")
	confirmEmail(t, engine, notifier, alice, "taken@example.com")

	before := serialized(t, engine)
	if err := engine.RequestEmailVerification(ctx, bob, "taken@example.com"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if after := serialized(t, engine); after != before {
		t.Fatal("aggregate mutated by rejected request")
	}
}

func TestRequestNotifyFailureAborts(t *testing.T) {
	engine, notifier := newTestEngine(t)
	ctx := context.Background()

	id := mustCreateAccount(t, engine, "alice", "hunter22")

	before := serialized(t, engine)
	notifier.setFail(true)
	if err := engine.RequestEmailVerification(ctx, id, "a@example.com"); !errors.Is(err, ErrNotifyFailed) {
		t.Fatalf("expected ErrNotifyFailed, got %v", err)
	}
	if after := serialized(t, engine); after != before {
		t.Fatal("aggregate mutated by failed notification")
	}
}

func TestSecondRequestOverwritesPending(t *testing.T) {
	engine, notifier := newTestEngine(t)
	ctx := context.Background()

	id := mustCreateAccount(t, engine, "alice", "hunter22")

	if err := engine.RequestEmailVerification(ctx, id, "first@example.com"); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	first := extractCode(t, notifier.last(t).Vars["verify_link"])
	if err := engine.RequestEmailVerification(ctx, id, "second@example.com"); err != nil {
		t.Fatalf("second request failed: %v", err)
	}
	second := extractCode(t, notifier.last(t).Vars["verify_link"])

	if _, ok := engine.data.EmailVerifyCodes[first]; ok {
		t.Fatal("superseded verify code still stored")
	}
	if err := engine.ConfirmEmailVerification(ctx, first); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for superseded code, got %v", err)
	}
	if err := engine.ConfirmEmailVerification(ctx, second); err != nil {
		t.Fatalf("ConfirmEmailVerification failed: %v", err)
	}
	if engine.data.Accounts[id].Data.Email != "second@example.com" {
		t.Fatal("second email not applied")
	}
}

func TestConfirmExpiredCodePurges(t *testing.T) {
	engine, notifier := newTestEngine(t)
	ctx := context.Background()

	id := mustCreateAccount(t, engine, "alice", "hunter22")
	if err := engine.RequestEmailVerification(ctx, id, "a@example.com"); err != nil {
		t.Fatalf("RequestEmailVerification failed: %v", err)
	}
	code := extractCode(t, notifier.last(t).Vars["verify_link"])
	backdateVerifyCode(t, engine, code, 25*time.Hour)

	if err := engine.ConfirmEmailVerification(ctx, code); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if _, ok := engine.data.EmailVerifyCodes[code]; ok {
		t.Fatal("expired code still stored")
	}
	if err := engine.ConfirmEmailVerification(ctx, code); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after purge, got %v", err)
	}

	status, err := engine.EmailStatus(ctx, id)
	if err != nil {
		t.Fatalf("EmailStatus failed: %v", err)
	}
	if status.VerifyStatus != EmailUnset {
		t.Fatalf("expected unset after expiry, got %s", status.VerifyStatus)
	}
}

func TestEmailStatusPurgesExpiredPending(t *testing.T) {
	engine, notifier := newTestEngine(t)
	ctx := context.Background()

	id := mustCreateAccount(t, engine, "alice", "hunter22")
	if err := engine.RequestEmailVerification(ctx, id, "a@example.com"); err != nil {
		t.Fatalf("RequestEmailVerification failed: %v", err)
	}
	code := extractCode(t, notifier.last(t).Vars["verify_link"])
	backdateVerifyCode(t, engine, code, 25*time.Hour)

	status, err := engine.EmailStatus(ctx, id)
	if err != nil {
		t.Fatalf("EmailStatus failed: %v", err)
	}
	if status.VerifyStatus != EmailUnset || status.PendingEmail != "" {
		t.Fatalf("expected unset after lazy purge, got %+v", status)
	}
	if len(engine.data.EmailVerifyCodes) != 0 {
		t.Fatal("expired code still stored")
	}

	// The purge is durable, not just in memory.
	if !fileOmitsCode(t, engine, code) {
		t.Fatal("expired code still present in data file")
	}
}

func TestEmailStatusPendingChange(t *testing.T) {
	engine, notifier := newTestEngine(t)
	ctx := context.Background()

	id := mustCreateAccount(t, engine, "alice", "hunter22")
	confirmEmail(t, engine, notifier, id, "a@example.com")
	if err := engine.RequestEmailVerification(ctx, id, "b@example.com"); err != nil {
		t.Fatalf("RequestEmailVerification failed: %v", err)
	}

	status, err := engine.EmailStatus(ctx, id)
	if err != nil {
		t.Fatalf("EmailStatus failed: %v", err)
	}
	if status.VerifyStatus != EmailPendingChange ||
		status.CurrentEmail != "a@example.com" ||
		status.PendingEmail != "b@example.com" {
		t.Fatalf("expected pending_change a→b, got %+v", status)
	}
}

func TestRevokeEmailVerification(t *testing.T) {
	engine, notifier := newTestEngine(t)
	ctx := context.Background()

	id := mustCreateAccount(t, engine, "alice", "hunter22")

	// Nothing pending: succeeds as a no-op.
	if err := engine.RevokeEmailVerification(ctx, id); err != nil {
		t.Fatalf("RevokeEmailVerification no-op failed: %v", err)
	}

	if err := engine.RequestEmailVerification(ctx, id, "a@example.com"); err != nil {
		t.Fatalf("RequestEmailVerification failed: %v", err)
	}
	code := extractCode(t, notifier.last(t).Vars["verify_link"])
	if err := engine.RevokeEmailVerification(ctx, id); err != nil {
		t.Fatalf("RevokeEmailVerification failed: %v", err)
	}
	if _, ok := engine.data.EmailVerifyCodes[code]; ok {
		t.Fatal("revoked code still stored")
	}
	if err := engine.ConfirmEmailVerification(ctx, code); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for revoked code, got %v", err)
	}
}

// Three changes produce revert codes r1,r2,r3 recording e1,e2,e3. Using r2
// replays r1 (through e1), applies r2 (back to e2), and discards r3; the
// chain is empty afterwards and the other codes are dead.
func TestRevertMiddleOfChain(t *testing.T) {
	engine, notifier := newTestEngine(t)
	ctx := context.Background()

	id := mustCreateAccount(t, engine, "alice", "hunter22")
	confirmEmail(t, engine, notifier, id, "e1@example.com")
	r1 := changeEmail(t, engine, notifier, id, "e2@example.com")
	r2 := changeEmail(t, engine, notifier, id, "e3@example.com")
	r3 := changeEmail(t, engine, notifier, id, "e4@example.com")

	if err := engine.RevertEmailChange(ctx, r2); err != nil {
		t.Fatalf("RevertEmailChange failed: %v", err)
	}

	account := engine.data.Accounts[id]
	if account.Data.Email != "e2@example.com" {
		t.Fatalf("expected e2@example.com, got %s", account.Data.Email)
	}
	if len(account.Data.EmailRevertCodes) != 0 {
		t.Fatalf("expected empty chain, got %v", account.Data.EmailRevertCodes)
	}
	if len(engine.data.EmailRevertCodes) != 0 {
		t.Fatal("expected no revert codes left")
	}
	if engine.data.Emails["e2@example.com"] != id {
		t.Fatal("reverted email not indexed")
	}
	if len(engine.data.Emails) != 1 {
		t.Fatalf("stale email index entries: %v", engine.data.Emails)
	}

	if err := engine.RevertEmailChange(ctx, r1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for consumed r1, got %v", err)
	}
	if err := engine.RevertEmailChange(ctx, r3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for superseded r3, got %v", err)
	}

	if call := notifier.last(t); call.Template != TemplateEmailReverted || call.Email != "e2@example.com" {
		t.Fatalf("expected email_reverted to e2@example.com, got %+v", call)
	}
}

func TestRevertExpiredDropsPrefix(t *testing.T) {
	engine, notifier := newTestEngine(t)
	ctx := context.Background()

	id := mustCreateAccount(t, engine, "alice", "hunter22")
	confirmEmail(t, engine, notifier, id, "e1@example.com")
	r1 := changeEmail(t, engine, notifier, id, "e2@example.com")
	r2 := changeEmail(t, engine, notifier, id, "e3@example.com")
	r3 := changeEmail(t, engine, notifier, id, "e4@example.com")

	backdateRevertCode(t, engine, r2, 25*time.Hour)

	if err := engine.RevertEmailChange(ctx, r2); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	// The stale span [r1,r2] is gone; r3 survives and still works.
	account := engine.data.Accounts[id]
	if len(account.Data.EmailRevertCodes) != 1 || account.Data.EmailRevertCodes[0] != r3 {
		t.Fatalf("expected chain [%s], got %v", r3, account.Data.EmailRevertCodes)
	}
	if _, ok := engine.data.EmailRevertCodes[r1]; ok {
		t.Fatal("r1 still stored")
	}
	if _, ok := engine.data.EmailRevertCodes[r2]; ok {
		t.Fatal("r2 still stored")
	}
	if account.Data.Email != "e4@example.com" {
		t.Fatalf("expired revert must not change the email, got %s", account.Data.Email)
	}

	if err := engine.RevertEmailChange(ctx, r3); err != nil {
		t.Fatalf("RevertEmailChange(r3) failed: %v", err)
	}
	if account.Data.Email != "e3@example.com" {
		t.Fatalf("expected e3@example.com after r3, got %s", account.Data.Email)
	}
}

func TestRevertConflictZeroMutation(t *testing.T) {
	engine, notifier := newTestEngine(t)
	ctx := context.Background()

	alice := mustCreateAccount(t, engine, "alice", "hunter22")
	confirmEmail(t, engine, notifier, alice, "old@example.com")
	r1 := changeEmail(t, engine, notifier, alice, "new@example.com")

	// Someone else claims the address r1 would revert to.
	bob := mustCreateAccount(t, engine, "bob", "hunter22")
	confirmEmail(t, engine, notifier, bob, "old@example.com")

	before := serialized(t, engine)
	calls := notifier.count()
	if err := engine.RevertEmailChange(ctx, r1); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if after := serialized(t, engine); after != before {
		t.Fatal("aggregate mutated by conflicting revert")
	}
	if notifier.count() != calls {
		t.Fatal("notification sent for conflicting revert")
	}
}

func TestRevertNotifyFailureAborts(t *testing.T) {
	engine, notifier := newTestEngine(t)
	ctx := context.Background()

	id := mustCreateAccount(t, engine, "alice", "hunter22")
	confirmEmail(t, engine, notifier, id, "old@example.com")
	r1 := changeEmail(t, engine, notifier, id, "new@example.com")

	before := serialized(t, engine)
	notifier.setFail(true)
	if err := engine.RevertEmailChange(ctx, r1); !errors.Is(err, ErrNotifyFailed) {
		t.Fatalf("expected ErrNotifyFailed, got %v", err)
	}
	if after := serialized(t, engine); after != before {
		t.Fatal("aggregate mutated by failed revert notification")
	}

	// The code survived the aborted attempt.
	notifier.setFail(false)
	if err := engine.RevertEmailChange(ctx, r1); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if engine.data.Accounts[id].Data.Email != "old@example.com" {
		t.Fatal("revert not applied on retry")
	}
}
