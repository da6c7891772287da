package hexazine

import "errors"

var (
	// ErrUnauthorized is returned for bad credentials and for invalid or
	// absent session tokens. It never distinguishes a wrong password from an
	// unknown account.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned when an account, project, token, or change
	// code does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned for a duplicate username or email. The
	// aggregate is not mutated.
	ErrConflict = errors.New("conflict")
	// ErrExpired is returned for an email change code past its validity
	// window. The offending code (and, for revert codes, its stale prefix)
	// has been purged as a side effect.
	ErrExpired = errors.New("change code expired")
	// ErrUsernameInvalid is returned for a username that fails the format
	// check.
	ErrUsernameInvalid = errors.New("invalid username")
	// ErrAccountCreationDisabled is returned by CreateAccount when signup is
	// switched off in configuration.
	ErrAccountCreationDisabled = errors.New("account creation disabled")
	// ErrNotifyFailed is returned when the outbound notifier rejects a
	// message; the requesting operation aborts with no mutation.
	ErrNotifyFailed = errors.New("notification failed")
	// ErrProjectPosition is returned by MoveProject for a target position
	// outside the account's project list.
	ErrProjectPosition = errors.New("invalid project position")
	// ErrProjectType is returned for a project type with no starter code.
	ErrProjectType = errors.New("unknown project type")
	// ErrAlreadyPublished is returned by Publish for a project that already
	// has a live publish token.
	ErrAlreadyPublished = errors.New("project already published")
	// ErrNotPublished is returned by Unpublish for a project with no live
	// publish token.
	ErrNotPublished = errors.New("project not published")
	// ErrEngineNotReady is returned when a method is called on an engine
	// that was not built through Builder.Build.
	ErrEngineNotReady = errors.New("engine not initialized")
)
