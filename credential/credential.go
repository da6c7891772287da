// Package credential implements the versioned password hashing scheme.
//
// A stored credential is "<tag>!<hexDigest>"; a bare hex digest with no
// separator is the legacy v1 form from before credentials were versioned.
// The registry is a closed enumeration: every tag that ever shipped must
// keep its exact construction, because changing one silently invalidates
// every credential stored under it.
package credential

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Current is the tag new and upgraded credentials are stored under. It keys
// the digest by username, which is why a username change always forces a
// re-hash.
const Current = "v3"

// ErrUnknownTag reports a stored credential whose algorithm tag is not in
// the registry.
var ErrUnknownTag = errors.New("credential: unknown algorithm tag")

// Each construction is deliberate, including the odd ones: v2 keys the HMAC
// with the password itself. They are wire format, not style.
var schemes = map[string]func(username, password string) string{
	"v1": func(_, password string) string {
		sum := sha256.Sum256([]byte(password))
		return hex.EncodeToString(sum[:])
	},
	"v2": func(_, password string) string {
		mac := hmac.New(sha256.New, []byte(password))
		mac.Write([]byte(password))
		return hex.EncodeToString(mac.Sum(nil))
	},
	"v3": func(username, password string) string {
		mac := hmac.New(sha256.New, []byte(username))
		mac.Write([]byte(password))
		return hex.EncodeToString(mac.Sum(nil))
	},
}

// Tags returns every registered algorithm tag, sorted.
func Tags() []string {
	tags := make([]string, 0, len(schemes))
	for tag := range schemes {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Hash computes the digest for password under tag.
func Hash(tag, username, password string) (string, error) {
	scheme, ok := schemes[tag]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}
	return scheme(username, password), nil
}

// Encode computes the storable credential string for password under tag.
func Encode(tag, username, password string) (string, error) {
	digest, err := Hash(tag, username, password)
	if err != nil {
		return "", err
	}
	return tag + "!" + digest, nil
}

// Parse splits a stored credential into its tag and digest. A credential
// without a separator is the legacy v1 form.
func Parse(stored string) (tag, digest string) {
	tag, digest, found := strings.Cut(stored, "!")
	if !found {
		return "v1", stored
	}
	return tag, digest
}

// Verify recomputes the stored credential's construction for password and
// compares digests. upgrade reports that the match succeeded under a
// non-current tag and the caller should re-store the credential under
// Current.
func Verify(stored, username, password string) (ok, upgrade bool, err error) {
	tag, digest := Parse(stored)

	computed, err := Hash(tag, username, password)
	if err != nil {
		return false, false, err
	}
	if subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) != 1 {
		return false, false, nil
	}
	return true, tag != Current, nil
}
