// Package access holds the pure decision function for share-link downloads.
// It never touches storage: callers load the record, pick the clock, and act
// on the verdict. The atomic counter update lives in the record store; this
// package only decides whether an attempt should proceed at all.
package access

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"droplink/internal/server/database"
)

// Verdict is the outcome of evaluating a download attempt against a share
// link's controls.
type Verdict int

const (
	Allowed Verdict = iota
	PasswordRequired
	PasswordIncorrect
	Expired
	LimitReached
	NotFound
)

func (v Verdict) String() string {
	switch v {
	case Allowed:
		return "allowed"
	case PasswordRequired:
		return "password_required"
	case PasswordIncorrect:
		return "password_incorrect"
	case Expired:
		return "expired"
	case LimitReached:
		return "limit_reached"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Evaluate applies the access controls in fixed order: existence, expiry,
// limit, then credentials. Expiry and limit come before the password check
// so a dead link never prompts for a password.
func Evaluate(link *database.ShareLink, now time.Time, suppliedPassword string) Verdict {
	v := EvaluateInfo(link, now)
	if v != Allowed {
		return v
	}

	if link.PasswordHash != nil {
		if suppliedPassword == "" {
			return PasswordRequired
		}
		if !CheckPassword(*link.PasswordHash, suppliedPassword) {
			return PasswordIncorrect
		}
	}

	return Allowed
}

// EvaluateInfo runs only the existence, expiry and limit checks. This is the
// evaluation used for the metadata path, where viewing never requires a
// password.
func EvaluateInfo(link *database.ShareLink, now time.Time) Verdict {
	if link == nil {
		return NotFound
	}
	if link.Expired(now) {
		return Expired
	}
	if link.LimitExhausted() {
		return LimitReached
	}
	return Allowed
}

// HashPassword hashes a share password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a supplied password against a stored bcrypt hash.
// bcrypt's comparison is constant-time with respect to the hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
