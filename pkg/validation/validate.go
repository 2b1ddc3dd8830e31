package validation

import (
	"errors"
	"fmt"
	"strings"
)

// Rules holds the message input constraints applied by ValidateInput.
// They are set once at startup from the effective config.
type Rules struct {
	// MaxBodyBytes bounds the raw (untrimmed) body length. Zero means
	// the 64KB default.
	MaxBodyBytes int64
}

// DefaultMaxBodyBytes bounds message bodies when no limit is configured.
const DefaultMaxBodyBytes = 64 << 10

var rules = Rules{MaxBodyBytes: DefaultMaxBodyBytes}

// SetRules installs the input constraints used for all later validation.
func SetRules(r Rules) {
	if r.MaxBodyBytes <= 0 {
		r.MaxBodyBytes = DefaultMaxBodyBytes
	}
	rules = r
}

// ValidateInput checks a send or edit payload. Sender and receiver must
// be distinct non-empty ids, and the body must be non-blank and within
// the configured size limit.
func ValidateInput(sender, receiver, body string) error {
	var errs []string
	if strings.TrimSpace(sender) == "" {
		errs = append(errs, "sender is required")
	}
	if strings.TrimSpace(receiver) == "" {
		errs = append(errs, "receiver is required")
	}
	if sender != "" && sender == receiver {
		errs = append(errs, "sender and receiver must differ")
	}
	if strings.TrimSpace(body) == "" {
		errs = append(errs, "body must not be blank")
	}
	if int64(len(body)) > rules.MaxBodyBytes {
		errs = append(errs, fmt.Sprintf("body exceeds %d bytes", rules.MaxBodyBytes))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// ValidateBody checks an edit payload body alone.
func ValidateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return errors.New("body must not be blank")
	}
	if int64(len(body)) > rules.MaxBodyBytes {
		return fmt.Errorf("body exceeds %d bytes", rules.MaxBodyBytes)
	}
	return nil
}
