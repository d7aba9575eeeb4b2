// Package redaction scrubs secrets from text that leaves the process:
// detailed error messages, unit stderr and unit log messages.
package redaction

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/viper"
	"github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
)

// Placeholder replaces every secret when hash mode is off.
const Placeholder = "[REDACTED]"

// Redactor handles sanitization of sensitive data.
// All fields are read-only after construction, making it safe for concurrent use.
type Redactor struct {
	patterns []*regexp.Regexp
	keys     map[string]struct{}
	hashMode bool
	salt     string

	// nil when disabled or when the default gitleaks config failed to load
	gitleaksDetector *detect.Detector
}

// Config holds the configuration for the Redactor.
type Config struct {
	// Custom patterns to redact (e.g. "INT-[A-Z0-9]{16}")
	Patterns []string
	// Context keys whose values are always redacted (e.g. "password")
	Keys []string
	// If true, replace with a keyed hash instead of [REDACTED]
	HashMode bool
	// HMAC key for hash mode. If empty, hashes are deterministic but unsalted.
	Salt string
	// If true, use only the built-in and custom patterns
	DisableGitleaks bool
}

// New creates a new Redactor with the given configuration.
func New(cfg Config) (*Redactor, error) {
	r := &Redactor{
		keys:     make(map[string]struct{}, len(cfg.Keys)),
		hashMode: cfg.HashMode,
		salt:     cfg.Salt,
		patterns: make([]*regexp.Regexp, 0, len(cfg.Patterns)+len(defaultPatterns)),
	}
	for _, k := range cfg.Keys {
		r.keys[strings.ToLower(k)] = struct{}{}
	}

	if !cfg.DisableGitleaks {
		// A broken default config degrades to regex patterns only.
		if detector, err := newGitleaksDetector(); err == nil {
			r.gitleaksDetector = detector
		}
	}

	for _, p := range defaultPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to compile default pattern %s: %w", p, err)
		}
		r.patterns = append(r.patterns, re)
	}
	for _, p := range cfg.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to compile custom pattern %s: %w", p, err)
		}
		r.patterns = append(r.patterns, re)
	}

	return r, nil
}

// newGitleaksDetector loads the gitleaks default rule set.
func newGitleaksDetector() (*detect.Detector, error) {
	v := viper.New()
	v.SetConfigType("toml")
	if err := v.ReadConfig(strings.NewReader(config.DefaultConfig)); err != nil {
		return nil, fmt.Errorf("failed to read gitleaks config: %w", err)
	}

	var vc config.ViperConfig
	if err := v.Unmarshal(&vc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gitleaks config: %w", err)
	}

	cfg, err := vc.Translate()
	if err != nil {
		return nil, fmt.Errorf("failed to translate gitleaks config: %w", err)
	}

	return detect.NewDetector(cfg), nil
}

// ScrubString replaces sensitive patterns in a string. Gitleaks findings are
// replaced first, then the regex patterns are applied.
func (r *Redactor) ScrubString(input string) string {
	if r == nil || input == "" {
		return input
	}

	result := input
	if r.gitleaksDetector != nil {
		findings := r.gitleaksDetector.Detect(detect.Fragment{Raw: result})
		for _, finding := range findings {
			if finding.Secret == "" {
				continue
			}
			result = strings.ReplaceAll(result, finding.Secret, r.replacement(finding.Secret))
		}
	}

	for _, re := range r.patterns {
		result = re.ReplaceAllStringFunc(result, r.replacement)
	}
	return result
}

// ScrubError returns err with a scrubbed message. The original error stays
// reachable through errors.Is and errors.As.
func (r *Redactor) ScrubError(err error) error {
	if r == nil || err == nil {
		return err
	}
	msg := err.Error()
	scrubbed := r.ScrubString(msg)
	if scrubbed == msg {
		return err
	}
	return &ScrubbedError{msg: scrubbed, cause: err}
}

// RedactContext returns a copy of c safe to log: values under configured
// keys are replaced and every string is scrubbed. Nested maps and slices are
// copied too; c itself is not modified.
func (r *Redactor) RedactContext(c map[string]any) map[string]any {
	if r == nil || c == nil {
		return c
	}
	out := make(map[string]any, len(c))
	for k, v := range c {
		out[k] = r.redactValue(k, v)
	}
	return out
}

func (r *Redactor) redactValue(key string, v any) any {
	if _, secret := r.keys[strings.ToLower(key)]; secret {
		if s, ok := v.(string); ok {
			return r.replacement(s)
		}
		return Placeholder
	}

	switch val := v.(type) {
	case string:
		return r.ScrubString(val)
	case map[string]any:
		return r.RedactContext(val)
	case []any:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = r.redactValue(key, item)
		}
		return items
	default:
		return v
	}
}

func (r *Redactor) replacement(secret string) string {
	if r.hashMode {
		return r.hash(secret)
	}
	return Placeholder
}

// hash returns a truncated HMAC-SHA256 of the secret, [hmac:<16 hex chars>].
// It allows correlating occurrences without revealing the value.
func (r *Redactor) hash(secret string) string {
	mac := hmac.New(sha256.New, []byte(r.salt))
	mac.Write([]byte(secret))
	return fmt.Sprintf("[hmac:%s]", hex.EncodeToString(mac.Sum(nil))[:16])
}

// ScrubbedError carries a redacted message for a wrapped cause.
type ScrubbedError struct {
	msg   string
	cause error
}

func (e *ScrubbedError) Error() string { return e.msg }

// Unwrap returns the original error.
func (e *ScrubbedError) Unwrap() error { return e.cause }

// defaultPatterns contains high-confidence regexes for common secrets.
var defaultPatterns = []string{
	// AWS Access Key ID
	`\b((?:AKIA|ABIA|ACCA|ASIA)[0-9A-Z]{16})\b`,
	// Generic Private Key Header
	`-----BEGIN [A-Z ]+ PRIVATE KEY-----`,
	// Github Token
	`gh[pousr]_[A-Za-z0-9_]{36,255}`,
	// Slack Token
	`xox[baprs]-([0-9a-zA-Z]{10,48})?`,
	// Bearer credentials in Authorization headers
	`(?i)bearer\s+[A-Za-z0-9\-._~+/]{20,}=*`,
}
