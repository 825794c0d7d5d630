package callback

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// Prefix is the fixed literal every token starts with.
	Prefix = "callback"

	separator = "-"

	// canonicalLen is the length of an 8-4-4-4-12 hex correlation id.
	canonicalLen = 36
)

var (
	// ErrInvalidToken indicates a token that is empty, not a string, or
	// otherwise malformed.
	ErrInvalidToken = errors.New("invalid callback token")

	// ErrInvalidExecutionID indicates an empty execution identifier was given
	// to Generate.
	ErrInvalidExecutionID = errors.New("execution id must be a non-empty identifier")
)

var canonicalSuffix = regexp.MustCompile(
	`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`,
)

// Token is the parsed form of a callback token.
type Token struct {
	ExecutionID   string `json:"executionId"`
	CorrelationID string `json:"correlationId"`
}

// String renders the token text.
func (t Token) String() string {
	return Prefix + separator + t.ExecutionID + separator + t.CorrelationID
}

// Canonical reports whether the correlation id uses canonical UUID grouping.
func (t Token) Canonical() bool {
	return len(t.CorrelationID) == canonicalLen && canonicalSuffix.MatchString(t.CorrelationID)
}

// Codec produces and decodes callback tokens.
type Codec struct {
	newID  func() uuid.UUID
	strict bool
}

// Option configures a Codec.
type Option func(*Codec)

// WithIDGenerator overrides the correlation id source. Tests use it to make
// tokens predictable.
func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(c *Codec) { c.newID = gen }
}

// WithStrictParsing disables the heuristic fallback in Parse so only tokens
// with a canonical correlation id are accepted.
func WithStrictParsing() Option {
	return func(c *Codec) { c.strict = true }
}

// NewCodec returns a Codec that generates random UUID correlation ids.
func NewCodec(opts ...Option) *Codec {
	c := &Codec{newID: uuid.New}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate returns a fresh token for executionID.
func (c *Codec) Generate(executionID string) (string, error) {
	if strings.TrimSpace(executionID) == "" {
		return "", ErrInvalidExecutionID
	}
	return Token{ExecutionID: executionID, CorrelationID: c.newID().String()}.String(), nil
}

// Parse decodes token using the codec's parsing mode.
func (c *Codec) Parse(token string) (Token, error) {
	if err := Validate(token); err != nil {
		return Token{}, err
	}
	if t, ok, err := parseCanonical(token); ok || err != nil {
		return t, err
	}
	if c.strict {
		return Token{}, fmt.Errorf("%w: correlation id is not a canonical UUID", ErrInvalidToken)
	}
	return parseFallback(token)
}

// Validate checks that token is non-empty and carries the fixed prefix.
func Validate(token string) error {
	if token == "" {
		return fmt.Errorf("%w: token must be a non-empty string", ErrInvalidToken)
	}
	if !strings.HasPrefix(token, Prefix+separator) {
		return fmt.Errorf("%w: token must start with %q", ErrInvalidToken, Prefix+separator)
	}
	return nil
}

// ValidateValue validates a token that arrives untyped, for example from
// decoded JSON. Anything other than a string is rejected.
func ValidateValue(v any) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("%w: token must be a string, got %T", ErrInvalidToken, v)
	}
	return Validate(s)
}

// Parse decodes token with the default (non-strict) codec rules.
func Parse(token string) (Token, error) {
	return defaultCodec.Parse(token)
}

var defaultCodec = NewCodec()

// parseCanonical looks for a canonical correlation id at the end of token.
// The match is located by position, so an execution id that happens to
// contain a UUID of its own is still recovered intact.
func parseCanonical(token string) (Token, bool, error) {
	body := strings.TrimPrefix(token, Prefix+separator)
	if !canonicalSuffix.MatchString(body) {
		return Token{}, false, nil
	}

	split := len(body) - canonicalLen
	correlation := body[split:]
	if split == 0 {
		return Token{}, true, fmt.Errorf("%w: missing execution id", ErrInvalidToken)
	}
	if body[split-1:split] != separator {
		// Suffix is glued to the execution id; let the fallback decide.
		return Token{}, false, nil
	}

	executionID := body[:split-1]
	if executionID == "" {
		return Token{}, true, fmt.Errorf("%w: missing execution id", ErrInvalidToken)
	}
	return Token{ExecutionID: executionID, CorrelationID: correlation}, true, nil
}

// parseFallback treats the last dash-separated segment as the correlation id.
// This is a heuristic for tokens minted by other producers and misparses
// execution ids that end in dash-separated parts of their own.
func parseFallback(token string) (Token, error) {
	parts := strings.Split(strings.TrimPrefix(token, Prefix+separator), separator)
	if len(parts) < 2 {
		return Token{}, fmt.Errorf("%w: expected <executionId>-<correlationId>", ErrInvalidToken)
	}
	return Token{
		ExecutionID:   strings.Join(parts[:len(parts)-1], separator),
		CorrelationID: parts[len(parts)-1],
	}, nil
}
