// Package session carries the authenticated caller explicitly through every
// operation instead of reading it from ambient state.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DayLayout is the calendar day format used by every stored date.
const DayLayout = "2006-01-02"

var (
	// ErrUnauthorized is returned when a request carries no valid bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidDate is returned for a day not in YYYY-MM-DD form.
	ErrInvalidDate = errors.New("invalid date")
)

// Session identifies the owning user of an operation and the timezone used to
// resolve "today".
type Session struct {
	UserID   string
	Location *time.Location
	clock    func() time.Time
}

// New returns a session for userID evaluated in loc.
func New(userID string, loc *time.Location) Session {
	if loc == nil {
		loc = time.Local
	}
	return Session{UserID: userID, Location: loc}
}

// WithClock returns a copy of s whose Now is driven by clock.
func (s Session) WithClock(clock func() time.Time) Session {
	s.clock = clock
	return s
}

// Now returns the current time in the session timezone.
func (s Session) Now() time.Time {
	now := time.Now()
	if s.clock != nil {
		now = s.clock()
	}
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}
	return now.In(loc)
}

// Today returns midnight of the current day in the session timezone.
func (s Session) Today() time.Time {
	return Midnight(s.Now())
}

// TodayString returns today's date as YYYY-MM-DD.
func (s Session) TodayString() string {
	return s.Today().Format(DayLayout)
}

// Midnight truncates t to the start of its calendar day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseDay parses a YYYY-MM-DD calendar day in loc.
func ParseDay(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DayLayout, strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %v", ErrInvalidDate, value, err)
	}
	return t, nil
}

// Verifier turns HS256 bearer tokens issued by the auth provider into sessions.
type Verifier struct {
	secret   []byte
	location *time.Location
}

// NewVerifier returns a Verifier for tokens signed with secret.
func NewVerifier(secret string, loc *time.Location) *Verifier {
	return &Verifier{secret: []byte(secret), location: loc}
}

// Verify validates token and returns the session of its subject.
func (v *Verifier) Verify(token string) (Session, error) {
	if len(v.secret) == 0 || token == "" {
		return Session{}, ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || strings.TrimSpace(claims.Subject) == "" {
		return Session{}, ErrUnauthorized
	}
	return New(claims.Subject, v.location), nil
}

// FromRequest verifies the Authorization bearer header of r.
func (v *Verifier) FromRequest(r *http.Request) (Session, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return Session{}, ErrUnauthorized
	}
	return v.Verify(strings.TrimSpace(token))
}

// Issue signs a token for userID valid for ttl. Used by tooling and tests.
func (v *Verifier) Issue(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
