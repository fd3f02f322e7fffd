package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/abrezinsky/slotboard/internal/models"
)

const (
	CookieName    = "slotboard_session"
	SessionExpiry = 7 * 24 * time.Hour
	Issuer        = "slotboard"
)

// Token errors
var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims carried by identity tokens. The subject is the member uid.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Auth verifies and issues HS256 identity tokens
type Auth struct {
	secret []byte
	now    func() time.Time
}

// New creates a new Auth instance with the given signing secret
func New(secret []byte) *Auth {
	return &Auth{secret: secret, now: time.Now}
}

// SetClock replaces the time source used for expiry checks.
func (a *Auth) SetClock(now func() time.Time) {
	a.now = now
}

// GenerateSecret creates a random signing secret for development runs
func GenerateSecret() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// Issue signs a token for who. A zero ttl issues a token without expiry.
func (a *Auth) Issue(who models.Identity, ttl time.Duration) (string, error) {
	if err := checkUID(who.UID); err != nil {
		return "", err
	}
	now := a.now()
	claims := Claims{
		Name:  who.Name,
		Email: who.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  who.UID,
			Issuer:   Issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses token and returns the identity it carries
func (a *Auth) Verify(token string) (models.Identity, error) {
	if token == "" {
		return models.Identity{}, ErrMissingToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !parsed.Valid {
		return models.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if err := checkUID(claims.Subject); err != nil {
		return models.Identity{}, err
	}

	return models.Identity{
		UID:   claims.Subject,
		Name:  claims.Name,
		Email: strings.TrimSpace(claims.Email),
	}, nil
}

func checkUID(uid string) error {
	if uid == "" {
		return fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	if strings.HasPrefix(uid, models.GuestUIDPrefix) {
		return fmt.Errorf("%w: reserved subject", ErrInvalidToken)
	}
	return nil
}

// TokenFromRequest returns the bearer token, falling back to the session cookie
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// IdentityFromRequest verifies the request's token
func (a *Auth) IdentityFromRequest(r *http.Request) (models.Identity, error) {
	return a.Verify(TokenFromRequest(r))
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying who
func WithIdentity(ctx context.Context, who models.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, who)
}

// IdentityFrom returns the identity stored in ctx, or an anonymous one
func IdentityFrom(ctx context.Context) models.Identity {
	who, _ := ctx.Value(contextKey{}).(models.Identity)
	return who
}

// Identify middleware attaches the caller's identity when the request carries
// a valid token. Requests without one continue anonymously.
func (a *Auth) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if who, err := a.IdentityFromRequest(r); err == nil {
			r = r.WithContext(WithIdentity(r.Context(), who))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireIdentityAPI middleware for API endpoints (returns 401)
func (a *Auth) RequireIdentityAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		who := IdentityFrom(r.Context())
		if who.IsAnonymous() {
			var err error
			if who, err = a.IdentityFromRequest(r); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"code":"UNAUTHORIZED","error":"Unauthorized - please sign in"}`))
				return
			}
			r = r.WithContext(WithIdentity(r.Context(), who))
		}
		next.ServeHTTP(w, r)
	})
}

// SetSessionCookie sets the session cookie on the response
func SetSessionCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionExpiry.Seconds()),
	})
}

// ClearSessionCookie removes the session cookie
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// AdminList is the case-insensitive admin email allow-list
type AdminList struct {
	emails map[string]struct{}
}

// NewAdminList builds an allow-list from emails; blanks are skipped
func NewAdminList(emails []string) *AdminList {
	l := &AdminList{emails: make(map[string]struct{}, len(emails))}
	for _, e := range emails {
		if e = normalizeEmail(e); e != "" {
			l.emails[e] = struct{}{}
		}
	}
	return l
}

// ParseAdminList reads a comma separated list such as ADMIN_EMAILS
func ParseAdminList(csv string) *AdminList {
	return NewAdminList(strings.Split(csv, ","))
}

// IsAdmin reports whether email is on the list
func (l *AdminList) IsAdmin(email string) bool {
	if l == nil {
		return false
	}
	email = normalizeEmail(email)
	if email == "" {
		return false
	}
	_, ok := l.emails[email]
	return ok
}

// Emails returns the listed addresses, sorted
func (l *AdminList) Emails() []string {
	out := make([]string, 0, len(l.emails))
	for e := range l.emails {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
