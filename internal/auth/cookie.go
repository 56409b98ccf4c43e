package auth

import (
	"net/http"
	"time"
)

// Default refresh cookie attributes.
const (
	DefaultRefreshCookieName = "refreshToken"
	DefaultRefreshCookiePath = "/auth/refresh"
)

// CookiePolicy fixes the attributes of the refresh cookie.
//
// Browsers match on name, path and domain when deleting a cookie, and some
// clients also compare Secure and SameSite. Clear therefore reuses every
// attribute Issue sets.
type CookiePolicy struct {
	Name     string
	Path     string
	SameSite http.SameSite
	Secure   bool
	MaxAge   time.Duration
}

// Issue builds the cookie carrying a refresh token.
func (p CookiePolicy) Issue(refreshToken string) *http.Cookie {
	c := p.base()
	c.Value = refreshToken
	c.MaxAge = int(p.MaxAge / time.Second)
	return c
}

// Clear builds a cookie that deletes the refresh cookie on the client.
func (p CookiePolicy) Clear() *http.Cookie {
	c := p.base()
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	return c
}

// Read returns the refresh token presented with r, or "" if none.
func (p CookiePolicy) Read(r *http.Request) string {
	c, err := r.Cookie(p.Name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (p CookiePolicy) base() *http.Cookie {
	return &http.Cookie{
		Name:     p.Name,
		Path:     p.Path,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	}
}
