package web

import "net/http"

// CookieStore carries the profile override in a session cookie.
// It reads from the request and writes to the response of one exchange.
type CookieStore struct {
	w http.ResponseWriter
	r *http.Request
}

// NewCookieStore creates a store for one request/response pair.
func NewCookieStore(w http.ResponseWriter, r *http.Request) *CookieStore {
	return &CookieStore{w: w, r: r}
}

// Get implements ports.SelectionStore.
func (s *CookieStore) Get(key string) (string, bool) {
	c, err := s.r.Cookie(key)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

// Set writes a session cookie valid for the whole site.
func (s *CookieStore) Set(key, value string) {
	http.SetCookie(s.w, &http.Cookie{
		Name:     key,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires the cookie.
func (s *CookieStore) Clear(key string) {
	http.SetCookie(s.w, &http.Cookie{
		Name:   key,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}
