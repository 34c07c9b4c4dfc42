package httpx

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// safeRedirectPath ensures the provided redirect is a same-origin relative path
// starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" || strings.ContainsRune(candidate, '\\') {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") ||
		strings.HasPrefix(candidate, "//") {
		return "/"
	}
	return candidate
}

// resolveNext consumes a navigation intent: a valid same-origin path other
// than the login screen itself, or fallback.
func resolveNext(candidate, fallback, loginPath string) string {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || safeRedirectPath(candidate) != candidate {
		return fallback
	}
	if u, err := url.Parse(candidate); err != nil || u.Path == loginPath {
		return fallback
	}
	return candidate
}

// loginURL builds the login address carrying next as the navigation intent.
func loginURL(loginPath, next string) string {
	u := url.URL{Path: loginPath}
	if next != "" && next != "/" {
		q := url.Values{}
		q.Set(nextParam, next)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// formBool reads a checkbox-style form value.
func formBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(r.PostFormValue(key)))
	return err == nil && v
}

// formInt reads an integer form value, returning def when missing or invalid.
func formInt(r *http.Request, key string, def int) int {
	if v := strings.TrimSpace(r.PostFormValue(key)); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
