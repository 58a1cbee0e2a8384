package middleware

import (
	"mime"
	"net/http"
	"strings"
)

// overridableMethods are the methods a form may tunnel through POST.
var overridableMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
	http.MethodPatch:  true,
}

// MethodOverride rewrites POST requests whose _method parameter names
// another HTTP method. HTML forms can only submit GET and POST, so a
// delete button posts with a hidden _method field or query parameter.
// Unknown override values leave the method untouched.
func MethodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if m := overrideMethod(r); overridableMethods[m] {
				r.Method = m
			}
		}
		next.ServeHTTP(w, r)
	})
}

// overrideMethod extracts the requested override from the query string
// or, for urlencoded forms, the body. Multipart bodies are left unread
// so upload streams stay intact.
func overrideMethod(r *http.Request) string {
	if v := r.URL.Query().Get("_method"); v != "" {
		return strings.ToUpper(v)
	}

	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || ct != "application/x-www-form-urlencoded" {
		return ""
	}
	if err := r.ParseForm(); err != nil {
		return ""
	}
	return strings.ToUpper(r.PostForm.Get("_method"))
}
