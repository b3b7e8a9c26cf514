package http

import "net/http"

// Each realm is a static shared-secret exact-match check. A realm whose
// secret is unset while auth is required answers 503 so operators can tell
// "unconfigured" apart from a bad client credential.
type realm struct {
	header      string
	secret      string
	required    bool
	missingMsg  string
	rejectedMsg string
}

func submitterRealm(apiKey string, required bool) realm {
	return realm{
		header:      "x-api-key",
		secret:      apiKey,
		required:    required,
		missingMsg:  "Remote API auth is required but CLOUD_API_KEY is not configured.",
		rejectedMsg: "Invalid API key.",
	}
}

func agentRealm(secret string, required bool) realm {
	return realm{
		header:      "x-agent-token",
		secret:      secret,
		required:    required,
		missingMsg:  "Remote agent auth is required but AGENT_SHARED_SECRET is not configured.",
		rejectedMsg: "Invalid agent token.",
	}
}

func (a realm) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.required && a.secret == "" {
			writeError(w, http.StatusServiceUnavailable, a.missingMsg)
			return
		}
		if a.secret != "" && r.Header.Get(a.header) != a.secret {
			writeError(w, http.StatusUnauthorized, a.rejectedMsg)
			return
		}
		next.ServeHTTP(w, r)
	})
}
