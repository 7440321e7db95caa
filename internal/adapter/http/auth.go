package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/mrjones/oauth"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

// APS headers the bus sends with every call.
const (
	headerControllerURI = "aps-controller-uri"
	headerTransactionID = "aps-transaction-id"
)

type originKey struct{}

// OriginFrom returns the origin stored by Authenticate.
func OriginFrom(ctx context.Context) (domain.Origin, bool) {
	o, ok := ctx.Value(originKey{}).(domain.Origin)
	return o, ok
}

// Authenticate verifies the OAuth 1.0a signature of OA calls against the
// secret of the installation owning the consumer key, and stores the origin of
// the call in the request context. Only paths under the given prefixes are
// checked.
func Authenticate(installations domain.InstallationRepository, prefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !protected(r.URL.Path, prefixes) {
				next.ServeHTTP(w, r)
				return
			}

			var lookupErr error
			provider := oauth.NewProvider(func(key string, _ map[string]string) (*oauth.Consumer, error) {
				inst, err := installations.GetByOAuthKey(r.Context(), key)
				if err != nil {
					lookupErr = err
					return nil, err
				}
				return oauth.NewConsumer(inst.OAuthKey, inst.OAuthSecret, oauth.ServiceProvider{}), nil
			})

			key, err := provider.IsAuthorized(signedRequest(r))
			switch {
			case errors.Is(lookupErr, domain.ErrConfigurationNotFound):
				writeJSON(r.Context(), w, http.StatusUnauthorized, map[string]string{"message": "unknown consumer key"})
				return
			case lookupErr != nil:
				slog.ErrorContext(r.Context(), "reading installation", "error", lookupErr)
				writeJSON(r.Context(), w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
				return
			case err != nil:
				slog.WarnContext(r.Context(), "invalid OAuth signature", "error", err)
				writeJSON(r.Context(), w, http.StatusUnauthorized, map[string]string{"message": "invalid signature"})
				return
			case key == nil:
				writeJSON(r.Context(), w, http.StatusUnauthorized, map[string]string{"message": "missing OAuth credentials"})
				return
			}

			controller := r.Header.Get(headerControllerURI)
			if !isURL(controller) {
				writeJSON(r.Context(), w, http.StatusBadRequest, map[string]string{
					"message": "Instance configuration in CloudBlue Commerce is not set to type proxy",
				})
				return
			}

			origin := domain.Origin{
				OAuthKey:      *key,
				ControllerURI: controller,
				TransactionID: r.Header.Get(headerTransactionID),
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), originKey{}, origin)))
		})
	}
}

func protected(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// signedRequest returns a shallow copy of r whose URL carries the scheme and
// host the caller signed, as seen through the forwarding proxy.
func signedRequest(r *http.Request) *http.Request {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
		if r.TLS != nil {
			scheme = "https"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	host = strings.ToLower(host)
	if h, port, ok := strings.Cut(host, ":"); ok && (port == "80" || port == "443") {
		host = h
	}

	out := r.Clone(r.Context())
	out.URL.Scheme = strings.ToLower(scheme)
	out.URL.Host = host
	return out
}

func isURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return false
	}
	return true
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.WarnContext(ctx, "writing response", "status", status, "error", err)
	}
}
