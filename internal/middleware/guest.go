package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"walkypainty/internal/identity"
)

// GuestCookie names the cookie carrying the opaque guest id
const GuestCookie = "walky_guest"

type identityKey struct{}

// Guest attaches a guest identity to every request, reusing the id from the
// guest cookie when it holds a valid uuid and issuing a new one otherwise.
func Guest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ident identity.Identity
		if c, err := r.Cookie(GuestCookie); err == nil {
			if _, perr := uuid.Parse(c.Value); perr == nil {
				ident = identity.GuestWithID(c.Value)
			}
		}
		if ident.IsZero() {
			ident = identity.NewGuest()
			http.SetCookie(w, &http.Cookie{
				Name:     GuestCookie,
				Value:    ident.ID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				MaxAge:   365 * 24 * 60 * 60,
			})
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
	})
}

func WithIdentity(ctx context.Context, ident identity.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, ident)
}

// IdentityFrom returns the identity attached by Guest, if any.
func IdentityFrom(ctx context.Context) (identity.Identity, bool) {
	ident, ok := ctx.Value(identityKey{}).(identity.Identity)
	return ident, ok && !ident.IsZero()
}
