package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/tuturuuu/meetsync/libs/auth"
)

var errUnauthenticated = errors.New("missing or invalid bearer token")

// identity is the authenticated caller: a platform user (from the external
// auth provider's token, trusted as-is) or a guest session bound to one plan.
type identity struct {
	ID     string
	Email  string
	Kind   string
	PlanID string // set only for guests
}

func (id identity) isGuest() bool {
	return id.Kind == auth.KindGuest
}

func identityFromRequest(r *http.Request, secret string) (identity, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return identity{}, errUnauthenticated
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return identity{}, errUnauthenticated
	}
	claims, err := auth.ParseAndVerifyHS256(token, secret)
	if err != nil {
		return identity{}, errUnauthenticated
	}
	kind := claims.Kind
	if kind == "" {
		kind = auth.KindUser
	}
	return identity{
		ID:     claims.Sub,
		Email:  claims.Email,
		Kind:   kind,
		PlanID: claims.PlanID,
	}, nil
}
