package identity_test

import (
	"encoding/json"
	"testing"

	"github.com/aussiebroadwan/tillsession/pkg/identity"
	"github.com/aussiebroadwan/tillsession/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestRoleFromIdentifier(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		identifier string
		want       identity.Role
	}{
		{"alice@test.com", identity.RoleNone},
		{"cashier@test.com", identity.RoleCashier},
		{"CLERK@TEST.COM", identity.RoleClerk},
		{"night-manager@test.com", identity.RoleManager},
		{"manager.clerk@test.com", identity.RoleClerk},
		{"clerk-cashier@test.com", identity.RoleCashier},
		{"manager-cashier-clerk@test.com", identity.RoleCashier},
	} {
		require.Equal(t, tc.want, identity.RoleFromIdentifier(tc.identifier), tc.identifier)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	t.Run("anonymous drops role and user", func(t *testing.T) {
		got := identity.Identity{Role: identity.RoleManager, UserID: "x"}.Normalize()
		require.Equal(t, identity.Default, got)
	})

	t.Run("unknown role becomes none", func(t *testing.T) {
		got := identity.Identity{IsAuthenticated: true, Role: "janitor", UserID: "x"}.Normalize()
		require.Equal(t, identity.RoleNone, got.Role)
		require.True(t, got.IsAuthenticated)
	})
}

func TestFromClaims(t *testing.T) {
	t.Parallel()

	require.Equal(t, identity.Default, identity.FromClaims(nil))

	c := &jwtx.Claims{IsAuthenticated: true, UserRole: "Cashier", UserID: "e4d1bc2ab25c"}
	require.Equal(t, identity.Identity{
		IsAuthenticated: true,
		Role:            identity.RoleCashier,
		UserID:          "e4d1bc2ab25c",
	}, identity.FromClaims(c))

	anon := &jwtx.Claims{IsAuthenticated: false, UserRole: "clerk", UserID: "u"}
	require.Equal(t, identity.Default, identity.FromClaims(anon))
}

func TestIdentityJSON(t *testing.T) {
	t.Parallel()

	t.Run("default writes null user id", func(t *testing.T) {
		b, err := json.Marshal(identity.Default)
		require.NoError(t, err)
		require.JSONEq(t, `{"isAuthenticated":false,"userRole":"none","userId":null}`, string(b))
	})

	t.Run("reads cached status", func(t *testing.T) {
		var got identity.Identity
		err := json.Unmarshal([]byte(`{"isAuthenticated":true,"userRole":"clerk","userId":"e4d1bc2ab25c"}`), &got)
		require.NoError(t, err)
		require.Equal(t, identity.Identity{
			IsAuthenticated: true,
			Role:            identity.RoleClerk,
			UserID:          "e4d1bc2ab25c",
		}, got)
	})

	t.Run("reads null user id", func(t *testing.T) {
		var got identity.Identity
		err := json.Unmarshal([]byte(`{"isAuthenticated":false,"userRole":"none","userId":null}`), &got)
		require.NoError(t, err)
		require.Equal(t, identity.Default, got)
	})
}
