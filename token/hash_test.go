package token_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-grant-engine/token"
)

func TestHashedClaimValue(t *testing.T) {
	t.Run("RS256 matches the OIDC core example at_hash", func(t *testing.T) {
		got, err := token.HashedClaimValue("RS256", "jHkWEdUXMU1BwAsC4vtUsZwnNvTIxEl0z9K3vx5KF0Y")
		require.NoError(t, err)
		require.Equal(t, "77QmUPtjPfzWtF2AnpK9RQ", got)
	})

	t.Run("RS384 uses SHA-384", func(t *testing.T) {
		got, err := token.HashedClaimValue("RS384", "abc")
		require.NoError(t, err)
		require.Equal(t, "ywB1P0WjXou1oD1pmsZQBycsMqsO3tFj", got)
	})

	t.Run("RS512 uses SHA-512", func(t *testing.T) {
		got, err := token.HashedClaimValue("RS512", "abc")
		require.NoError(t, err)
		require.Equal(t, "3a81oZNherrMQXNJriBBMRLm-k6JqX6iCp7u5ktV05o", got)
	})

	t.Run("HS256 shares the SHA-256 mapping", func(t *testing.T) {
		rs, err := token.HashedClaimValue("RS256", "same-input")
		require.NoError(t, err)
		hs, err := token.HashedClaimValue("HS256", "same-input")
		require.NoError(t, err)
		require.Equal(t, rs, hs)
	})

	t.Run("unknown algorithm errors", func(t *testing.T) {
		_, err := token.HashedClaimValue("none", "value")
		require.Error(t, err)
	})
}
