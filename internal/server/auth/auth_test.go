package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifierOwnerID(t *testing.T) {
	const secret = "test-secret"
	v := NewVerifier(secret)

	t.Run("valid token yields subject", func(t *testing.T) {
		token, err := Issue(secret, "owner-42", time.Hour)
		require.NoError(t, err)

		ownerID, err := v.OwnerID(token)
		require.NoError(t, err)
		assert.Equal(t, "owner-42", ownerID)
	})

	t.Run("wrong secret is rejected", func(t *testing.T) {
		token, err := Issue("other-secret", "owner-42", time.Hour)
		require.NoError(t, err)

		_, err = v.OwnerID(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		token, err := Issue(secret, "owner-42", -time.Minute)
		require.NoError(t, err)

		_, err = v.OwnerID(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		_, err := v.OwnerID("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
