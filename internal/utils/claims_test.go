package utils_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestClaimStrings(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, utils.ClaimStrings([]any{"a", 1, "b", nil}))
	require.Equal(t, []string{"x"}, utils.ClaimStrings([]string{"x"}))
	require.Empty(t, utils.ClaimStrings([]any{}))
	require.Nil(t, utils.ClaimStrings("users.list"))
	require.Nil(t, utils.ClaimStrings(nil))
}
