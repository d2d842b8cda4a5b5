package model

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"go-user-api/pkg/apierror"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	cases := map[int]bool{
		5:  false,
		6:  true,
		72: true,
		73: false,
		80: false,
	}

	for length, ok := range cases {
		err := ValidatePassword(strings.Repeat("a", length))
		if ok {
			require.NoError(t, err, "length %d", length)
			continue
		}
		require.Equal(t, http.StatusBadRequest, apierror.Status(err), "length %d", length)
	}
}

func TestUserRequestDecodesBirthAt(t *testing.T) {
	t.Parallel()

	var req UserRequest
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Ana","email":"A@B.com","password":"secret123","birthAt":"1990-01-02"}`), &req))
	require.NoError(t, req.Validate())

	in := req.Input("hash")
	require.NotNil(t, in.BirthAt)
	require.Equal(t, "1990-01-02", in.BirthAt.Format("2006-01-02"))
	require.Equal(t, "a@b.com", in.Email)
	require.Equal(t, RoleUser, in.Role)

	var patch PatchUserRequest
	require.NoError(t, json.Unmarshal([]byte(`{"birthAt":"not-a-date"}`), &patch))
	require.True(t, apierror.HasCode(patch.Validate(), apierror.CodeBadRequest))
}

func TestNewMeta(t *testing.T) {
	t.Parallel()

	require.Equal(t, Meta{Page: 1, Limit: 20, Total: 0, TotalPages: 0}, NewMeta(1, 20, 0))
	require.Equal(t, Meta{Page: 2, Limit: 20, Total: 41, TotalPages: 3}, NewMeta(2, 20, 41))
	require.Equal(t, 0, NewMeta(1, 0, 5).TotalPages)
}
