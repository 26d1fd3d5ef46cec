package permissions_test

import (
	"bytes"
	"html/template"
	"testing"

	"github.com/jrsteele09/go-auth-client/permissions"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_Permissions(t *testing.T) {
	user := &sessions.User{Permissions: []string{"a", "b"}}

	t.Run("missing one of all", func(t *testing.T) {
		require.False(t, permissions.Evaluate(user, permissions.Requirement{Permissions: []string{"a", "b", "c"}}))
	})

	t.Run("holds all", func(t *testing.T) {
		require.True(t, permissions.Evaluate(user, permissions.Requirement{Permissions: []string{"a", "b"}}))
	})
}

func TestEvaluate_Roles(t *testing.T) {
	user := &sessions.User{Roles: []string{"admin"}}

	t.Run("holds one of any", func(t *testing.T) {
		require.True(t, permissions.Evaluate(user, permissions.Requirement{Roles: []string{"admin", "editor"}}))
	})

	t.Run("holds none", func(t *testing.T) {
		require.False(t, permissions.Evaluate(user, permissions.Requirement{Roles: []string{"editor", "viewer"}}))
	})
}

func TestEvaluate_Combined(t *testing.T) {
	user := &sessions.User{Permissions: []string{"metrics.list"}, Roles: []string{"editor"}}

	require.True(t, permissions.Evaluate(user, permissions.Requirement{
		Permissions: []string{"metrics.list"},
		Roles:       []string{"administrator", "editor"},
	}))
	require.False(t, permissions.Evaluate(user, permissions.Requirement{
		Permissions: []string{"metrics.list"},
		Roles:       []string{"administrator"},
	}))
	require.False(t, permissions.Evaluate(user, permissions.Requirement{
		Permissions: []string{"users.create"},
		Roles:       []string{"editor"},
	}))
}

func TestEvaluate_EmptyRequirement(t *testing.T) {
	require.True(t, permissions.Evaluate(&sessions.User{}, permissions.Requirement{}))
	require.True(t, permissions.Requirement{}.IsZero())
}

func TestEvaluate_Unauthenticated(t *testing.T) {
	reqs := []permissions.Requirement{
		{},
		{Permissions: []string{"a"}},
		{Roles: []string{"admin"}},
	}
	for _, req := range reqs {
		require.False(t, permissions.Evaluate(nil, req))
	}
}

func TestParseList(t *testing.T) {
	require.Equal(t, []string{"users.list", "metrics.list"}, permissions.ParseList(" users.list, ,metrics.list "))
	require.Nil(t, permissions.ParseList(""))
}

func TestTemplateFuncs(t *testing.T) {
	const page = `{{ if can "permissions" "metrics.list" }}metrics{{ end }}|{{ if can "roles" "administrator,editor" }}admin{{ end }}|{{ if canAll "users.list" "viewer" }}users{{ end }}|{{ if isAuthenticated }}in{{ end }}`

	render := func(t *testing.T, user *sessions.User) string {
		t.Helper()
		tmpl, err := template.New("page").Funcs(permissions.TemplateFuncs(user)).Parse(page)
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, tmpl.Execute(&buf, nil))
		return buf.String()
	}

	t.Run("granted", func(t *testing.T) {
		user := &sessions.User{Permissions: []string{"metrics.list"}, Roles: []string{"editor"}}
		require.Equal(t, "metrics|admin||in", render(t, user))
	})

	t.Run("anonymous sees nothing", func(t *testing.T) {
		require.Equal(t, "|||", render(t, nil))
	})
}
