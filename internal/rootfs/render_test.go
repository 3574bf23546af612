package rootfs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redoxforge/redoxforge/internal/config"
)

func TestRenderPasswd(t *testing.T) {
	users := map[string]config.User{
		"bob":   {UID: 1001, GID: 1001, Home: "/home/bob", Shell: "/bin/sh", Realname: "Bob Jones"},
		"alice": {UID: 1000, GID: 1000, Home: "/home/alice", Shell: "/bin/ion"},
	}
	out := RenderPasswd(users)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)

	assert.Equal(t, "root;0;0;root;/root;/bin/ion", lines[0])
	// Sorted after root; realname defaults to the user name.
	assert.Equal(t, "alice;1000;1000;alice;/home/alice;/bin/ion", lines[1])
	assert.Equal(t, "bob;1001;1001;Bob Jones;/home/bob;/bin/sh", lines[2])

	for _, line := range lines {
		assert.Equal(t, 6, len(strings.Split(line, ";")), "line %q must have 6 fields", line)
	}
}

func TestRenderPasswdExplicitRootOverride(t *testing.T) {
	users := map[string]config.User{
		"root": {UID: 0, GID: 0, Home: "/root", Shell: "/bin/zsh"},
	}
	out := RenderPasswd(users)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	// The built-in root line wins; a configured root user is not duplicated.
	require.Len(t, lines, 1)
	assert.Equal(t, "root;0;0;root;/root;/bin/ion", lines[0])
}

func TestRenderGroup(t *testing.T) {
	groups := map[string]config.Group{
		"wheel": {GID: 10, Members: []string{"alice", "bob"}},
		"alice": {GID: 1000, Members: []string{"alice"}},
		"empty": {GID: 50},
	}
	out := RenderGroup(groups)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)

	assert.Equal(t, "root;x;0;root", lines[0])
	assert.Equal(t, "alice;x;1000;alice", lines[1])
	assert.Equal(t, "empty;x;50;", lines[2])
	assert.Equal(t, "wheel;x;10;alice,bob", lines[3])
	assert.False(t, strings.HasSuffix(lines[3], ","), "no trailing comma")
}

func TestRenderShadow(t *testing.T) {
	users := map[string]config.User{
		"alice": {UID: 1000, GID: 1000, Home: "/home/alice", Password: "secret"},
		"bob":   {UID: 1001, GID: 1001, Home: "/home/bob"},
	}
	out, err := RenderShadow(users)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)

	assert.Equal(t, "root;", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "alice;$argon2id$"))
	assert.Equal(t, "bob;", lines[2])
}

func TestRenderShadowKeepsExistingHash(t *testing.T) {
	hash, err := config.HashPassword("pw")
	require.NoError(t, err)
	users := map[string]config.User{
		"alice": {UID: 1000, GID: 1000, Home: "/home/alice", Password: hash},
	}
	out, err := RenderShadow(users)
	require.NoError(t, err)
	assert.Contains(t, out, "alice;"+hash)
}

func TestRenderDNS(t *testing.T) {
	assert.Equal(t, "8.8.8.8\n1.1.1.1\n", RenderDNS([]string{"8.8.8.8", "1.1.1.1"}))
	assert.Empty(t, RenderDNS(nil))
}
