// Package rootfs renders a merged configuration into a staged root file
// tree: account databases, /etc settings, network files and init scripts.
package rootfs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/redoxforge/redoxforge/internal/config"
)

// RenderPasswd produces /etc/passwd: one semicolon-delimited line per user,
// root first, the rest sorted by name. Exactly six fields:
// name;uid;gid;realname;home;shell. Realname falls back to the user name.
func RenderPasswd(users map[string]config.User) string {
	var b strings.Builder
	b.WriteString(passwdLine("root", config.User{UID: 0, GID: 0, Home: "/root", Shell: "/bin/ion"}))
	for _, name := range sortedKeys(users) {
		if name == "root" {
			continue
		}
		b.WriteString(passwdLine(name, users[name]))
	}
	return b.String()
}

func passwdLine(name string, u config.User) string {
	realname := u.Realname
	if realname == "" {
		realname = name
	}
	shell := u.Shell
	if shell == "" {
		shell = "/bin/ion"
	}
	return fmt.Sprintf("%s;%d;%d;%s;%s;%s\n", name, u.UID, u.GID, realname, u.Home, shell)
}

// RenderShadow produces the password hash database: name;hash per user,
// root first. Users without a password get an empty hash field, which the
// login program treats as passwordless. Plaintext passwords are hashed
// here; values that are already hashes pass through.
func RenderShadow(users map[string]config.User) (string, error) {
	var b strings.Builder
	b.WriteString("root;\n")
	for _, name := range sortedKeys(users) {
		if name == "root" {
			continue
		}
		hash := users[name].Password
		if hash != "" && !config.IsHashedPassword(hash) {
			var err error
			hash, err = config.HashPassword(hash)
			if err != nil {
				return "", fmt.Errorf("hashing password for %s: %w", name, err)
			}
		}
		fmt.Fprintf(&b, "%s;%s\n", name, hash)
	}
	return b.String(), nil
}

// RenderGroup produces /etc/group: name;x;gid;members with members joined
// by commas and nothing after the last separator when there are none. The
// root group comes first, the rest sorted by name.
func RenderGroup(groups map[string]config.Group) string {
	var b strings.Builder
	b.WriteString(groupLine("root", config.Group{GID: 0, Members: []string{"root"}}))
	for _, name := range sortedKeys(groups) {
		if name == "root" {
			continue
		}
		b.WriteString(groupLine(name, groups[name]))
	}
	return b.String()
}

func groupLine(name string, g config.Group) string {
	return fmt.Sprintf("%s;x;%d;%s\n", name, g.GID, strings.Join(g.Members, ","))
}

// RenderDNS produces /etc/dns with one nameserver per line.
func RenderDNS(servers []string) string {
	var b strings.Builder
	for _, s := range servers {
		b.WriteString(s)
		b.WriteByte('\n')
	}
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
