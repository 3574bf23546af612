package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDiskSizes(t *testing.T) {
	tests := []struct {
		name    string
		disk    int
		esp     int
		wantErr string
	}{
		{"ok", 768, 200, ""},
		{"esp larger than disk", 200, 768, "must be larger than the ESP"},
		{"equal sizes", 512, 512, "must be larger than the ESP"},
		{"root too small", 210, 200, "need at least 16 MiB"},
		{"zero esp", 768, 0, "ESP size must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Boot = Boot{DiskSizeMB: tt.disk, ESPSizeMB: tt.esp}
			_, err := Validate(&cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateGraphicsNeedsOrbital(t *testing.T) {
	cfg := Defaults()
	cfg.Graphics.Enable = true
	_, err := Validate(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orbital")

	cfg.Packages = append(cfg.Packages, "orbital")
	_, err = Validate(&cfg)
	assert.NoError(t, err)
}

func TestValidateStaticNeedsInterface(t *testing.T) {
	cfg := Defaults()
	cfg.Networking.Mode = NetModeStatic
	_, err := Validate(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one interface")

	cfg.Networking.Interfaces = map[string]Interface{
		"eth0": {Address: "10.0.0.2", Netmask: "255.255.255.0", Gateway: "10.0.0.1"},
	}
	_, err = Validate(&cfg)
	assert.NoError(t, err)
}

func TestValidateBadAddresses(t *testing.T) {
	cfg := Defaults()
	cfg.Networking.Mode = NetModeStatic
	cfg.Networking.Interfaces = map[string]Interface{
		"eth0": {Address: "not-an-ip", Gateway: "also-bad"},
	}
	cfg.Networking.DNS = []string{"256.256.256.256"}
	_, err := Validate(&cfg)
	require.Error(t, err)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Len(t, vErr.Problems, 3)
}

func TestValidateUnknownEnums(t *testing.T) {
	cfg := Defaults()
	cfg.Networking.Mode = "token-ring"
	cfg.Services["weird"] = Service{Command: "/bin/x", Type: "forking", WantedBy: "sysvinit"}
	_, err := Validate(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown networking mode "token-ring"`)
	assert.Contains(t, err.Error(), `unknown type "forking"`)
	assert.Contains(t, err.Error(), `unknown wanted_by "sysvinit"`)
}

func TestValidateDuplicateUIDWarns(t *testing.T) {
	cfg := Defaults()
	cfg.Users["alice"] = User{UID: 1000, GID: 1000, Home: "/home/alice", Shell: "/bin/ion"}
	warnings, err := Validate(&cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "share uid 1000")
}

func TestValidateGroupMembers(t *testing.T) {
	cfg := Defaults()
	cfg.Groups["wheel"] = Group{GID: 10, Members: []string{"user", "ghost"}}
	_, err := Validate(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `member "ghost" is not a defined user`)
}

func TestValidateRootMemberAllowed(t *testing.T) {
	cfg := Defaults()
	cfg.Groups["wheel"] = Group{GID: 10, Members: []string{"root"}}
	_, err := Validate(&cfg)
	assert.NoError(t, err)
}

func TestBootEssentialPackages(t *testing.T) {
	assert.True(t, IsBootEssential("init"))
	assert.True(t, IsBootEssential("ion"))
	assert.False(t, IsBootEssential("orbital"))
}
