package rootfs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redoxforge/redoxforge/internal/config"
)

func TestStaticNetworkScriptHasLiterals(t *testing.T) {
	cfg := config.Defaults()
	cfg.Networking.Mode = config.NetModeStatic
	cfg.Networking.Interfaces = map[string]config.Interface{
		"eth0": {Address: "192.168.1.50", Netmask: "255.255.255.0", Gateway: "192.168.1.1"},
	}

	scripts := RenderInitScripts(&cfg)
	net, ok := scripts[ScriptNet]
	require.True(t, ok)
	assert.Contains(t, net, "192.168.1.50")
	assert.Contains(t, net, "route add default 192.168.1.1")
	assert.NotContains(t, net, "dhcpd")
}

func TestDHCPNetworkScript(t *testing.T) {
	cfg := config.Defaults()
	cfg.Networking.Mode = config.NetModeDHCP

	scripts := RenderInitScripts(&cfg)
	require.Contains(t, scripts, ScriptNet)
	assert.Contains(t, scripts[ScriptNet], "dhcpd -b &")
}

func TestNoNetworkScriptWhenDisabled(t *testing.T) {
	for _, tc := range []struct {
		name string
		mut  func(*config.Config)
	}{
		{"mode none", func(c *config.Config) { c.Networking.Mode = config.NetModeNone }},
		{"stack disabled", func(c *config.Config) { c.Networking.Enable = false }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Defaults()
			tc.mut(&cfg)
			scripts := RenderInitScripts(&cfg)
			assert.NotContains(t, scripts, ScriptNet)
		})
	}
}

func TestServiceInitLines(t *testing.T) {
	tests := []struct {
		name string
		svc  config.Service
		want string
	}{
		{
			name: "migrate",
			svc:  config.Service{Command: "/bin/migrate", Type: config.ServiceOneshot},
			want: "/bin/migrate\n",
		},
		{
			name: "sshd",
			svc:  config.Service{Command: "/bin/sshd", Type: config.ServiceDaemon, Args: []string{"-p", "22"}},
			want: "/bin/sshd -p 22 &\n",
		},
		{
			name: "spawner",
			svc:  config.Service{Command: "/bin/spawner", Type: config.ServiceNowait},
			want: "/bin/spawner &\n",
		},
		{
			name: "ptyd",
			svc:  config.Service{Command: "/bin/ptyd", Type: config.ServiceScheme},
			want: "/bin/ptyd &\nwaitfor /scheme/ptyd\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ServiceInitLine(tt.name, tt.svc))
		})
	}
}

func TestServicesScriptFiltersDisabledAndInitfs(t *testing.T) {
	cfg := config.Defaults()
	cfg.Services = map[string]config.Service{
		"sshd":  {Command: "/bin/sshd", Type: config.ServiceDaemon, WantedBy: config.WantedByRootfs, Enable: true},
		"off":   {Command: "/bin/off", Type: config.ServiceDaemon, WantedBy: config.WantedByRootfs, Enable: false},
		"early": {Command: "/bin/early", Type: config.ServiceOneshot, WantedBy: config.WantedByInitfs, Enable: true},
	}

	scripts := RenderInitScripts(&cfg)
	require.Contains(t, scripts, ScriptServices)
	assert.Contains(t, scripts[ScriptServices], "/bin/sshd")
	assert.NotContains(t, scripts[ScriptServices], "/bin/off")
	assert.NotContains(t, scripts[ScriptServices], "/bin/early")
}

func TestGraphicsScriptOnlyWhenEnabled(t *testing.T) {
	cfg := config.Defaults()
	assert.NotContains(t, RenderInitScripts(&cfg), ScriptGraphics)

	cfg.Graphics.Enable = true
	cfg.Graphics.Resolution = "1920x1080"
	cfg.Hardware.GraphicsDrivers = []string{"vesad"}
	scripts := RenderInitScripts(&cfg)
	require.Contains(t, scripts, ScriptGraphics)
	assert.Contains(t, scripts[ScriptGraphics], "vesad &")
	assert.Contains(t, scripts[ScriptGraphics], "orbital --resolution 1920x1080 &")
}

func TestStartupScript(t *testing.T) {
	cfg := config.Defaults()
	out := RenderStartupScript(&cfg)
	assert.True(t, strings.HasPrefix(out, "@echo -off\n"))
	assert.Contains(t, out, "BOOTX64.EFI")
}
