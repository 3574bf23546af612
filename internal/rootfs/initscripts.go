package rootfs

import (
	"fmt"
	"strings"

	"github.com/redoxforge/redoxforge/internal/config"
)

// Init script names, ordered by their numeric prefix.
const (
	ScriptBase     = "00_base"
	ScriptNet      = "10_net"
	ScriptServices = "20_services"
	ScriptGraphics = "30_graphics"
)

// RenderInitScripts produces the /etc/init.d scripts for the configuration,
// keyed by script name. Scripts that would be empty are omitted entirely:
// no network script when networking is off, no graphics script without
// graphics.
func RenderInitScripts(cfg *config.Config) map[string]string {
	scripts := map[string]string{
		ScriptBase: renderBaseScript(cfg),
	}
	if net := renderNetScript(cfg); net != "" {
		scripts[ScriptNet] = net
	}
	if svc := renderServicesScript(cfg); svc != "" {
		scripts[ScriptServices] = svc
	}
	if cfg.Graphics.Enable {
		scripts[ScriptGraphics] = renderGraphicsScript(cfg)
	}
	return scripts
}

func renderBaseScript(cfg *config.Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s base initialization\n", cfg.System.Hostname)
	b.WriteString("export PATH /bin\n")
	b.WriteString("export TMPDIR /tmp\n")
	fmt.Fprintf(&b, "logd --level %s\n", cfg.Logging.Level)
	if cfg.Logging.LogToFile {
		fmt.Fprintf(&b, "logd --rotate-mb %d\n", cfg.Logging.MaxLogSizeMB)
	}
	return b.String()
}

// renderNetScript emits the network bring-up. Static mode writes the
// configured address and gateway literally so the values survive into the
// image; dhcp and auto launch the client daemon instead. Mode none or a
// disabled stack yields no script at all.
func renderNetScript(cfg *config.Config) string {
	if !cfg.Networking.Enable || cfg.Networking.Mode == config.NetModeNone {
		return ""
	}

	var b strings.Builder
	b.WriteString("smolnetd &\n")
	b.WriteString("dnsd &\n")

	switch cfg.Networking.Mode {
	case config.NetModeStatic:
		for _, name := range sortedKeys(cfg.Networking.Interfaces) {
			iface := cfg.Networking.Interfaces[name]
			fmt.Fprintf(&b, "ifconfig %s %s netmask %s\n", name, iface.Address, iface.Netmask)
			if iface.Gateway != "" {
				fmt.Fprintf(&b, "route add default %s\n", iface.Gateway)
			}
		}
	case config.NetModeDHCP, config.NetModeAuto:
		b.WriteString("dhcpd -b &\n")
	}
	return b.String()
}

// renderServicesScript emits one line per enabled rootfs service, sorted by
// name. The line shape depends on the service type: oneshot runs in the
// foreground, daemon and nowait run in the background, scheme additionally
// waits for the service's scheme to appear before continuing.
func renderServicesScript(cfg *config.Config) string {
	var b strings.Builder
	for _, name := range sortedKeys(cfg.Services) {
		svc := cfg.Services[name]
		if !svc.Enable || svc.WantedBy != config.WantedByRootfs {
			continue
		}
		b.WriteString(ServiceInitLine(name, svc))
	}
	return b.String()
}

// ServiceInitLine renders one service invocation for an init script.
func ServiceInitLine(name string, svc config.Service) string {
	cmd := svc.Command
	if len(svc.Args) > 0 {
		cmd += " " + strings.Join(svc.Args, " ")
	}
	switch svc.Type {
	case config.ServiceOneshot:
		return cmd + "\n"
	case config.ServiceScheme:
		return cmd + " &\n" + "waitfor /scheme/" + name + "\n"
	default: // daemon, nowait
		return cmd + " &\n"
	}
}

func renderGraphicsScript(cfg *config.Config) string {
	var b strings.Builder
	for _, drv := range cfg.Hardware.GraphicsDrivers {
		fmt.Fprintf(&b, "%s &\n", drv)
	}
	fmt.Fprintf(&b, "orbital --resolution %s &\n", cfg.Graphics.Resolution)
	return b.String()
}

// RenderStartupScript produces the UEFI shell script placed on the ESP.
func RenderStartupScript(cfg *config.Config) string {
	var b strings.Builder
	b.WriteString("@echo -off\n")
	fmt.Fprintf(&b, "echo Booting %s\n", cfg.System.Hostname)
	b.WriteString("fs0:\\EFI\\BOOT\\BOOTX64.EFI\n")
	return b.String()
}
