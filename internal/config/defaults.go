package config

// Version is the tool version stamped into manifests.
const Version = "0.5.0"

// DefaultTarget is the build target triple.
const DefaultTarget = "x86_64-unknown-redox"

// BootEssentialPackages are never removed from a system, no matter what the
// configuration says. Dropping any of these produces an unbootable image.
var BootEssentialPackages = []string{
	"base",
	"redox-base",
	"init",
	"ion",
	"ion-shell",
	"logd",
	"ramfs",
	"zerod",
	"nulld",
	"randd",
	"uutils",
	"redoxforge",
}

// IsBootEssential reports whether pkg must survive every package replacement.
func IsBootEssential(pkg string) bool {
	for _, p := range BootEssentialPackages {
		if p == pkg {
			return true
		}
	}
	return false
}

// Defaults returns the built-in base configuration, the bottom layer of every
// merge. Profiles and user configuration apply on top of this.
func Defaults() Config {
	return Config{
		System: System{
			Hostname: "redox",
			Timezone: "UTC",
			Profile:  "minimal",
			Version:  Version,
			Target:   DefaultTarget,
		},
		Boot: Boot{
			DiskSizeMB: 768,
			ESPSizeMB:  200,
		},
		Hardware: Hardware{
			StorageDrivers: []string{"virtio-blkd", "ahcid", "nvmed"},
			NetworkDrivers: []string{"virtio-netd", "e1000d"},
			USBEnabled:     false,
		},
		Networking: Networking{
			Enable: true,
			Mode:   NetModeAuto,
			DNS:    []string{"8.8.8.8", "8.8.4.4"},
		},
		Graphics: Graphics{
			Enable:     false,
			Resolution: "1024x768",
		},
		Security: Security{
			ProtectKernelSchemes: true,
			RequirePasswords:     false,
			AllowRemoteRoot:      false,
		},
		Logging: Logging{
			Level:        "info",
			KernelLevel:  "warn",
			LogToFile:    true,
			MaxLogSizeMB: 16,
		},
		Power: Power{
			ACPIEnabled:   true,
			PowerAction:   "poweroff",
			RebootOnPanic: false,
		},
		Programs: Programs{},
		Packages: []string{
			"base", "redox-base", "init", "ion", "ion-shell", "logd",
			"ramfs", "zerod", "nulld", "randd", "uutils",
		},
		Users: map[string]User{
			"user": {UID: 1000, GID: 1000, Home: "/home/user", Shell: "/bin/ion", CreateHome: true},
		},
		Groups: map[string]Group{
			"user": {GID: 1000, Members: []string{"user"}},
		},
		Services: map[string]Service{},
	}
}

// profiles are overlays applied between the defaults and the user's file.
var profiles = map[string]*Overlay{
	"minimal": {},
	"server": {
		Packages: &[]string{
			"base", "redox-base", "init", "ion", "ion-shell", "logd",
			"ramfs", "zerod", "nulld", "randd", "uutils",
			"netutils", "smolnetd", "dnsd",
		},
		Networking: &NetworkingOverlay{
			Enable: boolPtr(true),
			Mode:   strPtr(NetModeDHCP),
		},
		Security: &SecurityOverlay{
			RequirePasswords: boolPtr(true),
		},
	},
	"desktop": {
		Packages: &[]string{
			"base", "redox-base", "init", "ion", "ion-shell", "logd",
			"ramfs", "zerod", "nulld", "randd", "uutils",
			"netutils", "smolnetd", "dnsd",
			"orbital", "orbterm", "orbutils",
		},
		Boot: &BootOverlay{
			DiskSizeMB: intPtr(2048),
			ESPSizeMB:  intPtr(256),
		},
		Hardware: &HardwareOverlay{
			GraphicsDrivers: listPtr("vesad", "virtio-gpud"),
			AudioDrivers:    listPtr("ac97d", "ihdad"),
			USBEnabled:      boolPtr(true),
		},
		Networking: &NetworkingOverlay{
			Enable: boolPtr(true),
			Mode:   strPtr(NetModeDHCP),
		},
		Graphics: &GraphicsOverlay{
			Enable: boolPtr(true),
		},
	},
}

// ProfileNames lists the built-in profiles.
func ProfileNames() []string {
	return []string{"desktop", "minimal", "server"}
}

// Profile returns the overlay for a named profile, or an error naming the
// valid choices.
func Profile(name string) (*Overlay, error) {
	p, ok := profiles[name]
	if !ok {
		return nil, &UnknownProfileError{Name: name}
	}
	return p, nil
}

func strPtr(s string) *string       { return &s }
func intPtr(n int) *int             { return &n }
func boolPtr(b bool) *bool          { return &b }
func listPtr(v ...string) *[]string { return &v }
