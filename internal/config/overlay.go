package config

import (
	"fmt"
	"sort"
	"strings"
)

// Overlay is a partial configuration: only fields that are present override
// the value underneath. It is the decoded form of a system.hcl file, of a
// plain JSON configuration document, and of a bridge request's config object.
type Overlay struct {
	Hostname *string   `hcl:"hostname,optional" json:"hostname,omitempty"`
	Timezone *string   `hcl:"timezone,optional" json:"timezone,omitempty"`
	Packages *[]string `hcl:"packages,optional" json:"packages,omitempty"`

	Boot       *BootOverlay       `hcl:"boot,block" json:"boot,omitempty"`
	Hardware   *HardwareOverlay   `hcl:"hardware,block" json:"hardware,omitempty"`
	Networking *NetworkingOverlay `hcl:"networking,block" json:"networking,omitempty"`
	Graphics   *GraphicsOverlay   `hcl:"graphics,block" json:"graphics,omitempty"`
	Security   *SecurityOverlay   `hcl:"security,block" json:"security,omitempty"`
	Logging    *LoggingOverlay    `hcl:"logging,block" json:"logging,omitempty"`
	Power      *PowerOverlay      `hcl:"power,block" json:"power,omitempty"`
	Programs   *ProgramsOverlay   `hcl:"programs,block" json:"programs,omitempty"`

	// Canonical maps, filled either directly from JSON or from the HCL
	// blocks below via normalize.
	Users    map[string]User    `json:"users,omitempty"`
	Groups   map[string]Group   `json:"groups,omitempty"`
	Services map[string]Service `json:"services,omitempty"`

	UserBlocks    []UserBlock    `hcl:"user,block" json:"-"`
	GroupBlocks   []GroupBlock   `hcl:"group,block" json:"-"`
	ServiceBlocks []ServiceBlock `hcl:"service,block" json:"-"`
}

type BootOverlay struct {
	DiskSizeMB *int `hcl:"disk_size_mb,optional" json:"diskSizeMB,omitempty"`
	ESPSizeMB  *int `hcl:"esp_size_mb,optional" json:"espSizeMB,omitempty"`
}

type HardwareOverlay struct {
	StorageDrivers  *[]string `hcl:"storage_drivers,optional" json:"storageDrivers,omitempty"`
	NetworkDrivers  *[]string `hcl:"network_drivers,optional" json:"networkDrivers,omitempty"`
	GraphicsDrivers *[]string `hcl:"graphics_drivers,optional" json:"graphicsDrivers,omitempty"`
	AudioDrivers    *[]string `hcl:"audio_drivers,optional" json:"audioDrivers,omitempty"`
	USBEnabled      *bool     `hcl:"usb_enabled,optional" json:"usbEnabled,omitempty"`
}

type NetworkingOverlay struct {
	Enable *bool     `hcl:"enable,optional" json:"enable,omitempty"`
	Mode   *string   `hcl:"mode,optional" json:"mode,omitempty"`
	DNS    *[]string `hcl:"dns,optional" json:"dns,omitempty"`

	Interfaces      map[string]Interface `json:"interfaces,omitempty"`
	InterfaceBlocks []InterfaceBlock     `hcl:"interface,block" json:"-"`
}

type GraphicsOverlay struct {
	Enable     *bool   `hcl:"enable,optional" json:"enable,omitempty"`
	Resolution *string `hcl:"resolution,optional" json:"resolution,omitempty"`
}

type SecurityOverlay struct {
	ProtectKernelSchemes *bool `hcl:"protect_kernel_schemes,optional" json:"protectKernelSchemes,omitempty"`
	RequirePasswords     *bool `hcl:"require_passwords,optional" json:"requirePasswords,omitempty"`
	AllowRemoteRoot      *bool `hcl:"allow_remote_root,optional" json:"allowRemoteRoot,omitempty"`
}

type LoggingOverlay struct {
	Level        *string `hcl:"level,optional" json:"level,omitempty"`
	KernelLevel  *string `hcl:"kernel_level,optional" json:"kernelLevel,omitempty"`
	LogToFile    *bool   `hcl:"log_to_file,optional" json:"logToFile,omitempty"`
	MaxLogSizeMB *int    `hcl:"max_log_size_mb,optional" json:"maxLogSizeMB,omitempty"`
}

type PowerOverlay struct {
	ACPIEnabled   *bool   `hcl:"acpi_enabled,optional" json:"acpiEnabled,omitempty"`
	PowerAction   *string `hcl:"power_action,optional" json:"powerAction,omitempty"`
	RebootOnPanic *bool   `hcl:"reboot_on_panic,optional" json:"rebootOnPanic,omitempty"`
}

type ProgramsOverlay struct {
	Editor *string `hcl:"editor,optional" json:"editor,omitempty"`
}

type InterfaceBlock struct {
	Name    string  `hcl:"name,label"`
	Address string  `hcl:"address"`
	Netmask *string `hcl:"netmask,optional"`
	Gateway *string `hcl:"gateway,optional"`
}

type UserBlock struct {
	Name       string  `hcl:"name,label"`
	UID        int     `hcl:"uid"`
	GID        int     `hcl:"gid"`
	Home       string  `hcl:"home"`
	Shell      *string `hcl:"shell,optional"`
	Password   *string `hcl:"password,optional"`
	Realname   *string `hcl:"realname,optional"`
	CreateHome *bool   `hcl:"create_home,optional"`
}

type GroupBlock struct {
	Name    string    `hcl:"name,label"`
	GID     int       `hcl:"gid"`
	Members *[]string `hcl:"members,optional"`
}

type ServiceBlock struct {
	Name        string    `hcl:"name,label"`
	Description *string   `hcl:"description,optional"`
	Command     string    `hcl:"command"`
	Type        *string   `hcl:"type,optional"`
	Args        *[]string `hcl:"args,optional"`
	WantedBy    *string   `hcl:"wanted_by,optional"`
	Enable      *bool     `hcl:"enable,optional"`
}

// normalize folds the HCL block lists into the canonical maps. Duplicate
// labels are an error; the maps win if both forms are somehow present.
func (o *Overlay) normalize() error {
	if len(o.UserBlocks) > 0 {
		if o.Users == nil {
			o.Users = make(map[string]User, len(o.UserBlocks))
		}
		for _, ub := range o.UserBlocks {
			if _, dup := o.Users[ub.Name]; dup {
				return fmt.Errorf("duplicate user %q", ub.Name)
			}
			u := User{UID: ub.UID, GID: ub.GID, Home: ub.Home, Shell: "/bin/ion", CreateHome: true}
			if ub.Shell != nil {
				u.Shell = *ub.Shell
			}
			if ub.Password != nil {
				u.Password = *ub.Password
			}
			if ub.Realname != nil {
				u.Realname = *ub.Realname
			}
			if ub.CreateHome != nil {
				u.CreateHome = *ub.CreateHome
			}
			o.Users[ub.Name] = u
		}
		o.UserBlocks = nil
	}

	if len(o.GroupBlocks) > 0 {
		if o.Groups == nil {
			o.Groups = make(map[string]Group, len(o.GroupBlocks))
		}
		for _, gb := range o.GroupBlocks {
			if _, dup := o.Groups[gb.Name]; dup {
				return fmt.Errorf("duplicate group %q", gb.Name)
			}
			g := Group{GID: gb.GID}
			if gb.Members != nil {
				g.Members = *gb.Members
			}
			o.Groups[gb.Name] = g
		}
		o.GroupBlocks = nil
	}

	if len(o.ServiceBlocks) > 0 {
		if o.Services == nil {
			o.Services = make(map[string]Service, len(o.ServiceBlocks))
		}
		for _, sb := range o.ServiceBlocks {
			if _, dup := o.Services[sb.Name]; dup {
				return fmt.Errorf("duplicate service %q", sb.Name)
			}
			s := Service{Command: sb.Command, Type: ServiceDaemon, WantedBy: WantedByRootfs, Enable: true}
			if sb.Description != nil {
				s.Description = *sb.Description
			}
			if sb.Type != nil {
				s.Type = *sb.Type
			}
			if sb.Args != nil {
				s.Args = *sb.Args
			}
			if sb.WantedBy != nil {
				s.WantedBy = *sb.WantedBy
			}
			if sb.Enable != nil {
				s.Enable = *sb.Enable
			}
			o.Services[sb.Name] = s
		}
		o.ServiceBlocks = nil
	}

	if o.Networking != nil && len(o.Networking.InterfaceBlocks) > 0 {
		if o.Networking.Interfaces == nil {
			o.Networking.Interfaces = make(map[string]Interface, len(o.Networking.InterfaceBlocks))
		}
		for _, ib := range o.Networking.InterfaceBlocks {
			if _, dup := o.Networking.Interfaces[ib.Name]; dup {
				return fmt.Errorf("duplicate interface %q", ib.Name)
			}
			iface := Interface{Address: ib.Address, Netmask: "255.255.255.0"}
			if ib.Netmask != nil {
				iface.Netmask = *ib.Netmask
			}
			if ib.Gateway != nil {
				iface.Gateway = *ib.Gateway
			}
			o.Networking.Interfaces[ib.Name] = iface
		}
		o.Networking.InterfaceBlocks = nil
	}

	return nil
}

// Apply merges the overlay into cfg. Only fields present in the overlay
// change anything; user and group maps replace wholesale, services merge
// by name. When users are replaced without an explicit group set, one group
// per user is derived.
func (o *Overlay) Apply(cfg *Config) {
	if o.Hostname != nil {
		cfg.System.Hostname = *o.Hostname
	}
	if o.Timezone != nil {
		cfg.System.Timezone = *o.Timezone
	}
	if o.Packages != nil {
		cfg.Packages = append([]string(nil), (*o.Packages)...)
	}

	if o.Boot != nil {
		if o.Boot.DiskSizeMB != nil {
			cfg.Boot.DiskSizeMB = *o.Boot.DiskSizeMB
		}
		if o.Boot.ESPSizeMB != nil {
			cfg.Boot.ESPSizeMB = *o.Boot.ESPSizeMB
		}
	}

	if o.Hardware != nil {
		if o.Hardware.StorageDrivers != nil {
			cfg.Hardware.StorageDrivers = *o.Hardware.StorageDrivers
		}
		if o.Hardware.NetworkDrivers != nil {
			cfg.Hardware.NetworkDrivers = *o.Hardware.NetworkDrivers
		}
		if o.Hardware.GraphicsDrivers != nil {
			cfg.Hardware.GraphicsDrivers = *o.Hardware.GraphicsDrivers
		}
		if o.Hardware.AudioDrivers != nil {
			cfg.Hardware.AudioDrivers = *o.Hardware.AudioDrivers
		}
		if o.Hardware.USBEnabled != nil {
			cfg.Hardware.USBEnabled = *o.Hardware.USBEnabled
		}
	}

	if o.Networking != nil {
		if o.Networking.Enable != nil {
			cfg.Networking.Enable = *o.Networking.Enable
		}
		if o.Networking.Mode != nil {
			cfg.Networking.Mode = *o.Networking.Mode
		}
		if o.Networking.DNS != nil {
			cfg.Networking.DNS = *o.Networking.DNS
		}
		if o.Networking.Interfaces != nil {
			cfg.Networking.Interfaces = o.Networking.Interfaces
		}
	}

	if o.Graphics != nil {
		if o.Graphics.Enable != nil {
			cfg.Graphics.Enable = *o.Graphics.Enable
		}
		if o.Graphics.Resolution != nil {
			cfg.Graphics.Resolution = *o.Graphics.Resolution
		}
	}

	if o.Security != nil {
		if o.Security.ProtectKernelSchemes != nil {
			cfg.Security.ProtectKernelSchemes = *o.Security.ProtectKernelSchemes
		}
		if o.Security.RequirePasswords != nil {
			cfg.Security.RequirePasswords = *o.Security.RequirePasswords
		}
		if o.Security.AllowRemoteRoot != nil {
			cfg.Security.AllowRemoteRoot = *o.Security.AllowRemoteRoot
		}
	}

	if o.Logging != nil {
		if o.Logging.Level != nil {
			cfg.Logging.Level = *o.Logging.Level
		}
		if o.Logging.KernelLevel != nil {
			cfg.Logging.KernelLevel = *o.Logging.KernelLevel
		}
		if o.Logging.LogToFile != nil {
			cfg.Logging.LogToFile = *o.Logging.LogToFile
		}
		if o.Logging.MaxLogSizeMB != nil {
			cfg.Logging.MaxLogSizeMB = *o.Logging.MaxLogSizeMB
		}
	}

	if o.Power != nil {
		if o.Power.ACPIEnabled != nil {
			cfg.Power.ACPIEnabled = *o.Power.ACPIEnabled
		}
		if o.Power.PowerAction != nil {
			cfg.Power.PowerAction = *o.Power.PowerAction
		}
		if o.Power.RebootOnPanic != nil {
			cfg.Power.RebootOnPanic = *o.Power.RebootOnPanic
		}
	}

	if o.Programs != nil && o.Programs.Editor != nil {
		cfg.Programs.Editor = *o.Programs.Editor
	}

	if o.Users != nil {
		cfg.Users = o.Users
		if o.Groups == nil {
			cfg.Groups = deriveGroups(o.Users)
		}
	}
	if o.Groups != nil {
		cfg.Groups = o.Groups
	}

	if o.Services != nil {
		if cfg.Services == nil {
			cfg.Services = make(map[string]Service, len(o.Services))
		}
		for name, svc := range o.Services {
			cfg.Services[name] = svc
		}
	}
}

// deriveGroups builds one group per user, with the user as its sole member.
func deriveGroups(users map[string]User) map[string]Group {
	groups := make(map[string]Group, len(users))
	for name, u := range users {
		groups[name] = Group{GID: u.GID, Members: []string{name}}
	}
	return groups
}

// UserNames returns the overlay's user names in sorted order.
func (o *Overlay) UserNames() []string {
	names := make([]string, 0, len(o.Users))
	for name := range o.Users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summary describes the overlay in one line, for dry runs and logs.
func (o *Overlay) Summary() string {
	var parts []string
	if o.Hostname != nil {
		parts = append(parts, fmt.Sprintf("hostname=%s", *o.Hostname))
	}
	if o.Packages != nil {
		parts = append(parts, fmt.Sprintf("packages=%v", *o.Packages))
	}
	if o.Networking != nil && o.Networking.Mode != nil {
		parts = append(parts, fmt.Sprintf("networking.mode=%s", *o.Networking.Mode))
	}
	if len(o.Users) > 0 {
		parts = append(parts, fmt.Sprintf("users=%v", o.UserNames()))
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, ", ")
}
