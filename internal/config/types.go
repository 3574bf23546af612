package config

// Service types understood by the init-script renderer.
const (
	ServiceOneshot = "oneshot"
	ServiceDaemon  = "daemon"
	ServiceNowait  = "nowait"
	ServiceScheme  = "scheme"
)

// Targets a service can be wanted by.
const (
	WantedByInitfs = "initfs"
	WantedByRootfs = "rootfs"
)

// Networking modes.
const (
	NetModeAuto   = "auto"
	NetModeDHCP   = "dhcp"
	NetModeStatic = "static"
	NetModeNone   = "none"
)

type System struct {
	Hostname string `json:"hostname"`
	Timezone string `json:"timezone"`
	Profile  string `json:"profile"`
	Version  string `json:"redoxSystemVersion"`
	Target   string `json:"target"`
}

type Boot struct {
	DiskSizeMB int `json:"diskSizeMB"`
	ESPSizeMB  int `json:"espSizeMB"`
}

type Hardware struct {
	StorageDrivers  []string `json:"storageDrivers"`
	NetworkDrivers  []string `json:"networkDrivers"`
	GraphicsDrivers []string `json:"graphicsDrivers"`
	AudioDrivers    []string `json:"audioDrivers"`
	USBEnabled      bool     `json:"usbEnabled"`
}

// Interface is a static network configuration for one named interface.
type Interface struct {
	Address string `json:"address"`
	Netmask string `json:"netmask"`
	Gateway string `json:"gateway"`
}

type Networking struct {
	Enable     bool                 `json:"enabled"`
	Mode       string               `json:"mode"`
	DNS        []string             `json:"dns"`
	Interfaces map[string]Interface `json:"interfaces,omitempty"`
}

type Graphics struct {
	Enable     bool   `json:"enabled"`
	Resolution string `json:"resolution"`
}

type Security struct {
	ProtectKernelSchemes bool `json:"protectKernelSchemes"`
	RequirePasswords     bool `json:"requirePasswords"`
	AllowRemoteRoot      bool `json:"allowRemoteRoot"`
}

type Logging struct {
	Level        string `json:"logLevel"`
	KernelLevel  string `json:"kernelLogLevel"`
	LogToFile    bool   `json:"logToFile"`
	MaxLogSizeMB int    `json:"maxLogSizeMB"`
}

type Power struct {
	ACPIEnabled   bool   `json:"acpiEnabled"`
	PowerAction   string `json:"powerAction"`
	RebootOnPanic bool   `json:"rebootOnPanic"`
}

type Programs struct {
	Editor string `json:"editor,omitempty"`
}

// User is rendered into a semicolon-delimited passwd line. Realname defaults
// to the user name when empty.
type User struct {
	UID        int    `json:"uid"`
	GID        int    `json:"gid"`
	Home       string `json:"home"`
	Shell      string `json:"shell"`
	Password   string `json:"password,omitempty"`
	Realname   string `json:"realname,omitempty"`
	CreateHome bool   `json:"createHome,omitempty"`
}

type Group struct {
	GID     int      `json:"gid"`
	Members []string `json:"members"`
}

// Service is a tagged variant; Type selects how the init line is rendered and
// WantedBy selects which image (initfs or rootfs) carries it.
type Service struct {
	Description string   `json:"description,omitempty"`
	Command     string   `json:"command"`
	Type        string   `json:"type"`
	Args        []string `json:"args,omitempty"`
	WantedBy    string   `json:"wantedBy"`
	Enable      bool     `json:"enable"`
}

// Config is the fully merged system configuration: the result of applying the
// profile, the user's system.hcl, and any command-line overrides on top of the
// built-in defaults.
type Config struct {
	System     System             `json:"system"`
	Boot       Boot               `json:"boot"`
	Hardware   Hardware           `json:"hardware"`
	Networking Networking         `json:"networking"`
	Graphics   Graphics           `json:"graphics"`
	Security   Security           `json:"security"`
	Logging    Logging            `json:"logging"`
	Power      Power              `json:"power"`
	Programs   Programs           `json:"programs"`
	Packages   []string           `json:"packages"`
	Users      map[string]User    `json:"users"`
	Groups     map[string]Group   `json:"groups"`
	Services   map[string]Service `json:"services"`
}
