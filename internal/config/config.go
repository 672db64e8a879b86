// Package config loads and holds the session's settings. It generalizes
// the teacher's single-file YAML Config to the full settings surface named
// in the spec's daemon CLI flags and RPC session-get/session-set.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// EncryptionMode controls whether outgoing/incoming connections require,
// prefer, or tolerate MSE/PE obfuscation.
type EncryptionMode string

const (
	EncryptionRequired  EncryptionMode = "required"
	EncryptionPreferred EncryptionMode = "preferred"
	EncryptionTolerated EncryptionMode = "tolerated"
)

// Config holds every setting the session and daemon consult. Field names
// match the settings.json / RPC session-get vocabulary where practical.
type Config struct {
	ConfigDir     string `yaml:"config_dir"`
	DataDir       string `yaml:"download_dir"`
	IncompleteDir string `yaml:"incomplete_dir"`
	IncompleteDirEnabled bool `yaml:"incomplete_dir_enabled"`

	WatchDir        string `yaml:"watch_dir"`
	WatchDirEnabled bool   `yaml:"watch_dir_enabled"`
	WatchDirForceGeneric bool `yaml:"watch_dir_force_generic"`

	Database string `yaml:"database"`

	PortBegin uint16 `yaml:"peer_port_begin"`
	PortEnd   uint16 `yaml:"peer_port_end"`

	MaxPeerAccept int `yaml:"peer_limit_global"`
	MaxPeerDial   int `yaml:"peer_limit_per_torrent"`
	MaxOpenFiles  int `yaml:"max_open_files"`

	DHTEnabled bool   `yaml:"dht_enabled"`
	DHTAddress string `yaml:"dht_address"`
	DHTPort    uint16 `yaml:"dht_port"`

	LPDEnabled  bool `yaml:"lpd_enabled"`
	UTPEnabled  bool `yaml:"utp_enabled"`
	PEXEnabled  bool `yaml:"pex_enabled"`
	PortForwardingEnabled bool `yaml:"port_forwarding_enabled"`

	Encryption struct {
		Mode            EncryptionMode `yaml:"mode"`
		DisableOutgoing bool           `yaml:"disable_outgoing"`
		ForceOutgoing   bool           `yaml:"force_outgoing"`
		ForceIncoming   bool           `yaml:"force_incoming"`
	} `yaml:"encryption"`

	BindAddressIPv4 string `yaml:"bind_address_ipv4"`
	BindAddressIPv6 string `yaml:"bind_address_ipv6"`

	RPCHost               string        `yaml:"rpc_bind_address"`
	RPCPort               uint16        `yaml:"rpc_port"`
	RPCAuthEnabled        bool          `yaml:"rpc_auth_enabled"`
	RPCUsername           string        `yaml:"rpc_username"`
	RPCPassword           string        `yaml:"rpc_password"`
	RPCWhitelist          []string      `yaml:"rpc_whitelist"`
	RPCWhitelistEnabled   bool          `yaml:"rpc_whitelist_enabled"`
	RPCShutdownTimeout    time.Duration `yaml:"-"`

	SeedRatioLimit  float64 `yaml:"seed_ratio_limit"`
	SeedRatioLimited bool   `yaml:"seed_ratio_limited"`

	SequentialDownload bool `yaml:"sequential_download"`

	BlocklistURL     string `yaml:"blocklist_url"`
	BlocklistEnabled bool   `yaml:"blocklist_enabled"`

	CacheSizeMB int `yaml:"cache_size_mb"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
	PidFile  string `yaml:"pid_file"`
	Foreground bool `yaml:"-"`
	Paused     bool `yaml:"-"`

	UnchokedPeers           int           `yaml:"unchoked_peers"`
	OptimisticUnchokedPeers int           `yaml:"optimistic_unchoked_peers"`
	RequestTimeout          time.Duration `yaml:"-"`
	PieceTimeout            time.Duration `yaml:"-"`
	PeerConnectTimeout      time.Duration `yaml:"-"`
	PeerHandshakeTimeout    time.Duration `yaml:"-"`
	PeerReadBufferSize      int           `yaml:"-"`
	BitfieldWriteInterval   time.Duration `yaml:"-"`

	TrackerHTTPTimeout   time.Duration `yaml:"-"`
	TrackerHTTPUserAgent string        `yaml:"tracker_http_user_agent"`

	ExtensionHandshakeClientVersion string `yaml:"-"`

	PortTestURL    string        `yaml:"port_test_url"`
	PortTestTimeout time.Duration `yaml:"-"`
}

// Default is the baseline configuration applied before a settings file is
// merged on top of it, mirroring the teacher's DefaultConfig.
var Default = Config{
	DataDir:   "~/rain/downloads",
	Database:  "~/rain/rain.db",
	PortBegin: 6881,
	PortEnd:   6889,

	MaxPeerAccept: 200,
	MaxPeerDial:   50,
	MaxOpenFiles:  1024,

	DHTEnabled: true,
	DHTAddress: "0.0.0.0",
	DHTPort:    6881,

	LPDEnabled: true,
	UTPEnabled: true,
	PEXEnabled: true,

	RPCHost:            "127.0.0.1",
	RPCPort:             9091,
	RPCShutdownTimeout:  5 * time.Second,

	CacheSizeMB: 64,

	LogLevel: "info",

	UnchokedPeers:           4,
	OptimisticUnchokedPeers: 1,
	RequestTimeout:          20 * time.Second,
	PieceTimeout:            30 * time.Second,
	PeerConnectTimeout:      5 * time.Second,
	PeerHandshakeTimeout:    10 * time.Second,
	PeerReadBufferSize:      32 * 1024,
	BitfieldWriteInterval:   30 * time.Second,

	TrackerHTTPTimeout:   45 * time.Second,
	TrackerHTTPUserAgent: "Transmission/4.0",

	ExtensionHandshakeClientVersion: "Transmission/4.0",

	PortTestURL:     "https://portcheck.transmissionbt.com/",
	PortTestTimeout: 20 * time.Second,
}

// Load reads a YAML settings file, merging it over Default. A missing
// file is not an error; Default is returned unchanged.
func Load(filename string) (*Config, error) {
	c := Default
	b, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return &c, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Save writes c to filename as YAML, e.g. after --dump-settings or an RPC
// session-set mutation that should persist.
func Save(filename string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, b, 0640)
}
