// Command transmission-daemon runs the headless BitTorrent engine: it
// loads settings, opens the resume database, starts the session's
// ambient services, and serves the RPC surface over HTTP until signaled
// to stop.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	homedir "github.com/mitchellh/go-homedir"

	"github.com/tearfur/transmission/internal/config"
	"github.com/tearfur/transmission/internal/logger"
	"github.com/tearfur/transmission/internal/rpc/httpd"
	"github.com/tearfur/transmission/session"
)

const appVersion = "transmission-daemon 4.0.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	app := kingpin.New("transmission-daemon", "Headless BitTorrent client with a JSON-RPC control surface.")
	app.Version(appVersion)
	app.HelpFlag.Short('h')

	configDir := app.Flag("config-dir", "Where to find settings.yml").Short('g').String()
	downloadDir := app.Flag("download-dir", "Where to save downloaded data").Short('w').String()
	incompleteDir := app.Flag("incomplete-dir", "Where to store incomplete downloads").String()
	incompleteDirEnabled := app.Flag("incomplete-dir-enabled", "Use the incomplete-dir for in-progress files").Bool()
	watchDir := app.Flag("watch-dir", "Watch a directory for .torrent/.magnet files").String()
	watchDirEnabled := app.Flag("watch-dir-enabled", "Enable the watch directory").Bool()
	watchDirForceGeneric := app.Flag("watch-dir-force-generic", "Recorded in the settings; the watch directory always uses fsnotify").Bool()

	rpcBindAddress := app.Flag("rpc-bind-address", "Where to listen for RPC requests").String()
	rpcPort := app.Flag("rpc-port", "Port to listen for RPC requests").Short('p').Uint16()
	rpcAuthEnabled := app.Flag("rpc-auth-enabled", "Require authentication on RPC requests").Bool()
	rpcUsername := app.Flag("rpc-username", "RPC basic-auth username").String()
	rpcPassword := app.Flag("rpc-password", "RPC basic-auth password").String()
	rpcWhitelist := app.Flag("rpc-whitelist", "Comma-separated list of IP addresses allowed to use RPC").String()
	rpcWhitelistEnabled := app.Flag("rpc-whitelist-enabled", "Enable the RPC whitelist").Bool()

	peerPort := app.Flag("peer-port", "Port to listen for incoming peer connections").Short('P').Uint16()
	peerLimitGlobal := app.Flag("peer-limit-global", "Maximum number of peers across all torrents").Int()
	peerLimitPerTorrent := app.Flag("peer-limit-per-torrent", "Maximum number of peers per torrent").Int()

	dhtEnabled := app.Flag("dht-enabled", "Enable DHT peer discovery").Bool()
	lpdEnabled := app.Flag("lpd-enabled", "Enable local peer discovery").Bool()
	utpEnabled := app.Flag("utp-enabled", "Enable the µTP peer transport").Bool()
	portForwardingEnabled := app.Flag("port-forwarding-enabled", "Enable NAT-PMP/UPnP port forwarding").Bool()

	encryption := app.Flag("encryption", "Peer encryption mode: required, preferred, tolerated").
		Enum("required", "preferred", "tolerated")

	bindAddressIPv4 := app.Flag("bind-address-ipv4", "Local IPv4 address to bind to").String()
	bindAddressIPv6 := app.Flag("bind-address-ipv6", "Local IPv6 address to bind to").String()

	seedRatioLimit := app.Flag("global-seed-ratio", "Stop seeding a torrent once its ratio reaches this").Float64()
	sequentialDownload := app.Flag("sequential-download", "Download pieces in sequential order by default").Bool()

	logLevel := app.Flag("log-level", "debug, info, warn, or error").String()
	logFile := app.Flag("log-file", "Write log output to this file instead of stderr").String()
	pidFile := app.Flag("pid-file", "Write the daemon's pid to this file").String()
	foreground := app.Flag("foreground", "Recorded in the settings; the daemon always runs in the foreground").Bool()
	dumpSettings := app.Flag("dump-settings", "Write the effective settings to settings.yml in the config dir and exit").Bool()
	paused := app.Flag("paused", "Start with all torrents paused").Bool()

	if _, err := app.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	cfg, err := loadConfig(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "transmission-daemon:", err)
		return 1
	}
	applyFlags(cfg, flagOverrides{
		configDir:             configDir,
		downloadDir:           downloadDir,
		incompleteDir:         incompleteDir,
		incompleteDirEnabled:  incompleteDirEnabled,
		watchDir:              watchDir,
		watchDirEnabled:       watchDirEnabled,
		watchDirForceGeneric:  watchDirForceGeneric,
		rpcBindAddress:        rpcBindAddress,
		rpcPort:               rpcPort,
		rpcAuthEnabled:        rpcAuthEnabled,
		rpcUsername:           rpcUsername,
		rpcPassword:           rpcPassword,
		rpcWhitelist:          rpcWhitelist,
		rpcWhitelistEnabled:   rpcWhitelistEnabled,
		peerPort:              peerPort,
		peerLimitGlobal:       peerLimitGlobal,
		peerLimitPerTorrent:   peerLimitPerTorrent,
		dhtEnabled:            dhtEnabled,
		lpdEnabled:            lpdEnabled,
		utpEnabled:            utpEnabled,
		portForwardingEnabled: portForwardingEnabled,
		encryption:            encryption,
		bindAddressIPv4:       bindAddressIPv4,
		bindAddressIPv6:       bindAddressIPv6,
		seedRatioLimit:        seedRatioLimit,
		sequentialDownload:    sequentialDownload,
		logLevel:              logLevel,
		logFile:               logFile,
		pidFile:               pidFile,
		foreground:            foreground,
		paused:                paused,
	})

	if *dumpSettings {
		if err := os.MkdirAll(cfg.ConfigDir, 0o750); err != nil {
			fmt.Fprintln(os.Stderr, "transmission-daemon:", err)
			return 1
		}
		settingsFile := settingsPath(cfg.ConfigDir)
		if err := config.Save(settingsFile, cfg); err != nil {
			fmt.Fprintln(os.Stderr, "transmission-daemon:", err)
			return 1
		}
		fmt.Println("wrote", settingsFile)
		return 0
	}

	if cfg.LogLevel != "" {
		if err := logger.SetLevel(cfg.LogLevel); err != nil {
			fmt.Fprintln(os.Stderr, "transmission-daemon: invalid log level:", err)
			return 1
		}
	}
	if cfg.LogFile != "" {
		if err := logger.SetOutputFile(cfg.LogFile); err != nil {
			fmt.Fprintln(os.Stderr, "transmission-daemon: cannot open log file:", err)
			return 1
		}
	}
	defer logger.Sync()

	if cfg.PidFile != "" {
		if err := os.WriteFile(cfg.PidFile, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, "transmission-daemon: cannot write pid file:", err)
			return 1
		}
		defer os.Remove(cfg.PidFile)
	}

	l := logger.New("daemon")
	s, err := session.New(cfg)
	if err != nil {
		l.Errorln("cannot start session:", err)
		return 1
	}
	defer s.Close()

	addr := net.JoinHostPort(cfg.RPCHost, strconv.Itoa(int(cfg.RPCPort)))
	server := &http.Server{
		Addr:    addr,
		Handler: httpd.New(s, logger.New("rpcd")),
	}
	serveErrC := make(chan error, 1)
	go func() { serveErrC <- server.ListenAndServe() }()
	l.Infoln("listening for RPC requests on", addr)

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErrC:
		if err != nil && err != http.ErrServerClosed {
			l.Errorln("rpc server error:", err)
			return 1
		}
	case sig := <-sigC:
		l.Infoln("received signal", sig, "- shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RPCShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			l.Warningln("error shutting down rpc server:", err)
		}
	}
	return 0
}

func loadConfig(configDir string) (*config.Config, error) {
	if configDir == "" {
		configDir = config.Default.ConfigDir
		if configDir == "" {
			configDir = "~/.config/transmission-daemon"
		}
	}
	configDir, err := homedir.Expand(configDir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(settingsPath(configDir))
	if err != nil {
		return nil, err
	}
	cfg.ConfigDir = configDir
	return cfg, nil
}

func settingsPath(configDir string) string {
	return configDir + "/settings.yml"
}

// flagOverrides carries every flag pointer applyFlags may need to layer
// onto the loaded config; only flags the user actually set on the command
// line override the file/default value.
type flagOverrides struct {
	configDir, downloadDir, incompleteDir *string
	incompleteDirEnabled                  *bool
	watchDir                              *string
	watchDirEnabled, watchDirForceGeneric  *bool

	rpcBindAddress                     *string
	rpcPort                            *uint16
	rpcAuthEnabled                     *bool
	rpcUsername, rpcPassword           *string
	rpcWhitelist                       *string
	rpcWhitelistEnabled                *bool

	peerPort                          *uint16
	peerLimitGlobal, peerLimitPerTorrent *int

	dhtEnabled, lpdEnabled, utpEnabled, portForwardingEnabled *bool

	encryption                *string
	bindAddressIPv4, bindAddressIPv6 *string

	seedRatioLimit     *float64
	sequentialDownload *bool

	logLevel, logFile, pidFile *string
	foreground, paused         *bool
}

func applyFlags(cfg *config.Config, f flagOverrides) {
	if *f.configDir != "" {
		if expanded, err := homedir.Expand(*f.configDir); err == nil {
			cfg.ConfigDir = expanded
		} else {
			cfg.ConfigDir = *f.configDir
		}
	}
	if *f.downloadDir != "" {
		cfg.DataDir = *f.downloadDir
	}
	if *f.incompleteDir != "" {
		cfg.IncompleteDir = *f.incompleteDir
	}
	if *f.incompleteDirEnabled {
		cfg.IncompleteDirEnabled = true
	}
	if *f.watchDir != "" {
		cfg.WatchDir = *f.watchDir
	}
	if *f.watchDirEnabled {
		cfg.WatchDirEnabled = true
	}
	if *f.watchDirForceGeneric {
		cfg.WatchDirForceGeneric = true
	}
	if *f.rpcBindAddress != "" {
		cfg.RPCHost = *f.rpcBindAddress
	}
	if *f.rpcPort != 0 {
		cfg.RPCPort = *f.rpcPort
	}
	if *f.rpcAuthEnabled {
		cfg.RPCAuthEnabled = true
	}
	if *f.rpcUsername != "" {
		cfg.RPCUsername = *f.rpcUsername
	}
	if *f.rpcPassword != "" {
		cfg.RPCPassword = *f.rpcPassword
	}
	if *f.rpcWhitelist != "" {
		cfg.RPCWhitelist = splitComma(*f.rpcWhitelist)
	}
	if *f.rpcWhitelistEnabled {
		cfg.RPCWhitelistEnabled = true
	}
	if *f.peerPort != 0 {
		cfg.PortBegin = *f.peerPort
		cfg.PortEnd = *f.peerPort + 1
	}
	if *f.peerLimitGlobal != 0 {
		cfg.MaxPeerAccept = *f.peerLimitGlobal
	}
	if *f.peerLimitPerTorrent != 0 {
		cfg.MaxPeerDial = *f.peerLimitPerTorrent
	}
	if *f.dhtEnabled {
		cfg.DHTEnabled = true
	}
	if *f.lpdEnabled {
		cfg.LPDEnabled = true
	}
	if *f.utpEnabled {
		cfg.UTPEnabled = true
	}
	if *f.portForwardingEnabled {
		cfg.PortForwardingEnabled = true
	}
	if *f.encryption != "" {
		cfg.Encryption.Mode = config.EncryptionMode(*f.encryption)
	}
	if *f.bindAddressIPv4 != "" {
		cfg.BindAddressIPv4 = *f.bindAddressIPv4
	}
	if *f.bindAddressIPv6 != "" {
		cfg.BindAddressIPv6 = *f.bindAddressIPv6
	}
	if *f.seedRatioLimit != 0 {
		cfg.SeedRatioLimit = *f.seedRatioLimit
		cfg.SeedRatioLimited = true
	}
	if *f.sequentialDownload {
		cfg.SequentialDownload = true
	}
	if *f.logLevel != "" {
		cfg.LogLevel = *f.logLevel
	}
	if *f.logFile != "" {
		cfg.LogFile = *f.logFile
	}
	if *f.pidFile != "" {
		cfg.PidFile = *f.pidFile
	}
	cfg.Foreground = *f.foreground
	cfg.Paused = *f.paused
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
