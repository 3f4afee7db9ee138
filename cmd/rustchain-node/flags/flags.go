// Package flags defines the command line options of the rustchain node.
package flags

import (
	"github.com/urfave/cli/v2"
)

var (
	// DataDirFlag points at the directory holding the node database.
	DataDirFlag = &cli.StringFlag{
		Name:    "datadir",
		Usage:   "Directory holding the node database",
		Value:   "./rustchain-data",
		EnvVars: []string{"RUSTCHAIN_DB_PATH"},
	}
	// HTTPHostFlag is the listen host of the HTTP API.
	HTTPHostFlag = &cli.StringFlag{
		Name:  "http-host",
		Usage: "Listen host for the HTTP API",
		Value: "127.0.0.1",
	}
	// HTTPPortFlag is the listen port of the HTTP API.
	HTTPPortFlag = &cli.IntFlag{
		Name:  "http-port",
		Usage: "Listen port for the HTTP API",
		Value: 8099,
	}
	// AdminKeyFlag guards the admin endpoints. When empty they always 401.
	AdminKeyFlag = &cli.StringFlag{
		Name:    "admin-key",
		Usage:   "Shared secret required in X-Admin-Key on admin endpoints",
		EnvVars: []string{"RC_ADMIN_KEY"},
	}
	// NodeIDFlag names this node on the gossip network.
	NodeIDFlag = &cli.StringFlag{
		Name:    "node-id",
		Usage:   "Identifier of this node on the gossip network",
		EnvVars: []string{"RC_NODE_ID"},
	}
	// PeersFlag lists the gossip peers as id=url pairs.
	PeersFlag = &cli.StringFlag{
		Name:  "peers",
		Usage: "Comma separated gossip peers, each as id=http://host:port",
	}
	// TrustedProxiesFlag lists CIDRs allowed to set X-Forwarded-For.
	TrustedProxiesFlag = &cli.StringFlag{
		Name:  "trusted-proxies",
		Usage: "Comma separated CIDRs trusted to set X-Forwarded-For",
	}
	// MonitoringPortFlag is the metrics listener port.
	MonitoringPortFlag = &cli.IntFlag{
		Name:  "monitoring-port",
		Usage: "Listen port for Prometheus metrics and /healthz",
		Value: 9090,
	}
	// DisableMonitoringFlag turns the metrics listener off.
	DisableMonitoringFlag = &cli.BoolFlag{
		Name:  "disable-monitoring",
		Usage: "Disable the Prometheus metrics listener",
	}
	// MockSignaturesFlag skips attestation signature checks. The node refuses
	// to boot with this flag outside RC_RUNTIME_ENV=test.
	MockSignaturesFlag = &cli.BoolFlag{
		Name:  "mock-signatures",
		Usage: "Skip attestation signature verification (test environment only)",
	}
	// VerbosityFlag selects the logging level.
	VerbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity (trace, debug, info, warn, error, fatal, panic)",
		Value: "info",
	}
	// LogFormatFlag selects the log output format.
	LogFormatFlag = &cli.StringFlag{
		Name:  "log-format",
		Usage: "Log format, either text or json",
		Value: "text",
	}
)
