// Package node is the main service which launches a rustchain node and
// manages the lifecycle of all its associated services at runtime, such as
// attestation, settlement, gossip and the HTTP API, gracefully closing them
// if the process ends.
package node

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/rustchain-network/rustchain/attestation"
	"github.com/rustchain-network/rustchain/cmd/rustchain-node/flags"
	"github.com/rustchain-network/rustchain/config/features"
	"github.com/rustchain-network/rustchain/config/params"
	"github.com/rustchain-network/rustchain/db/iface"
	"github.com/rustchain-network/rustchain/db/sqlite"
	"github.com/rustchain-network/rustchain/epoch"
	"github.com/rustchain-network/rustchain/ledger"
	"github.com/rustchain-network/rustchain/monitoring/prometheus"
	"github.com/rustchain-network/rustchain/p2p"
	"github.com/rustchain-network/rustchain/rpc"
	"github.com/rustchain-network/rustchain/runtime"
	"github.com/rustchain-network/rustchain/runtime/version"
)

var log = logrus.WithField("prefix", "node")

// RustchainNode handles the lifecycle of the entire system and registers
// services to a service registry.
type RustchainNode struct {
	cliCtx         *cli.Context
	ctx            context.Context
	cancel         context.CancelFunc
	services       *runtime.ServiceRegistry
	lock           sync.RWMutex
	stop           chan struct{} // Channel to wait for termination notifications.
	db             iface.Database
	trustedProxies []*net.IPNet
}

// New creates a new node instance, sets up configuration options, and
// registers every required service to the node.
func New(cliCtx *cli.Context) (*RustchainNode, error) {
	if err := params.LoadFromEnv(); err != nil {
		return nil, err
	}
	features.InitFromEnv(cliCtx.Bool(flags.MockSignaturesFlag.Name))

	proxies, err := attestation.ParseTrustedProxies(cliCtx.String(flags.TrustedProxiesFlag.Name))
	if err != nil {
		return nil, err
	}

	registry := runtime.NewServiceRegistry()
	ctx, cancel := context.WithCancel(cliCtx.Context)
	n := &RustchainNode{
		cliCtx:         cliCtx,
		ctx:            ctx,
		cancel:         cancel,
		services:       registry,
		stop:           make(chan struct{}),
		trustedProxies: proxies,
	}

	if err := n.startDB(cliCtx); err != nil {
		cancel()
		return nil, err
	}

	if err := n.registerEpochService(); err != nil {
		cancel()
		return nil, err
	}

	if err := n.registerAttestationService(); err != nil {
		cancel()
		return nil, err
	}

	if err := n.registerLedgerService(); err != nil {
		cancel()
		return nil, err
	}

	if err := n.registerP2PService(cliCtx); err != nil {
		cancel()
		return nil, err
	}

	if err := n.registerRPCService(cliCtx); err != nil {
		cancel()
		return nil, err
	}

	if !cliCtx.Bool(flags.DisableMonitoringFlag.Name) {
		if err := n.registerPrometheusService(cliCtx); err != nil {
			cancel()
			return nil, err
		}
	}

	return n, nil
}

// Start the node and kick off every registered service.
func (n *RustchainNode) Start() {
	n.lock.Lock()

	log.WithFields(logrus.Fields{
		"version": version.Version(),
	}).Info("Starting rustchain node")

	n.services.StartAll()

	stop := n.stop
	n.lock.Unlock()

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigc)
		<-sigc
		log.Info("Got interrupt, shutting down...")
		go n.Close()
		for i := 10; i > 0; i-- {
			<-sigc
			if i > 1 {
				log.WithField("times", i-1).Info("Already shutting down, interrupt more to panic")
			}
		}
		panic("Panic closing the rustchain node")
	}()

	// Wait for stop channel to be closed.
	<-stop
}

// Close handles graceful shutdown of the system.
func (n *RustchainNode) Close() {
	n.lock.Lock()
	defer n.lock.Unlock()

	log.Info("Stopping rustchain node")
	n.services.StopAll()
	if err := n.db.Close(); err != nil {
		log.Errorf("Failed to close database: %v", err)
	}
	n.cancel()
	close(n.stop)
}

func (n *RustchainNode) startDB(cliCtx *cli.Context) error {
	baseDir := cliCtx.String(flags.DataDirFlag.Name)
	store, err := sqlite.NewStore(baseDir)
	if err != nil {
		return err
	}
	log.WithField("path", store.DatabasePath()).Info("Opened node database")
	n.db = store
	return nil
}

func (n *RustchainNode) registerEpochService() error {
	svc, err := epoch.New(n.ctx, &epoch.Config{DB: n.db})
	if err != nil {
		return err
	}
	return n.services.RegisterService(svc)
}

func (n *RustchainNode) registerAttestationService() error {
	var enroller *epoch.Service
	if err := n.services.FetchService(&enroller); err != nil {
		return err
	}
	svc, err := attestation.New(n.ctx, &attestation.Config{
		DB:             n.db,
		Enroller:       enroller,
		TrustedProxies: n.trustedProxies,
	})
	if err != nil {
		return err
	}
	return n.services.RegisterService(svc)
}

func (n *RustchainNode) registerLedgerService() error {
	svc, err := ledger.New(n.ctx, &ledger.Config{DB: n.db})
	if err != nil {
		return err
	}
	return n.services.RegisterService(svc)
}

func (n *RustchainNode) registerP2PService(cliCtx *cli.Context) error {
	peers, err := p2p.ParsePeers(cliCtx.String(flags.PeersFlag.Name))
	if err != nil {
		return err
	}
	nodeID := cliCtx.String(flags.NodeIDFlag.Name)
	if nodeID == "" {
		host, herr := os.Hostname()
		if herr != nil {
			host = "rustchain"
		}
		nodeID = host
	}
	svc, err := p2p.New(n.ctx, &p2p.Config{
		DB:     n.db,
		NodeID: nodeID,
		Peers:  peers,
	})
	if err != nil {
		return err
	}
	return n.services.RegisterService(svc)
}

func (n *RustchainNode) registerRPCService(cliCtx *cli.Context) error {
	var attSvc *attestation.Service
	if err := n.services.FetchService(&attSvc); err != nil {
		return err
	}
	var epochSvc *epoch.Service
	if err := n.services.FetchService(&epochSvc); err != nil {
		return err
	}
	var ledgerSvc *ledger.Service
	if err := n.services.FetchService(&ledgerSvc); err != nil {
		return err
	}
	var p2pSvc *p2p.Service
	if err := n.services.FetchService(&p2pSvc); err != nil {
		return err
	}
	svc, err := rpc.New(n.ctx, &rpc.Config{
		Host:           cliCtx.String(flags.HTTPHostFlag.Name),
		Port:           cliCtx.Int(flags.HTTPPortFlag.Name),
		AdminKey:       cliCtx.String(flags.AdminKeyFlag.Name),
		DB:             n.db,
		Attestation:    attSvc,
		Epoch:          epochSvc,
		Ledger:         ledgerSvc,
		P2P:            p2pSvc,
		TrustedProxies: n.trustedProxies,
	})
	if err != nil {
		return err
	}
	return n.services.RegisterService(svc)
}

func (n *RustchainNode) registerPrometheusService(cliCtx *cli.Context) error {
	svc := prometheus.NewService(
		fmt.Sprintf(":%d", cliCtx.Int(flags.MonitoringPortFlag.Name)),
		n.services,
	)
	return n.services.RegisterService(svc)
}
