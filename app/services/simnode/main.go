package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/powchain/app/services/simnode/handlers"
	"github.com/ardanlabs/powchain/business/sim"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/ardanlabs/powchain/foundation/events"
	"github.com/ardanlabs/powchain/foundation/logger"
	"github.com/ardanlabs/powchain/foundation/nameservice"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("SIMNODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			ViewerHost      string        `conf:"default:0.0.0.0:8080"`
		}
		Chain struct {
			GenesisPath    string `conf:"default:zblock/genesis.json"`
			Difficulty     uint   `conf:"help:overrides the genesis difficulty when not zero"`
			PoolThreshold  int    `conf:"help:overrides the genesis pool threshold when not zero"`
			SelectStrategy string `conf:"default:fifo"`
		}
		Sim struct {
			Miners          []string      `conf:"default:miner1;miner2;miner3"`
			Wallets         []string      `conf:"default:kennedy;pavel;ceasar"`
			TrafficInterval time.Duration `conf:"default:2s"`
			MaxAmount       float64       `conf:"default:10"`
			Fee             float64       `conf:"default:1"`
		}
		NameService struct {
			Folder string `conf:"default:zblock/accounts/"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "proof of work network simulation",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "SIMNODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Name Service Support

	// The nameservice package provides name resolution for account addresses
	// and the keys for the miners and wallets. The names come from the file
	// names in the accounts folder.
	ns, err := nameservice.New(cfg.NameService.Folder)
	if err != nil {
		return fmt.Errorf("unable to load account name service: %w", err)
	}

	for account, name := range ns.Copy() {
		log.Infow("startup", "status", "nameservice", "name", name, "account", account)
	}

	miners, err := signers(ns, cfg.Sim.Miners)
	if err != nil {
		return fmt.Errorf("loading miners: %w", err)
	}

	wallets, err := signers(ns, cfg.Sim.Wallets)
	if err != nil {
		return fmt.Errorf("loading wallets: %w", err)
	}

	// =========================================================================
	// Blockchain Support

	gen, err := genesis.Load(cfg.Chain.GenesisPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading genesis: %w", err)
		}

		log.Infow("startup", "status", "genesis file not found, using default", "path", cfg.Chain.GenesisPath)
		gen = genesis.Default()
		for _, wallet := range wallets {
			gen.Balances[wallet.Address()] = 1000
		}
	}

	if cfg.Chain.Difficulty != 0 {
		gen.Difficulty = cfg.Chain.Difficulty
	}

	// The blockchain packages accept a function of this signature to allow the
	// application to log. The viewer messages are sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	evHandler := func(host string) database.EventHandler {
		return logger.EventHandler(log, host, evts.Send)
	}

	net, err := sim.NewNetwork(sim.Config{
		Genesis:        gen,
		Miners:         miners,
		SelectStrategy: cfg.Chain.SelectStrategy,
		PoolThreshold:  cfg.Chain.PoolThreshold,
		EvHandler:      evHandler,
		Workers:        true,
	})
	if err != nil {
		return err
	}
	defer net.Shutdown()

	traffic, err := sim.NewTraffic(net, sim.TrafficConfig{
		Wallets:   wallets,
		Interval:  cfg.Sim.TrafficInterval,
		MaxAmount: cfg.Sim.MaxAmount,
		Fee:       cfg.Sim.Fee,
		EvHandler: evHandler("traffic"),
	})
	if err != nil {
		return err
	}

	ctx, cancelTraffic := context.WithCancel(context.Background())
	defer cancelTraffic()

	go traffic.Run(ctx)

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Viewer Service

	log.Infow("startup", "status", "initializing V1 viewer API support")

	// Construct the mux for the viewer API calls.
	viewerMux := handlers.ViewerMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		Net:      net,
		NS:       ns,
		Evts:     evts,
	})

	// Construct a server to service the requests against the mux.
	viewer := http.Server{
		Addr:         cfg.Web.ViewerHost,
		Handler:      viewerMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "viewer api router started", "host", viewer.Addr)
		serverErrors <- viewer.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Stop generating traffic before the nodes go away.
		cancelTraffic()

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown viewer API started")
		if err := viewer.Shutdown(ctx); err != nil {
			viewer.Close()
			return fmt.Errorf("could not stop viewer service gracefully: %w", err)
		}
	}

	return nil
}

// signers looks up the key of every named account.
func signers(ns *nameservice.NameService, names []string) ([]*signature.KeySigner, error) {
	signers := make([]*signature.KeySigner, 0, len(names))
	for _, name := range names {
		signer, exists := ns.Signer(name)
		if !exists {
			return nil, fmt.Errorf("no key file for account %q", name)
		}
		signers = append(signers, signer)
	}
	return signers, nil
}
