package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/aseio6668/Sigmos/app/services/node/handlers"
	"github.com/aseio6668/Sigmos/foundation/events"
	"github.com/aseio6668/Sigmos/foundation/logger"
	"github.com/aseio6668/Sigmos/foundation/sigel/genesis"
	"github.com/aseio6668/Sigmos/foundation/sigel/ledger"
	"github.com/aseio6668/Sigmos/foundation/sigel/ledger/storage/badgerdb"
	"github.com/aseio6668/Sigmos/foundation/sigel/ledger/storage/disk"
	"github.com/aseio6668/Sigmos/foundation/sigel/ledger/storage/memory"
	"github.com/aseio6668/Sigmos/foundation/sigel/network"
	"github.com/aseio6668/Sigmos/foundation/sigel/peer"
	"github.com/aseio6668/Sigmos/foundation/sigel/registry"
	"github.com/aseio6668/Sigmos/foundation/sigel/state"
	"github.com/aseio6668/Sigmos/foundation/sigel/worker"
	"github.com/ardanlabs/conf/v3"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

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
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			PrivateHost     string        `conf:"default:0.0.0.0:9080"`
		}
		State struct {
			MinerName   string `conf:"default:miner1"`
			DataDir     string `conf:"default:zsigel/data"`
			DBBackend   string `conf:"default:badger,help:badger|disk|memory"`
			GenesisFile string `conf:"default:zsigel/genesis.json"`
			KeysFolder  string `conf:"default:zsigel/keys/"`
			KnownPeers  string `conf:"default:0.0.0.0:9080;0.0.0.0:9180"`
		}
		Mining struct {
			Continuous    bool   `conf:"default:true"`
			AttemptBudget uint64 `conf:"default:0,help:max hash attempts per mining run with 0 for unbounded"`
		}
		Node struct {
			ReadTimeout      time.Duration `conf:"default:60s"`
			WriteTimeout     time.Duration `conf:"default:10s"`
			HandshakeTimeout time.Duration `conf:"default:10s"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	const prefix = "SIGMOS"
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

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Chain Parameters

	gen, err := genesis.Load(cfg.State.GenesisFile)
	if err != nil {
		return fmt.Errorf("unable to load genesis file: %w", err)
	}

	// =========================================================================
	// Miner Key

	privateKey, err := loadOrCreateKey(cfg.State.KeysFolder, cfg.State.MinerName)
	if err != nil {
		return fmt.Errorf("unable to load miner key: %w", err)
	}
	minerAddress := crypto.PubkeyToAddress(privateKey.PublicKey).String()

	// =========================================================================
	// Storage

	var store registry.Store
	var serializer ledger.Serializer

	switch cfg.State.DBBackend {
	case "badger":
		bs, err := registry.NewBadgerStore(filepath.Join(cfg.State.DataDir, "identities"))
		if err != nil {
			return fmt.Errorf("unable to open identity store: %w", err)
		}
		store = bs

		sz, err := badgerdb.New(filepath.Join(cfg.State.DataDir, "blocks"))
		if err != nil {
			return fmt.Errorf("unable to open block store: %w", err)
		}
		serializer = sz

	case "disk":
		bs, err := registry.NewBadgerStore(filepath.Join(cfg.State.DataDir, "identities"))
		if err != nil {
			return fmt.Errorf("unable to open identity store: %w", err)
		}
		store = bs

		sz, err := disk.New(filepath.Join(cfg.State.DataDir, "blocks"))
		if err != nil {
			return fmt.Errorf("unable to open block store: %w", err)
		}
		serializer = sz

	case "memory":
		store = registry.NewMemoryStore()
		serializer = memory.New()

	default:
		return fmt.Errorf("unknown db backend %q", cfg.State.DBBackend)
	}

	reg, err := registry.New(store)
	if err != nil {
		return fmt.Errorf("unable to load identity registry: %w", err)
	}
	defer reg.Close()

	// =========================================================================
	// Events and State

	evts := events.New()
	defer evts.Shutdown()

	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	knownPeers := peer.NewSet()
	for _, host := range strings.Split(cfg.State.KnownPeers, ";") {
		if host = strings.TrimSpace(host); host != "" {
			knownPeers.Add(peer.New(host))
		}
	}

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	// A chain persistence failure rides the same channel; a node that cannot
	// durably commit blocks must come down.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	st, err := state.New(state.Config{
		Host:          cfg.Web.PrivateHost,
		Genesis:       gen,
		Serializer:    serializer,
		Registry:      reg,
		KnownPeers:    knownPeers,
		AttemptBudget: cfg.Mining.AttemptBudget,
		EvHandler:     ev,
		FatalHandler: func(err error) {
			log.Errorw("state", "status", "chain persistence failed", "ERROR", err)
			shutdown <- syscall.SIGTERM
		},
	})
	if err != nil {
		return fmt.Errorf("unable to start state: %w", err)
	}
	defer st.Shutdown()

	// The node mines under a named identity. Resolve it, minting a fresh
	// record bound to the miner key when this node has never run before.
	miner, err := reg.QueryByName(cfg.State.MinerName)
	if err != nil {
		miner, err = st.CreateIdentity(cfg.State.MinerName, minerAddress)
		if err != nil {
			return fmt.Errorf("unable to create miner identity: %w", err)
		}
		log.Infow("startup", "status", "minted miner identity", "id", miner.ID, "name", miner.Name)
	}
	st.SetMiner(miner.ID)

	node, err := network.New(network.Config{
		Backend:          st,
		EvHandler:        network.EventHandler(ev),
		ReadTimeout:      cfg.Node.ReadTimeout,
		WriteTimeout:     cfg.Node.WriteTimeout,
		HandshakeTimeout: cfg.Node.HandshakeTimeout,
	})
	if err != nil {
		return fmt.Errorf("unable to start network: %w", err)
	}

	worker.Run(worker.Config{
		State:      st,
		Node:       node,
		Continuous: cfg.Mining.Continuous,
		EvHandler:  ev,
	})

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// The Debug function returns a mux to listen and serve on for all the debug
	// related endpoints. This includes the standard library endpoints.

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing public API support")

	// Construct the mux for the public API calls.
	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		Node:     node,
		Evts:     evts,
	})

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Start Private Service

	log.Infow("startup", "status", "initializing private API support")

	// Construct the mux for the private API calls.
	privateMux := handlers.PrivateMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		Node:     node,
	})

	// Construct a server to service the requests against the mux.
	private := http.Server{
		Addr:         cfg.Web.PrivateHost,
		Handler:      privateMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "private api router started", "host", private.Addr)
		serverErrors <- private.ListenAndServe()
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

		// Stop gossip first so no new blocks or transfers arrive while the
		// web servers drain.
		node.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shutdown and shed load.
		if err := private.Shutdown(ctx); err != nil {
			private.Close()
			return fmt.Errorf("could not stop private server gracefully: %w", err)
		}

		// Asking listener to shutdown and shed load.
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public server gracefully: %w", err)
		}
	}

	return nil
}

// loadOrCreateKey reads the miner's ECDSA key from the keys folder, creating
// and persisting a new one on first run.
func loadOrCreateKey(keysFolder string, name string) (*ecdsa.PrivateKey, error) {
	path := filepath.Join(keysFolder, name+".ecdsa")

	privateKey, err := crypto.LoadECDSA(path)
	if err == nil {
		return privateKey, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	if err := os.MkdirAll(keysFolder, 0755); err != nil {
		return nil, err
	}

	privateKey, err = crypto.GenerateKey()
	if err != nil {
		return nil, err
	}

	if err := crypto.SaveECDSA(path, privateKey); err != nil {
		return nil, err
	}

	return privateKey, nil
}
