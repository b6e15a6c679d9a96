package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/althea-net/ambient-indexer/configs"
	"github.com/althea-net/ambient-indexer/internal/ambient/query"
	"github.com/althea-net/ambient-indexer/internal/contracts"
	"github.com/althea-net/ambient-indexer/internal/db"
	"github.com/althea-net/ambient-indexer/internal/httpapi"
	"github.com/althea-net/ambient-indexer/internal/scanner"
	"github.com/althea-net/ambient-indexer/pkg/contractclient"
)

// version is stamped into the store on first open and checked against the
// stored marker on every later open, per the VersionMismatch policy.
const version = "1"

const httpShutdownTimeout = 10 * time.Second

var app = &cli.App{
	Name:  "ambient-indexer",
	Usage: "read-only chain-log indexer for an ambient concentrated-liquidity AMM",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "config", Value: "configs/config.yml", Usage: "path to the YAML allow-list config"},
		&cli.StringFlag{Name: "rpc", Usage: "chain RPC endpoint, overrides the config file"},
		&cli.StringFlag{Name: "dex-contract", Usage: "AMM dispatch contract address, overrides the config file"},
		&cli.StringFlag{Name: "query-contract", Usage: "AMM query contract address, overrides the config file"},
		&cli.StringFlag{Name: "multicall-contract", Usage: "multicall contract address, overrides the config file"},
		&cli.StringFlag{Name: "db-path", Value: "data/indexer.badger", Usage: "badger data directory"},
		&cli.StringFlag{Name: "bind", Value: ":8080", Usage: "HTTP listen address"},
		&cli.StringFlag{Name: "tls-cert", Usage: "TLS certificate path (enables HTTPS when set with --tls-key)"},
		&cli.StringFlag{Name: "tls-key", Usage: "TLS key path"},
		&cli.BoolFlag{Name: "reindex", Usage: "reset derived state and re-ingest from the default start block"},
		&cli.BoolFlag{Name: "compact", Usage: "run badger value-log compaction at startup and after every indexed window"},
		&cli.BoolFlag{Name: "compact-and-halt", Usage: "compact once, then exit without scanning"},
		&cli.BoolFlag{Name: "allow-version-mismatch", Usage: "tolerate a stored version marker from a different build"},
	},
	Action: run,
}

func main() {
	if err := godotenv.Load(); err != nil {
		// A missing .env is normal outside local development; RPC credentials
		// may already be present in the environment.
		fmt.Fprintf(os.Stderr, "ambient-indexer: no .env loaded: %v\n", err)
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	flags := configs.RuntimeFlags{
		ConfigPath:           c.String("config"),
		DBPath:               c.String("db-path"),
		Bind:                 c.String("bind"),
		TLSCert:              c.String("tls-cert"),
		TLSKey:               c.String("tls-key"),
		RPC:                  c.String("rpc"),
		DispatchContract:     c.String("dex-contract"),
		QueryContract:        c.String("query-contract"),
		MulticallContract:    c.String("multicall-contract"),
		Reindex:              c.Bool("reindex"),
		Compact:              c.Bool("compact") || c.Bool("compact-and-halt"),
		CompactAndHalt:       c.Bool("compact-and-halt"),
		AllowVersionMismatch: c.Bool("allow-version-mismatch"),
	}

	cfg, err := configs.LoadConfig(flags.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyOverrides(flags)

	store, err := db.OpenIndexerStore(db.OpenOptions{
		Path:          flags.DBPath,
		Version:       version,
		Reindex:       flags.Reindex,
		AllowMismatch: flags.AllowVersionMismatch,
		DefaultStart:  cfg.DefaultStart,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close() //nolint:errcheck

	if flags.Compact {
		if err := store.Compact(); err != nil {
			logger.Warn("startup compaction failed", zap.Error(err))
		}
		if flags.CompactAndHalt {
			return nil
		}
	}

	templates, err := cfg.PoolTemplates()
	if err != nil {
		return fmt.Errorf("parse pool templates: %w", err)
	}
	for poolIdx, tmpl := range templates {
		n, ok := new(big.Int).SetString(poolIdx, 10)
		if !ok {
			continue
		}
		if err := store.PutTemplate(n, tmpl); err != nil {
			logger.Warn("failed to seed pool template", zap.String("pool_idx", poolIdx), zap.Error(err))
		}
	}

	chain, err := ethclient.Dial(cfg.RPC)
	if err != nil {
		return fmt.Errorf("dial chain RPC: %w", err)
	}

	queryABI, err := contracts.QueryContractABI()
	if err != nil {
		return fmt.Errorf("parse query contract ABI: %w", err)
	}
	queryContract := contractclient.NewContractClient(chain, common.HexToAddress(cfg.QueryContract), queryABI)
	queryClient := query.New(queryContract, store)

	sc := scanner.New(chain, store, queryClient, scanner.Config{
		DispatchAddress:   common.HexToAddress(cfg.DispatchContract),
		DefaultStart:      cfg.DefaultStart,
		CompactEachWindow: flags.Compact,
		HaltAfterIndexing: false,
		Allow: scanner.AllowList{
			PoolIdx: cfg.AllowedPoolSet(),
			Token:   cfg.AllowedTokenSet(),
		},
	}, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	scanErrs := make(chan error, 1)
	go func() {
		scanErrs <- sc.Run(ctx)
	}()

	httpServer := &http.Server{
		Addr:    flags.Bind,
		Handler: httpapi.New(store, cfg, logger),
	}
	serveErrs := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", flags.Bind))
		if flags.TLSCert != "" && flags.TLSKey != "" {
			serveErrs <- httpServer.ListenAndServeTLS(flags.TLSCert, flags.TLSKey)
		} else {
			serveErrs <- httpServer.ListenAndServe()
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-scanErrs:
		if err != nil {
			logger.Error("scanner exited", zap.Error(err))
		}
	case err := <-serveErrs:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}
