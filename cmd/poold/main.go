package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/luoye/poolswap/internal/amm"
	"github.com/luoye/poolswap/internal/config"
	"github.com/luoye/poolswap/internal/ledger"
	"github.com/luoye/poolswap/internal/model"
	"github.com/luoye/poolswap/internal/server"
	"github.com/luoye/poolswap/internal/storage"
	pebblestore "github.com/luoye/poolswap/internal/storage/pebble"
	"github.com/luoye/poolswap/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "poold",
		Short:        "Constant-product pool daemon",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("store", "file", "pair state backend (file, pebble, postgres)")
	root.PersistentFlags().String("state-file", "./data/pair_state.json", "pair state file path (file store)")
	root.PersistentFlags().String("pebble-dir", "./data/pebble", "pebble directory (pebble store)")
	root.PersistentFlags().String("pg-dsn", "", "Postgres DSN (postgres store)")
	root.PersistentFlags().String("pool-name", "default", "pool name")
	root.PersistentFlags().String("pool-account", "", "pool custody account (hex), derived from pool name when empty")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the pool pair state",
		RunE:  runInit,
	}
	initCmd.Flags().String("peer-asset", "", "peer asset id (hex), derived from peer symbol when empty")
	initCmd.Flags().String("peer-symbol", "PEER", "peer asset symbol")
	initCmd.Flags().String("asset-symbol", "POOLX", "first asset symbol")
	initCmd.Flags().String("asset-name", "Pool Asset X", "first asset name")
	initCmd.Flags().Int64("reserve-x", 100000, "initial reserve of the first asset")
	initCmd.Flags().Int64("reserve-y", 100000, "initial reserve of the peer asset")
	root.AddCommand(initCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a hypothetical swap",
		RunE:  runQuote,
	}
	quoteCmd.Flags().String("direction", "x-in", "swap direction (x-in, y-in)")
	quoteCmd.Flags().String("amount-in", "0", "input amount")
	root.AddCommand(quoteCmd)

	swapCmd := &cobra.Command{
		Use:   "swap",
		Short: "Execute a swap against a local ledger simulation",
		RunE:  runSwap,
	}
	swapCmd.Flags().String("direction", "x-in", "swap direction (x-in, y-in)")
	swapCmd.Flags().String("amount-in", "0", "input amount")
	swapCmd.Flags().String("caller", "", "caller account (hex)")
	root.AddCommand(swapCmd)

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Print the persisted pair state",
		RunE:  runInfo,
	}
	root.AddCommand(infoCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pool HTTP API",
		RunE:  runServe,
	}
	serveCmd.Flags().String("listen", ":8080", "listen address")
	serveCmd.Flags().String("peer-symbol", "PEER", "peer asset symbol (fresh state only)")
	serveCmd.Flags().String("asset-symbol", "POOLX", "first asset symbol (fresh state only)")
	serveCmd.Flags().String("asset-name", "Pool Asset X", "first asset name (fresh state only)")
	serveCmd.Flags().Int64("reserve-x", 100000, "initial reserve of the first asset (fresh state only)")
	serveCmd.Flags().Int64("reserve-y", 100000, "initial reserve of the peer asset (fresh state only)")
	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	return config.Load(cfgFile, cmd.Flags())
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func openStore(ctx context.Context, cfg config.Config) (storage.PairStore, func(), error) {
	switch cfg.Store {
	case "file":
		return storage.NewFileStore(cfg.StateFile), func() {}, nil
	case "pebble":
		store, err := pebblestore.Open(cfg.PebbleDir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case "postgres":
		store, err := postgres.NewStore(ctx, cfg.PgDSN, cfg.PoolName)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func poolAccount(cfg config.Config) (common.Address, error) {
	if cfg.PoolAccount != "" {
		if !common.IsHexAddress(cfg.PoolAccount) {
			return common.Address{}, fmt.Errorf("pool account %q is not a hex address", cfg.PoolAccount)
		}
		return common.HexToAddress(cfg.PoolAccount), nil
	}
	return common.BytesToAddress(crypto.Keccak256([]byte("pool:" + cfg.PoolName))[12:]), nil
}

func derivedAsset(symbol string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte("asset:" + symbol))[12:])
}

func runInit(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	account, err := poolAccount(cfg)
	if err != nil {
		return err
	}

	peerSymbol, _ := cmd.Flags().GetString("peer-symbol")
	peerAsset := derivedAsset(peerSymbol)
	if cfg.PeerAsset != "" {
		if !common.IsHexAddress(cfg.PeerAsset) {
			return fmt.Errorf("peer asset %q is not a hex address", cfg.PeerAsset)
		}
		peerAsset = common.HexToAddress(cfg.PeerAsset)
	}

	peerLedger := ledger.NewMemory(model.TokenMeta{
		Address:  peerAsset.Hex(),
		Decimals: 18,
		Symbol:   peerSymbol,
		Name:     peerSymbol,
	})

	engine := amm.New(store, account, cfg.PoolName, logger)
	st, err := engine.Initialize(ctx, amm.InitParams{
		PeerAsset:   peerAsset,
		PeerLedger:  peerLedger,
		Provisioner: ledger.NewMemoryProvisioner(),
		FirstAssetMeta: model.TokenMeta{
			Decimals: 18,
			Symbol:   cfg.AssetSymbol,
			Name:     cfg.AssetName,
		},
		ReserveX: big.NewInt(cfg.ReserveX),
		ReserveY: big.NewInt(cfg.ReserveY),
	})
	if err != nil {
		return err
	}

	logger.Info("pool ready",
		zap.String("pool", cfg.PoolName),
		zap.String("account", account.Hex()),
		zap.String("asset_x", st.AssetX.Hex()),
		zap.String("asset_y", st.AssetY.Hex()),
	)
	return nil
}

func runInfo(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	rec, ok, err := store.Load(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("pool %s not initialized", cfg.PoolName)
	}

	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runQuote(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	dirFlag, _ := cmd.Flags().GetString("direction")
	dir, err := amm.ParseDirection(dirFlag)
	if err != nil {
		return err
	}
	amountFlag, _ := cmd.Flags().GetString("amount-in")
	amountIn, err := model.ParseAmount(amountFlag)
	if err != nil {
		return err
	}

	account, err := poolAccount(cfg)
	if err != nil {
		return err
	}

	engine := amm.New(store, account, cfg.PoolName, zap.NewNop())
	out, err := engine.Quote(ctx, dir, amountIn)
	if err != nil {
		return err
	}
	fmt.Println(out.String())
	return nil
}

func runSwap(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	dirFlag, _ := cmd.Flags().GetString("direction")
	dir, err := amm.ParseDirection(dirFlag)
	if err != nil {
		return err
	}
	amountFlag, _ := cmd.Flags().GetString("amount-in")
	amountIn, err := model.ParseAmount(amountFlag)
	if err != nil {
		return err
	}
	callerFlag, _ := cmd.Flags().GetString("caller")
	if !common.IsHexAddress(callerFlag) {
		return fmt.Errorf("caller %q is not a hex address", callerFlag)
	}
	caller := common.HexToAddress(callerFlag)

	account, err := poolAccount(cfg)
	if err != nil {
		return err
	}

	engine := amm.New(store, account, cfg.PoolName, logger)
	ledgers, err := bootstrapLedgers(ctx, engine, account)
	if err != nil {
		return err
	}

	st, err := engine.PairState(ctx)
	if err != nil {
		return err
	}
	assetIn := st.AssetY
	if dir == amm.DirectionXIn {
		assetIn = st.AssetX
	}

	// The local ledgers are process-scoped, so fund and approve the caller
	// here; a hosted deployment would see real balances and allowances.
	if err := ledgers[assetIn].Mint(ctx, caller, amountIn); err != nil {
		return err
	}
	if err := ledgers[assetIn].Approve(ctx, caller, account, amountIn, time.Time{}); err != nil {
		return err
	}

	out, err := engine.Swap(ctx, caller, dir, amountIn)
	if err != nil {
		return err
	}
	fmt.Println(out.String())
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	account, err := poolAccount(cfg)
	if err != nil {
		return err
	}

	engine := amm.New(store, account, cfg.PoolName, logger)

	_, ok, err := store.Load(ctx)
	if err != nil {
		return err
	}

	var ledgers map[common.Address]ledger.Ledger
	if !ok {
		peerSymbol, _ := cmd.Flags().GetString("peer-symbol")
		peerAsset := derivedAsset(peerSymbol)
		peerLedger := ledger.NewMemory(model.TokenMeta{
			Address:  peerAsset.Hex(),
			Decimals: 18,
			Symbol:   peerSymbol,
			Name:     peerSymbol,
		})
		if err := peerLedger.Mint(ctx, account, big.NewInt(cfg.ReserveY)); err != nil {
			return err
		}

		prov := ledger.NewMemoryProvisioner()
		st, err := engine.Initialize(ctx, amm.InitParams{
			PeerAsset:   peerAsset,
			PeerLedger:  peerLedger,
			Provisioner: prov,
			FirstAssetMeta: model.TokenMeta{
				Decimals: 18,
				Symbol:   cfg.AssetSymbol,
				Name:     cfg.AssetName,
			},
			ReserveX: big.NewInt(cfg.ReserveX),
			ReserveY: big.NewInt(cfg.ReserveY),
		})
		if err != nil {
			return err
		}

		ledgers = map[common.Address]ledger.Ledger{
			st.AssetX: prov.Ledgers[st.AssetX],
			st.AssetY: peerLedger,
		}
	} else {
		ledgers, err = bootstrapLedgers(ctx, engine, account)
		if err != nil {
			return err
		}
	}

	app := server.NewApp(engine, ledgers, logger)

	logger.Info("serving pool API",
		zap.String("pool", cfg.PoolName),
		zap.String("listen", cfg.Listen),
		zap.String("store", cfg.Store),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Router().Run(cfg.Listen)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// bootstrapLedgers rebuilds in-memory ledgers for an already persisted pair,
// seeding the pool account with the recorded reserves so the local ledgers
// agree with the stored state.
func bootstrapLedgers(ctx context.Context, engine *amm.Engine, account common.Address) (map[common.Address]ledger.Ledger, error) {
	st, err := engine.PairState(ctx)
	if err != nil {
		return nil, err
	}

	ledgerX := ledger.NewMemory(model.TokenMeta{Address: st.AssetX.Hex(), Decimals: 18, Symbol: "X", Name: "Asset X"})
	ledgerY := ledger.NewMemory(model.TokenMeta{Address: st.AssetY.Hex(), Decimals: 18, Symbol: "Y", Name: "Asset Y"})

	if err := ledgerX.Mint(ctx, account, st.ReserveX); err != nil {
		return nil, err
	}
	if err := ledgerY.Mint(ctx, account, st.ReserveY); err != nil {
		return nil, err
	}

	engine.AttachLedger(st.AssetX, ledgerX)
	engine.AttachLedger(st.AssetY, ledgerY)

	return map[common.Address]ledger.Ledger{st.AssetX: ledgerX, st.AssetY: ledgerY}, nil
}
