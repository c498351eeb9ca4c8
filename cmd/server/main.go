package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"bourse/params"
	"bourse/pkg/api"
	"bourse/pkg/engine"
	"bourse/pkg/ledger"
	"bourse/pkg/matching"
	"bourse/pkg/store"
	"bourse/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	// ---- Reference data ----
	st, err := store.Open(cfg.Node.DataDir)
	if err != nil {
		sugar.Fatalw("store_open_failed", "path", cfg.Node.DataDir, "err", err)
	}
	defer st.Close()

	brokers, err := st.LoadBrokers()
	if err != nil {
		sugar.Fatalw("load_brokers_failed", "err", err)
	}
	shareholders, err := st.LoadShareholders()
	if err != nil {
		sugar.Fatalw("load_shareholders_failed", "err", err)
	}
	defs, err := st.LoadSecurities()
	if err != nil {
		sugar.Fatalw("load_securities_failed", "err", err)
	}

	if len(defs) == 0 && cfg.Node.Seed {
		brokers, shareholders, defs = seedReferenceData(st, sugar)
	}
	if len(defs) == 0 {
		sugar.Fatal("no securities in store; seed reference data or load a dataset")
	}

	securities := make([]*matching.Security, len(defs))
	for i, def := range defs {
		securities[i] = matching.NewSecurity(def.ISIN, def.Symbol, def.LastTradePrice)
	}
	sugar.Infow("reference_data_loaded",
		"securities", len(securities), "brokers", len(brokers), "shareholders", len(shareholders))

	// ---- Engine ----
	eng := engine.New(sugar, securities, brokers, shareholders, cfg.Node.QueueDepth)

	// Trade history sink
	go st.RunTradeSink(eng.Subscribe(1024), func(err error) {
		sugar.Errorw("trade_persist_failed", "err", err)
	})

	// ---- API ----
	server := api.NewServer(sugar, eng, st, util.RealClock{})
	go func() {
		if err := server.Start(cfg.Node.ListenAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	sugar.Info("shutting down")
	eng.Close()

	// Persist final ledger balances so a restart resumes where trading
	// stopped.
	for _, b := range brokers {
		if err := st.SaveBroker(b); err != nil {
			sugar.Errorw("save_broker_failed", "broker", b.ID, "err", err)
		}
	}
	for _, sh := range shareholders {
		if err := st.SaveShareholder(sh); err != nil {
			sugar.Errorw("save_shareholder_failed", "shareholder", sh.ID, "err", err)
		}
	}
	for _, sec := range securities {
		def := store.SecurityDef{ISIN: sec.ISIN, Symbol: sec.Symbol, LastTradePrice: sec.LastTradePrice()}
		if err := st.SaveSecurity(def); err != nil {
			sugar.Errorw("save_security_failed", "isin", sec.ISIN, "err", err)
		}
	}
}

// seedReferenceData loads a small development dataset into an empty
// store: two securities, two brokers, two shareholders.
func seedReferenceData(st *store.Store, sugar *zap.SugaredLogger) (
	[]*ledger.Broker, []*ledger.Shareholder, []store.SecurityDef,
) {
	brokers := []*ledger.Broker{
		ledger.NewBroker(1, "Alpha Securities", 100_000_000_000),
		ledger.NewBroker(2, "Beta Brokerage", 100_000_000_000),
	}
	shareholders := []*ledger.Shareholder{
		ledger.NewShareholder(1, "First Investment Fund"),
		ledger.NewShareholder(2, "Second Investment Fund"),
	}
	defs := []store.SecurityDef{
		{ISIN: "IRO1MAPN0001", Symbol: "MAPN", LastTradePrice: 15500},
		{ISIN: "IRO1FOLD0001", Symbol: "FOLD", LastTradePrice: 4200},
	}
	for _, def := range defs {
		shareholders[0].SetPosition(def.ISIN, 1_000_000)
		shareholders[1].SetPosition(def.ISIN, 1_000_000)
	}

	for _, b := range brokers {
		if err := st.SaveBroker(b); err != nil {
			log.Fatalf("seed broker: %v", err)
		}
	}
	for _, sh := range shareholders {
		if err := st.SaveShareholder(sh); err != nil {
			log.Fatalf("seed shareholder: %v", err)
		}
	}
	for _, def := range defs {
		if err := st.SaveSecurity(def); err != nil {
			log.Fatalf("seed security: %v", err)
		}
	}

	sugar.Infow("seeded_reference_data", "securities", len(defs))
	return brokers, shareholders, defs
}
