package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/halvalla/stabled/internal/config"
	"github.com/halvalla/stabled/internal/core/engine"
	"github.com/halvalla/stabled/internal/core/policy"
	grpcserver "github.com/halvalla/stabled/internal/grpc"
	"github.com/halvalla/stabled/internal/index"
	"github.com/halvalla/stabled/internal/logging"
	"github.com/halvalla/stabled/internal/monitor"
	"github.com/halvalla/stabled/internal/rpc"
	"github.com/halvalla/stabled/internal/storage/history"
	"github.com/halvalla/stabled/internal/storage/kv"
	"github.com/halvalla/stabled/internal/storage/utxostore"
)

var standalone bool

// serveCmd runs the node until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the policy node",
	Long: `Run the stabled node: open the UTXO store, register the configured
policy deployment, and serve until interrupted.

Surfaces:
- HTTP JSON-RPC on the configured rpc address (/ and /rpc)
- WebSocket subscription streams on the same listener (/ws)
- gRPC when enabled
- liquidation monitor sweeping the position index

SIGINT and SIGTERM shut everything down gracefully.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&standalone, "standalone", false, "accept witnesses without verifying signatures")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if standalone {
		cfg.Node.Standalone = true
	}

	node, err := buildNode(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer node.close()

	if !quiet {
		printBanner(cfg, node)
	}
	return node.run(cfg)
}

// node holds everything serve wires together.
type node struct {
	cfg *config.Config

	store   *utxostore.Store
	hist    history.Store
	eng     *engine.Engine
	pol     *policy.Policy
	idx     *index.Index
	rpcSrv  *rpc.Server
	wsSrv   *rpc.WebSocketServer
	grpcSrv *grpcserver.Server
	mon     *monitor.Monitor
}

// buildNode opens storage and wires the engine, index, servers and
// monitor from the configuration.
func buildNode(ctx context.Context, cfg *config.Config) (*node, error) {
	policyID, err := cfg.Policy.ID()
	if err != nil {
		return nil, err
	}
	params, err := cfg.Policy.Params()
	if err != nil {
		return nil, err
	}
	pol, err := policy.New(params, policyID)
	if err != nil {
		return nil, err
	}

	db, err := kv.Open(cfg.Database.KV())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	store, err := utxostore.New(db, cfg.Database.UTXOCacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}

	hist, err := history.Open(ctx, cfg.History.Store())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open history: %w", err)
	}

	n := &node{cfg: cfg, store: store, hist: hist, pol: pol}

	n.eng = engine.New(store, engine.Config{
		SkipSignatureVerification: cfg.Node.Standalone,
		AllowUnknownPolicies:      cfg.Node.AllowUnknownPolicies,
		EnforceBalance:            cfg.Node.EnforceBalance,
	})
	if err := n.eng.Register(pol); err != nil {
		n.close()
		return nil, err
	}

	n.idx, err = index.New(params)
	if err != nil {
		n.close()
		return nil, err
	}
	if err := n.idx.Rebuild(store); err != nil {
		n.close()
		return nil, fmt.Errorf("rebuild index: %w", err)
	}

	if _, ok := hist.(history.NoneStore); !ok {
		n.eng.SetRecorder(history.NewRecorder(hist, logging.New("history")))
	}

	svc := &rpc.Services{
		Engine:  n.eng,
		Policy:  pol,
		Index:   n.idx,
		History: hist,
		Info: rpc.NodeInfo{
			Version:       Version,
			KVBackend:     cfg.Database.Backend,
			HistoryDriver: cfg.History.Driver,
			StartedAt:     time.Now(),
		},
	}
	n.rpcSrv = rpc.NewServer(svc, cfg.RPC.Timeout(), logging.New("rpc"))

	// The WebSocket publisher shares the engine's events hook with the
	// index; without streams the index listens alone.
	events := engine.Events(n.idx)
	sink := monitor.Sink(monitor.NopSink{})
	if cfg.WebSocket.Enabled {
		n.wsSrv = rpc.NewWebSocketServer(n.rpcSrv.Registry(), logging.New("websocket"))
		pub := rpc.NewPublisher(n.wsSrv, params.OracleEntity)
		events = engine.FanOut(n.idx, pub)
		sink = pub
	}
	n.eng.SetEvents(events)

	if cfg.Monitor.Enabled {
		n.mon, err = monitor.New(n.idx, params, sink, cfg.Monitor.Interval(), logging.New("monitor"))
		if err != nil {
			n.close()
			return nil, err
		}
	}

	if cfg.GRPC.Enabled {
		grpcCfg := grpcserver.DefaultServerConfig()
		grpcCfg.Address = cfg.GRPC.Address
		n.grpcSrv, err = grpcserver.NewServer(grpcCfg, grpcserver.Services{
			Engine: n.eng,
			Policy: pol,
			Index:  n.idx,
		})
		if err != nil {
			n.close()
			return nil, err
		}
	}

	return n, nil
}

// run serves until SIGINT or SIGTERM.
func (n *node) run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.RPC.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/", n.rpcSrv)
		mux.Handle("/rpc", n.rpcSrv)
		if n.wsSrv != nil {
			mux.Handle("/ws", n.wsSrv)
		}
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok","service":"stabled"}`))
		})

		httpSrv := &http.Server{Addr: cfg.RPC.Address, Handler: mux}
		g.Go(func() error {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("rpc server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
	}

	if n.grpcSrv != nil {
		if err := n.grpcSrv.StartAsync(); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		g.Go(func() error {
			<-ctx.Done()
			n.grpcSrv.Stop()
			return nil
		})
	}

	if n.mon != nil {
		g.Go(func() error {
			if err := n.mon.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// close releases storage. Safe on a partially built node.
func (n *node) close() {
	if n.hist != nil {
		n.hist.Close()
	}
	if n.store != nil {
		n.store.Close()
	}
}

func printBanner(cfg *config.Config, n *node) {
	fmt.Println("Starting stabled - stablecoin policy node")
	fmt.Println("=========================================")
	fmt.Printf("  policy:     %s\n", n.pol.Self())
	fmt.Printf("  collateral: %d%% minimum\n", n.pol.Params().MinCollateralPercent)
	fmt.Printf("  database:   %s\n", cfg.Database.Backend)
	fmt.Printf("  history:    %s\n", cfg.History.Driver)
	if cfg.RPC.Enabled {
		fmt.Printf("  JSON-RPC:   http://%s/\n", cfg.RPC.Address)
		if cfg.WebSocket.Enabled {
			fmt.Printf("  WebSocket:  ws://%s/ws\n", cfg.RPC.Address)
		}
		fmt.Printf("  health:     http://%s/health\n", cfg.RPC.Address)
	}
	if cfg.GRPC.Enabled {
		fmt.Printf("  gRPC:       %s\n", cfg.GRPC.Address)
	}
	if cfg.Node.Standalone {
		fmt.Println("  standalone: signature verification disabled")
	}
	fmt.Println()
}
