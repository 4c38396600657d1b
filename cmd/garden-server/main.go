// Command garden-server runs the SQL-backed projection of one chain's
// history and serves it over HTTP (spec §6). It is the server component:
// useful as a standalone binary, never imported by the core.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"garden.dev/garden/handler"
	"garden.dev/garden/httpapi"
	"garden.dev/garden/protocol"
	"garden.dev/garden/sqlindex"
	"garden.dev/garden/substrate/localstore"
)

const (
	defaultFlowerpotAddr = "[::]:13874"
	defaultAPIAddr       = "[::1]:8080"
	syncInterval         = 5 * time.Second
)

type multiStringFlag []string

func (m *multiStringFlag) String() string {
	if m == nil {
		return ""
	}
	return strings.Join(*m, ",")
}

func (m *multiStringFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return runWithContext(ctx, args, stdout, stderr)
}

// runWithContext is run's body, parameterized on ctx so tests can force
// shutdown without sending OS signals.
func runWithContext(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("garden-server", flag.ContinueOnError)
	fs.SetOutput(stderr)
	storagePath := fs.String("storage", "", "path to the substrate storage database (required)")
	indexPath := fs.String("index", "", "path to the SQL-backed index database (required)")
	var nodeAddrs multiStringFlag
	fs.Var(&nodeAddrs, "node", "remote substrate node address (repeatable)")
	flowerpotAddr := fs.String("flowerpot-addr", defaultFlowerpotAddr, "address this server's substrate node listens on")
	apiAddr := fs.String("api-addr", defaultAPIAddr, "address the HTTP API listens on")
	logPath := fs.String("log", "", "path to append structured logs to, in addition to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *storagePath == "" || *indexPath == "" {
		_, _ = fmt.Fprintln(stderr, "garden-server: --storage and --index are required")
		return 2
	}

	logger := logrus.New()
	logger.SetOutput(stderr)
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "garden-server: open log file: %v\n", err)
			return 2
		}
		defer f.Close()
		logger.SetOutput(io.MultiWriter(stderr, f))
	}

	if len(nodeAddrs) > 0 {
		logger.WithField("nodes", []string(nodeAddrs)).Warn(
			"remote substrate node addresses given but this build only wires the in-process devnet reference substrate; addresses are recorded for a future networked substrate client and otherwise unused")
	}
	logger.WithField("addr", *flowerpotAddr).Info(
		"flowerpot listen address recorded; inbound substrate networking is out of scope for this build")

	store, err := localstore.Open(*storagePath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "garden-server: open storage: %v\n", err)
		return 2
	}
	defer store.Close()

	index, err := sqlindex.Open(*indexPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "garden-server: open index: %v\n", err)
		return 2
	}
	defer index.Close()

	h := handler.New(store)
	srv := httpapi.New(h, index, protocol.BlockchainAddress{})

	go runSyncLoop(ctx, logger, index, store)

	httpServer := &http.Server{Addr: *apiAddr, Handler: srv.Router()}
	serveErr := make(chan error, 1)
	go func() {
		_, _ = fmt.Fprintf(stdout, "garden-server: api listening on %s\n", *apiAddr)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		_, _ = fmt.Fprintln(stdout, "garden-server: stopped")
		return 0
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			_, _ = fmt.Fprintf(stderr, "garden-server: api server failed: %v\n", err)
			return 1
		}
		return 0
	}
}

// runSyncLoop drives index.Sync on a fixed cadence until ctx is cancelled.
// Errors are logged and retried on the next tick, never fatal — matching
// the client's background projection loop policy.
func runSyncLoop(ctx context.Context, logger *logrus.Logger, index *sqlindex.Store, store *localstore.Store) {
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := index.Sync(store); err != nil {
				logger.WithError(err).Warn("index sync failed, will retry next tick")
			}
		}
	}
}
