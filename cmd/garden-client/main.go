// Command garden-client is the reference client: it holds an encrypted
// account vault, maintains the in-memory index by polling a substrate on a
// fixed cadence, and can publish posts (spec §6). Production substrate
// networking is out of scope, so --devnet is the only backend this binary
// wires up — a single-process bbolt-backed reference substrate suitable for
// local testing, matching substrate/localstore's stated purpose.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"garden.dev/garden/config"
	"garden.dev/garden/handler"
	"garden.dev/garden/index"
	"garden.dev/garden/protocol"
	"garden.dev/garden/substrate"
	"garden.dev/garden/substrate/localstore"
	"garden.dev/garden/vault"
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

func runWithContext(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	defaultDir, dirErr := config.DataDir()
	if dirErr != nil {
		defaultDir = "."
	}

	fs := flag.NewFlagSet("garden-client", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dataDir := fs.String("datadir", defaultDir, "client data directory")
	devnet := fs.Bool("devnet", false, "use the in-process bbolt-backed reference substrate instead of a networked one")
	account := fs.String("account", "", "account name to publish as (created on first use)")
	password := fs.String("password", "", "account password (empty is a valid, deliberately-unencrypted choice)")
	postContent := fs.String("post", "", "publish a post with this content and exit")
	var tags multiStringFlag
	fs.Var(&tags, "tag", "tag to attach to --post (repeatable)")
	interval := fs.Duration("interval", 5*time.Second, "background projection cadence")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if !*devnet {
		_, _ = fmt.Fprintln(stderr, "garden-client: only --devnet is wired to a concrete substrate in this build")
		return 2
	}
	if *account == "" {
		_, _ = fmt.Fprintln(stderr, "garden-client: --account is required")
		return 2
	}

	logger := logrus.New()
	logger.SetOutput(stderr)

	configPath := filepath.Join(*dataDir, "config.json")
	cfg, err := config.Load(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "garden-client: load config: %v\n", err)
		return 2
	}
	if err := config.Save(configPath, cfg); err != nil {
		_, _ = fmt.Fprintf(stderr, "garden-client: save config: %v\n", err)
		return 2
	}

	store, err := localstore.Open(filepath.Join(*dataDir, "devnet.db"))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "garden-client: open devnet storage: %v\n", err)
		return 2
	}
	defer store.Close()

	signingKey, err := loadOrCreateAccount(*dataDir, *account, *password)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "garden-client: account: %v\n", err)
		return 2
	}

	chainAddr, err := protocol.BlockchainAddressFromBase64(cfg.Blockchain.Address)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "garden-client: invalid blockchain address in config: %v\n", err)
		return 2
	}

	if *postContent != "" {
		event, err := buildPostEvent(*postContent, tags)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "garden-client: %v\n", err)
			return 2
		}
		h := handler.New(store)
		if err := h.SendPost(signingKey, chainAddr, event); err != nil {
			_, _ = fmt.Fprintf(stderr, "garden-client: publish failed: %v\n", err)
			return 1
		}
		if _, err := store.SealPendingBlock(time.Now()); err != nil {
			_, _ = fmt.Fprintf(stderr, "garden-client: seal block: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(stdout, "garden-client: post published")
		return 0
	}

	idx := index.New()
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	_, _ = fmt.Fprintln(stdout, "garden-client: running background projection loop")
	for {
		select {
		case <-ctx.Done():
			_, _ = fmt.Fprintln(stdout, "garden-client: stopped")
			return 0
		case <-ticker.C:
			if err := idx.Update(store); err != nil {
				logger.WithError(err).Warn("projection failed, will retry next tick")
				continue
			}
			logger.WithFields(logrus.Fields{
				"posts":    len(idx.Posts()),
				"comments": len(idx.Comments()),
			}).Info("projection updated")
		}
	}
}

func buildPostEvent(content string, rawTags []string) (protocol.PostEvent, error) {
	c, err := protocol.NewContent(content)
	if err != nil {
		return protocol.PostEvent{}, fmt.Errorf("invalid content: %w", err)
	}
	tags := make([]protocol.Tag, 0, len(rawTags))
	for _, raw := range rawTags {
		tag, err := protocol.NewTag(raw)
		if err != nil {
			return protocol.PostEvent{}, fmt.Errorf("invalid tag %q: %w", raw, err)
		}
		tags = append(tags, tag)
	}
	return protocol.NewPostEvent(c, tags)
}

// loadOrCreateAccount opens the vault at dataDir/accounts.json, returning
// the named account's signing key, creating both the account and a fresh
// signing key on first use.
func loadOrCreateAccount(dataDir, name, password string) (substrate.SigningKey, error) {
	accountsPath := filepath.Join(dataDir, "accounts.json")
	accounts, err := vault.Load(accountsPath)
	if err != nil {
		return nil, err
	}

	accountName, err := protocol.NewName(name)
	if err != nil {
		return nil, fmt.Errorf("invalid account name: %w", err)
	}

	for _, acc := range accounts {
		if acc.Name == accountName {
			key, err := acc.SigningKey(password)
			if err != nil {
				return nil, err
			}
			return key, nil
		}
	}

	signingKey, err := localstore.NewSigningKey()
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	acc, err := vault.New(accountName, signingKey, password)
	if err != nil {
		return nil, err
	}
	accounts = append(accounts, acc)
	if err := vault.Save(accountsPath, accounts); err != nil {
		return nil, err
	}
	return signingKey, nil
}
