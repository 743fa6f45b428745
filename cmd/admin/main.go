package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	cli "github.com/urfave/cli/v2"

	"mediaguard/backend/internal/api/handler"
	"mediaguard/backend/internal/bootstrap"
	"mediaguard/backend/internal/config"
	"mediaguard/backend/internal/identity"
	"mediaguard/backend/internal/ledger"
	"mediaguard/backend/internal/logging"
	"mediaguard/backend/internal/storage"
)

func main() {
	app := &cli.App{
		Name:  "mediaguard-admin",
		Usage: "owner tooling for the moderation ledger",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to config.yaml",
				Value:   "config.yaml",
				EnvVars: []string{"MEDIAGUARD_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			userCmd,
			postsCmd,
			blockedCmd,
			pendingCmd,
			unblockCmd,
			rejectCmd,
			statsCmd,
			dashboardCmd,
			tokenCmd,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var userCmd = &cli.Command{
	Name:      "user",
	Usage:     "show a participant record",
	ArgsUsage: "<address>",
	Action: func(cctx *cli.Context) error {
		addr, err := addressArg(cctx)
		if err != nil {
			return err
		}
		return withLedger(cctx, func(ctx context.Context, svc *ledger.Service) error {
			p, err := svc.GetUser(ctx, addr)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"participant": p, "state": p.State()})
		})
	},
}

var postsCmd = &cli.Command{
	Name:      "posts",
	Usage:     "list the posts of one author",
	ArgsUsage: "<address>",
	Action: func(cctx *cli.Context) error {
		addr, err := addressArg(cctx)
		if err != nil {
			return err
		}
		return withLedger(cctx, func(ctx context.Context, svc *ledger.Service) error {
			posts, err := svc.PostsByAuthor(ctx, addr)
			if err != nil {
				return err
			}
			return printJSON(posts)
		})
	},
}

var blockedCmd = &cli.Command{
	Name:  "blocked",
	Usage: "list suspended participants",
	Action: func(cctx *cli.Context) error {
		return withLedger(cctx, func(ctx context.Context, svc *ledger.Service) error {
			list, err := svc.ListBlocked(ctx)
			if err != nil {
				return err
			}
			return printJSON(list)
		})
	},
}

var pendingCmd = &cli.Command{
	Name:  "pending",
	Usage: "list unblock requests awaiting review",
	Action: func(cctx *cli.Context) error {
		return withLedger(cctx, func(ctx context.Context, svc *ledger.Service) error {
			list, err := svc.ListPendingUnblock(ctx)
			if err != nil {
				return err
			}
			return printJSON(list)
		})
	},
}

var unblockCmd = &cli.Command{
	Name:      "unblock",
	Usage:     "approve a pending unblock request as the owner",
	ArgsUsage: "<address>",
	Action: func(cctx *cli.Context) error {
		addr, err := addressArg(cctx)
		if err != nil {
			return err
		}
		return withLedger(cctx, func(ctx context.Context, svc *ledger.Service) error {
			if err := svc.AnalyzeAndUnblockUser(ctx, svc.Owner(), addr); err != nil {
				return err
			}
			fmt.Printf("%s unblocked\n", addr)
			return nil
		})
	},
}

var rejectCmd = &cli.Command{
	Name:      "reject",
	Usage:     "reject a pending unblock request as the owner",
	ArgsUsage: "<address>",
	Action: func(cctx *cli.Context) error {
		addr, err := addressArg(cctx)
		if err != nil {
			return err
		}
		return withLedger(cctx, func(ctx context.Context, svc *ledger.Service) error {
			if err := svc.RejectUnblockRequest(ctx, svc.Owner(), addr); err != nil {
				return err
			}
			fmt.Printf("unblock request from %s rejected\n", addr)
			return nil
		})
	},
}

var statsCmd = &cli.Command{
	Name:  "stats",
	Usage: "print ledger counters",
	Action: func(cctx *cli.Context) error {
		return withLedger(cctx, func(ctx context.Context, svc *ledger.Service) error {
			st, err := svc.Stats(ctx)
			if err != nil {
				return err
			}
			return printJSON(st)
		})
	},
}

var dashboardCmd = &cli.Command{
	Name:  "dashboard",
	Usage: "print counters with the newest posts, blocks and unblock requests",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "limit", Value: ledger.DefaultDashboardLimit, Usage: "entries per list"},
	},
	Action: func(cctx *cli.Context) error {
		return withLedger(cctx, func(ctx context.Context, svc *ledger.Service) error {
			d, err := svc.Dashboard(ctx, cctx.Int("limit"))
			if err != nil {
				return err
			}
			return printJSON(d)
		})
	},
}

var tokenCmd = &cli.Command{
	Name:      "token",
	Usage:     "mint an API token for an address",
	ArgsUsage: "<address>",
	Action: func(cctx *cli.Context) error {
		addr, err := addressArg(cctx)
		if err != nil {
			return err
		}
		cfg, err := config.Load(cctx.String("config"))
		if err != nil {
			return err
		}
		if cfg.JWTSecret == "" {
			return errors.New("JWT_SECRET is not set")
		}
		tok, err := handler.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTokenTTL).Issue(addr)
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	},
}

// withLedger opens the ledger from config, runs fn and releases everything.
// Mutations are published to Redis when it is configured so running API
// instances see them.
func withLedger(cctx *cli.Context, fn func(ctx context.Context, svc *ledger.Service) error) error {
	ctx := cctx.Context
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	store, err := bootstrap.OpenStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var publisher ledger.Publisher
	rdb, err := bootstrap.ConnectRedis(ctx, cfg)
	if err != nil {
		logger.Warn("events will not be published", "err", err)
	} else if rdb != nil {
		defer rdb.Close()
		publisher = storage.NewRedisPublisher(rdb, config.EventsChannel)
	}

	svc, err := bootstrap.OpenLedger(ctx, cfg, store, publisher, logger)
	if err != nil {
		return err
	}
	return fn(ctx, svc)
}

func addressArg(cctx *cli.Context) (identity.Identity, error) {
	if cctx.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one <address> argument")
	}
	return identity.Parse(cctx.Args().First())
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
