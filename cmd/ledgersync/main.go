package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prudhvinik1/ledgersync/internal/config"
	"github.com/prudhvinik1/ledgersync/internal/localstore"
	"github.com/prudhvinik1/ledgersync/internal/logging"
	"github.com/prudhvinik1/ledgersync/internal/merge"
	"github.com/prudhvinik1/ledgersync/internal/models"
	"github.com/prudhvinik1/ledgersync/internal/offline"
	"github.com/prudhvinik1/ledgersync/internal/remote"
	"github.com/prudhvinik1/ledgersync/internal/syncqueue"
	"github.com/rs/zerolog"
)

const usage = `usage: ledgersync [flags] <command> [args]

commands:
  add <type> <json>      create a record locally and queue it
  update <type> <json>   replace a record locally and queue it
  delete <type> <id>     delete a record locally and queue it
  get <type> <id>        print one local record
  list <type>            print every local record of a type
  queue                  print the pending sync queue
  sync                   drain the queue, then pull
  run                    stay in the foreground and sync in the background

types: expense, income, category, budget, contact, loan, loan_payment
`

type app struct {
	client    *offline.Client
	processor *syncqueue.Processor
	engine    *merge.Engine
	remote    *remote.Client
	cfg       config.ClientConfig
	logger    zerolog.Logger
}

func main() {
	flags := config.ClientFlags("ledgersync")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	args := flags.Args()
	if len(args) == 0 {
		flags.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadClient(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty)

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		logger.Fatal().Err(err).Msg("mkdir store dir")
	}
	store, err := localstore.Open(cfg.Store.Path, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open local store")
	}
	defer store.Close()

	userID := cfg.User.ID
	if userID == "" && cfg.API.Token != "" {
		if userID, err = remote.SubjectOf(cfg.API.Token); err != nil {
			logger.Fatal().Err(err).Msg("resolve user id")
		}
	}
	if userID == "" {
		logger.Fatal().Msg("user id is required: set user.id or api.token")
	}

	rc := remote.New(cfg.API.BaseURL, cfg.API.Token, cfg.API.Timeout, logger)
	processor := syncqueue.New(store, rc, syncqueue.Options{
		Workers: cfg.Sync.Workers,
		Logger:  logger,
	})
	engine := merge.New(store, rc, logger)

	a := &app{
		client:    offline.NewClient(store, processor, engine, userID, logger),
		processor: processor,
		engine:    engine,
		remote:    rc,
		cfg:       cfg,
		logger:    logger,
	}

	err = a.run(context.Background(), args[0], args[1:])
	// let drains triggered by a mutation finish before the store closes
	processor.Wait()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		store.Close()
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "add", "update":
		if len(args) != 2 {
			return fmt.Errorf("%s needs <type> <json>", cmd)
		}
		e, err := decode(args[0], args[1])
		if err != nil {
			return err
		}
		if cmd == "add" {
			e, err = a.client.Create(ctx, e)
		} else {
			e, err = a.client.Update(ctx, e)
		}
		if err != nil {
			return err
		}
		return printJSON(e)
	case "delete", "get":
		if len(args) != 2 {
			return fmt.Errorf("%s needs <type> <id>", cmd)
		}
		t, err := models.ParseEntityType(args[0])
		if err != nil {
			return err
		}
		if cmd == "delete" {
			return a.client.Delete(ctx, t, args[1])
		}
		e, err := a.client.Get(ctx, t, args[1])
		if err != nil {
			return err
		}
		return printJSON(e)
	case "list":
		if len(args) != 1 {
			return errors.New("list needs <type>")
		}
		t, err := models.ParseEntityType(args[0])
		if err != nil {
			return err
		}
		records, err := a.client.List(ctx, t)
		if err != nil {
			return err
		}
		return printJSON(records)
	case "queue":
		items, err := a.client.Queue(ctx)
		if err != nil {
			return err
		}
		unsynced, err := a.client.Unsynced(ctx)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"items": items, "unsynced": unsynced})
	case "sync":
		drained, pulled, err := a.client.Sync(ctx)
		if err != nil {
			return err
		}
		unsynced, err := a.client.Unsynced(ctx)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"drain": drained, "pull": pulled, "unsynced": unsynced})
	case "run":
		return a.foreground(ctx)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// foreground runs the scheduler until SIGINT or SIGTERM.
func (a *app) foreground(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := offline.NewScheduler(a.remote, a.processor, a.engine, a.logger)
	if err := scheduler.Start(ctx, a.cfg.Sync.ProbeInterval, a.cfg.Sync.PullInterval); err != nil {
		return err
	}
	<-ctx.Done()
	a.logger.Info().Msg("stopping")
	scheduler.Stop()
	return nil
}

func decode(typ, raw string) (models.Entity, error) {
	t, err := models.ParseEntityType(typ)
	if err != nil {
		return nil, err
	}
	return models.Decode(t, []byte(raw))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
