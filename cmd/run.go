package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pbot/pkg/bus"
	"pbot/pkg/config"
	"pbot/pkg/dispatch"
	"pbot/pkg/module"
	"pbot/pkg/modules/addrank"
	"pbot/pkg/modules/fwd"
	"pbot/pkg/modules/getinfo"
	"pbot/pkg/record"
	"pbot/pkg/schedule"
	"pbot/pkg/status"
	"pbot/pkg/telegram"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Log in and run the enabled modules",
	Long:  "Connects to Telegram as the configured account and dispatches every new message to the enabled modules until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup("cmd.run")
		if err != nil {
			return err
		}

		entries, err := schedule.ParseEntries(cfg.Schedule.Entries)
		if err != nil {
			return err
		}

		var records *record.Store
		if cfg.Modules.RecordPath != "" {
			records, err = record.Open(cfg.Modules.RecordPath, log)
			if err != nil {
				return err
			}
			defer records.Close()
		}

		client, err := newClient(cfg, log)
		if err != nil {
			return err
		}

		events := bus.New()
		defer events.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		err = client.Run(ctx, func(ctx context.Context) error {
			return serve(ctx, cfg, client, records, entries, events, log)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("pbot stopped with an error", "error", err)
			return err
		}
		log.Info("pbot stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// serve wires modules, the dispatcher and the optional scheduler and status server
// onto an authorized connection.
func serve(ctx context.Context, cfg *config.Config, conn telegram.Conn, records *record.Store, entries []schedule.Entry, events *bus.Bus, log *slog.Logger) error {
	var (
		ledger     fwd.Ledger
		statusOpts []status.Option
	)
	if records != nil {
		ledger = records
		statusOpts = append(statusOpts, status.WithForwards(records))
	}

	handles, err := enabledModules(ctx, cfg, conn, ledger, log)
	if err != nil {
		return err
	}
	registry, err := module.NewRegistry(handles...)
	if err != nil {
		for _, h := range handles {
			h.Stop()
		}
		return err
	}
	defer registry.Close()

	dispatcher, err := dispatch.New(conn, registry, log, dispatch.WithBus(events))
	if err != nil {
		return err
	}

	// subscribe before the dispatcher announces itself.
	var svc *status.Service
	if cfg.Status.Addr != "" {
		svc, err = status.New(cfg.Status.Addr, events, log, statusOpts...)
		if err != nil {
			return err
		}
	}

	if len(entries) > 0 {
		scheduler := schedule.New(conn, entries, log, events)
		if err := scheduler.Start(ctx); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	if svc != nil {
		g.Go(func() error { return svc.Run(gctx) })
	}

	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()
	g.Go(func() error {
		// the status server follows the dispatcher's lifetime.
		defer cancel()
		return dispatcher.Run(runCtx)
	})

	log.Info("pbot started", "modules", registry.Names(), "self", conn.Self().FullName())
	return g.Wait()
}

// enabledModules activates the configured modules in PBOT_MODULES order.
func enabledModules(ctx context.Context, cfg *config.Config, conn telegram.Conn, ledger fwd.Ledger, log *slog.Logger) ([]*module.Handle, error) {
	handles := make([]*module.Handle, 0, len(cfg.Modules.Enabled))
	fail := func(err error) ([]*module.Handle, error) {
		for _, h := range handles {
			h.Stop()
		}
		return nil, err
	}

	for _, name := range cfg.Modules.Enabled {
		var (
			h   *module.Handle
			err error
		)
		switch name {
		case config.ModuleFwd:
			target, resolveErr := conn.ResolveChat(ctx, cfg.Modules.FwdTarget)
			if resolveErr != nil {
				return fail(fmt.Errorf("resolve forward target %d: %w", cfg.Modules.FwdTarget, resolveErr))
			}
			h, err = module.Activate(fwd.New, fwd.Config{Target: target, Records: ledger, Log: log}, log)
		case config.ModuleAddRank:
			h, err = module.Activate(addrank.New, addrank.Config{Log: log}, log)
		case config.ModuleGetInfo:
			h, err = module.Activate(getinfo.New, getinfo.Config{Log: log}, log)
		default:
			err = fmt.Errorf("unknown module %q", name)
		}
		if err != nil {
			return fail(fmt.Errorf("configure %s module: %w", name, err))
		}
		handles = append(handles, h)
	}

	if len(handles) == 0 {
		return nil, errors.New("no modules are enabled")
	}
	return handles, nil
}
