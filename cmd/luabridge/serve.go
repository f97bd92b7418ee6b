package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/reglet-dev/luabridge/application/config"
	"github.com/reglet-dev/luabridge/domain/entities"
	"github.com/reglet-dev/luabridge/server/serverfx"
)

var (
	serveConfig string
	serveScript string
	serveListen string
	serveSlots  int
	serveAsync  int
)

var serveCmd = &cobra.Command{
	Use:   "serve [script.lua|script.ws]",
	Short: "Start the uwsgi server",
	Long: `Start the uwsgi server and load the handler script into every slot.

The script comes from --lua, from a positional argument ending in .lua or .ws,
or from the configuration file. Flags override the file and LUABRIDGE_*
environment variables.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		script, err := resolveScript(serveScript, args)
		if err != nil {
			return err
		}
		cfg, err := config.Load(serveConfig,
			entities.WithScript(script),
			entities.WithListen(serveListen),
			entities.WithSlots(serveSlots),
			entities.WithAsync(serveAsync),
		)
		if err != nil {
			return err
		}
		return run(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfig, "config", "c", "", "Configuration file (.yaml, .yml or .toml)")
	serveCmd.Flags().StringVar(&serveScript, "lua", "", "Lua handler script")
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "uwsgi socket address, host:port")
	serveCmd.Flags().IntVar(&serveSlots, "slots", 0, "Number of interpreter slots")
	serveCmd.Flags().IntVar(&serveAsync, "async", -1, "Requests multiplexed per slot")
}

// resolveScript applies the magic rule: a positional target names the script
// only when it ends in .lua or .ws. --lua wins over the positional target.
func resolveScript(flag string, args []string) (string, error) {
	if len(args) == 0 {
		return flag, nil
	}
	if !config.IsScriptTarget(args[0]) {
		return "", fmt.Errorf("unable to find a handler for %q", args[0])
	}
	if flag != "" {
		return flag, nil
	}
	return args[0], nil
}

func run(ctx context.Context, cfg entities.Config) error {
	app := fx.New(
		serverfx.Module(cfg),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
	)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	var sig fx.ShutdownSignal
	select {
	case sig = <-app.Wait():
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		return err
	}
	if sig.ExitCode != 0 {
		return fmt.Errorf("server exited with code %d", sig.ExitCode)
	}
	return nil
}
