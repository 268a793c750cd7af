// Binary measured collects measurements with configured plugins.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/go-faster/measured/internal/autozpages"
	"github.com/go-faster/measured/internal/pipeline"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		ctx = zctx.WithOpenTelemetryZap(ctx)

		root := &cobra.Command{
			Use:   "measured",
			Short: "measured collects measurements with configured plugins",

			SilenceUsage:  true,
			SilenceErrors: true,
		}
		var cfgPath string
		root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to config (defaults to "+defaultConfigName+")")
		root.AddCommand(
			newRunCommand(&cfgPath, m),
			newMetricsCommand(&cfgPath),
			newPluginsCommand(),
		)
		root.SetArgs(os.Args[1:])
		return root.ExecuteContext(ctx)
	},
		app.WithServiceName("measured"),
	)
}

func newRunCommand(cfgPath *string, m *app.Telemetry) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run measurement pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			lg := zctx.From(ctx)

			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return errors.Wrap(err, "load config")
			}
			b, err := newBuilder(cfg, pipeline.Options{
				Logger:         lg,
				MeterProvider:  m.MeterProvider(),
				TracerProvider: m.TracerProvider(),
			})
			if err != nil {
				return errors.Wrap(err, "setup")
			}
			p, err := b.Build()
			if err != nil {
				return multierr.Append(errors.Wrap(err, "build"), b.Close())
			}
			defer func() {
				if err := p.Close(); err != nil {
					lg.Error("Close pipeline", zap.Error(err))
				}
			}()

			runCtx := m.ShutdownContext()
			g, runCtx := errgroup.WithContext(runCtx)
			if bind := cfg.ZPages.Bind; bind != "" {
				zp, err := autozpages.Listen(m.TracerProvider(), bind, lg.Named("zpages"))
				if err != nil {
					return errors.Wrap(err, "setup zPages")
				}
				if zp != nil {
					g.Go(zp.Serve)
					g.Go(func() error {
						<-runCtx.Done()
						ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
						defer cancel()
						return zp.Shutdown(ctx)
					})
				}
			}
			g.Go(func() error {
				lg.Info("Starting pipeline", zap.Duration("interval", cfg.Interval))
				return p.Run(runCtx, cfg.Interval)
			})
			return g.Wait()
		},
	}
}

func newMetricsCommand(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Print metrics registered by enabled plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return errors.Wrap(err, "load config")
			}
			b, err := newBuilder(cfg, pipeline.Options{})
			if err != nil {
				return errors.Wrap(err, "setup")
			}
			p, err := b.Build()
			if err != nil {
				return multierr.Append(errors.Wrap(err, "build"), b.Close())
			}
			defer func() {
				_ = p.Close()
			}()
			return printMetrics(cmd.OutOrStdout(), p)
		},
	}
}

func newPluginsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List available plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range pluginNames() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func printMetrics(w io.Writer, p *pipeline.Pipeline) error {
	reg := p.Metrics()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tUNIT\tDESCRIPTION")
	for m := range reg.All() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			m.ID, m.Name, m.ValueType, reg.UnitName(m.Unit), m.Description,
		)
	}
	return tw.Flush()
}
