package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ceyewan/nacos-mcp/clog"
	"github.com/ceyewan/nacos-mcp/config"
	"github.com/ceyewan/nacos-mcp/mcpserver"
	"github.com/ceyewan/nacos-mcp/metrics"
	"github.com/ceyewan/nacos-mcp/registry"
	"github.com/ceyewan/nacos-mcp/settings"
	"github.com/ceyewan/nacos-mcp/trace"
	"github.com/ceyewan/nacos-mcp/xerrors"
)

// cliFlags 命令行参数，非空时覆盖配置文件与环境变量
type cliFlags struct {
	configFile string
	logLevel   string
	driver     string

	host      string
	port      int
	mountPath string
}

func newRootCommand() *cobra.Command {
	f := &cliFlags{}

	root := &cobra.Command{
		Use:   "nacos-mcp",
		Short: "MCP server that registers itself with Nacos",
		Long: `nacos-mcp runs a Model Context Protocol server and keeps it registered
with a service registry (Nacos by default) for as long as its transport runs.

Configuration is read from nacos-mcp.yaml in the working directory or ./config,
from a .env file, and from NACOS_MCP_* environment variables. Flags win over all
of them.`,
		Version:       version + " (" + commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&f.configFile, "config", "c", "", "Path to the configuration file")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&f.driver, "registry", "", "Registry driver (nacos, etcd, memory)")

	root.AddCommand(newStdioCommand(f), newHTTPCommand(f))
	return root
}

func newStdioCommand(f *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Serve MCP over stdin/stdout",
		Long: `Serve MCP over stdin/stdout. The instance is registered without a port or
path and deregistered when the input stream closes or the process is signalled.
Logs always go to stderr in this mode.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), f, registry.TransportStdio)
		},
	}
}

func newHTTPCommand(f *cliFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "http",
		Aliases: []string{"streamable", "streaming"},
		Short:   "Serve MCP over streamable HTTP",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), f, registry.TransportStreaming)
		},
	}
	cmd.Flags().StringVar(&f.host, "host", "", "Listen address (default 0.0.0.0)")
	cmd.Flags().IntVarP(&f.port, "port", "p", 0, "Listen port (default 8000)")
	cmd.Flags().StringVar(&f.mountPath, "mount-path", "", "Path the MCP endpoint is mounted at, empty serves every path")
	return cmd
}

// overrides 把子命令与参数应用到配置上
func (f *cliFlags) overrides(kind registry.TransportKind) settings.Override {
	return func(s *settings.Settings) {
		s.Transport.Kind = kind.String()
		// stdio 不接受端口与挂载路径，来自文件或环境变量的取值交由校验报错
		if kind == registry.TransportStreaming {
			if f.host != "" {
				s.Transport.Host = f.host
			}
			if f.port != 0 {
				s.Transport.Port = f.port
			}
			if s.Transport.Port == 0 {
				s.Transport.Port = mcpserver.DefaultPort
			}
			if f.mountPath != "" {
				s.Transport.MountPath = f.mountPath
			}
		}
		if f.logLevel != "" {
			s.Log.Level = f.logLevel
		}
		if f.driver != "" {
			s.Registry.Driver = f.driver
		}
	}
}

func loadSettings(ctx context.Context, f *cliFlags, kind registry.TransportKind) (config.Loader, *settings.Settings, error) {
	var opts []config.Option
	if f.configFile != "" {
		opts = append(opts, config.WithConfigFile(f.configFile))
	}
	loader, err := config.New(opts...)
	if err != nil {
		return nil, nil, err
	}
	s, err := settings.Load(ctx, loader, f.overrides(kind))
	if err != nil {
		return nil, nil, err
	}
	return loader, s, nil
}

func serve(ctx context.Context, f *cliFlags, kind registry.TransportKind) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader, s, err := loadSettings(ctx, f, kind)
	if err != nil {
		return err
	}

	logger, err := clog.New(&s.Log)
	if err != nil {
		return xerrors.Wrap(err, "create logger")
	}
	defer logger.Flush()
	if err := settings.Watch(ctx, loader, logger); err != nil {
		logger.Warn("log level hot reload disabled", clog.Error(err))
	}

	shutdownTrace, err := trace.Init(&s.Trace)
	if err != nil {
		return xerrors.Wrap(err, "init tracing")
	}

	meter, err := metrics.New(&s.Metrics, metrics.WithLogger(logger))
	if err != nil {
		return xerrors.Wrap(err, "init metrics")
	}

	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := meter.Shutdown(flushCtx); err != nil {
			logger.Warn("failed to shut down metrics", clog.Error(err))
		}
		if err := shutdownTrace(flushCtx); err != nil {
			logger.Warn("failed to shut down tracing", clog.Error(err))
		}
	}()

	reg, closeRegistry, err := settings.OpenRegistry(ctx, s, logger, meter)
	if err != nil {
		return xerrors.Wrap(err, "open registry")
	}
	defer func() {
		if err := closeRegistry(); err != nil {
			logger.Warn("failed to close registry", clog.Error(err))
		}
	}()

	srv, err := mcpserver.New(s.Service.Name, reg,
		mcpserver.WithSettings(s),
		mcpserver.WithLogger(logger),
		mcpserver.WithMeter(meter),
		mcpserver.WithVersion(version))
	if err != nil {
		return err
	}
	registerTools(srv)

	logger.Info("nacos-mcp starting",
		clog.String("version", version),
		clog.String("transport", kind.String()),
		clog.String("registry", s.Registry.Driver),
		clog.String("config", loader.ConfigFileUsed()))

	if err := srv.Run(ctx); err != nil {
		logger.Error("nacos-mcp stopped with error", clog.Error(err))
		return err
	}
	logger.Info("nacos-mcp stopped", clog.String("state", srv.State().String()))
	return nil
}
