// Command server is the entry point of the Sentry MCP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/theapemachine/mcp-server-sentry/core/middleware"
	"github.com/theapemachine/mcp-server-sentry/pkg/auth"
	"github.com/theapemachine/mcp-server-sentry/pkg/config"
	"github.com/theapemachine/mcp-server-sentry/pkg/logging"
	"github.com/theapemachine/mcp-server-sentry/pkg/metrics"
	"github.com/theapemachine/mcp-server-sentry/pkg/sentry"
	"github.com/theapemachine/mcp-server-sentry/pkg/tools"
)

const (
	serverName    = "Sentry"
	serverVersion = "0.1.0"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "sentry-mcp",
		Short:        "Model Context Protocol server for the Sentry API",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("host", config.DefaultSentryHost, "Sentry host")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.Duration("timeout", 30*time.Second, "timeout of a single tool call")

	mustBind("sentry.host", flags.Lookup("host"))
	mustBind("log.level", flags.Lookup("log-level"))
	mustBind("log.format", flags.Lookup("log-format"))
	mustBind("sentry.request_timeout", flags.Lookup("timeout"))

	root.AddCommand(stdioCmd(), serveCmd())

	return root
}

func stdioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Serve one session over stdin/stdout with a static access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			logger := logging.New(cfg)

			if err := cfg.ValidateStdio(); err != nil {
				logger.Error("Invalid configuration", "error", err)
				return err
			}

			recorder := metrics.NewRecorder(prometheus.NewRegistry())
			dispatcher := newDispatcher(cfg, logger, recorder, tools.SessionContext{
				AccessToken:      cfg.Sentry.AuthToken,
				OrganizationSlug: cfg.Sentry.Organization,
			})

			mcpServer := newMCPServer(logger)
			tools.Register(mcpServer, tools.NewDefaultRegistry(), tools.StaticResolver(dispatcher))

			logger.Info("Serving over stdio", "host", cfg.Sentry.Host, "organization", cfg.Sentry.Organization)

			return server.ServeStdio(mcpServer,
				server.WithErrorLogger(logger.StandardLog(log.StandardLogOptions{ForceLevel: log.ErrorLevel})),
			)
		},
	}

	cmd.Flags().String("access-token", "", "Sentry user auth token")
	cmd.Flags().String("organization", "", "default organization slug")
	mustBind("sentry.auth_token", cmd.Flags().Lookup("access-token"))
	mustBind("sentry.organization", cmd.Flags().Lookup("organization"))

	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over SSE, authorizing users through Sentry OAuth",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			logger := logging.New(cfg)

			if err := cfg.ValidateServe(); err != nil {
				logger.Error("Invalid configuration", "error", err)
				return err
			}

			registry := prometheus.NewRegistry()
			recorder := metrics.NewRecorder(registry)

			provider := auth.NewProvider(cfg.Server.SessionTTL, logger)
			authHandler := auth.NewHandler(auth.HandlerConfig{
				ClientID:     cfg.Sentry.ClientID,
				ClientSecret: cfg.Sentry.ClientSecret,
				SentryHost:   cfg.Sentry.Host,
				BaseURL:      cfg.Server.BaseURL,
				Provider:     provider,
				Organizations: func(accessToken string) auth.OrganizationLister {
					return sentry.NewClient(accessToken, cfg.Sentry.Host, sentry.WithLogger(logger), sentry.WithMetrics(recorder))
				},
				Logger: logger,
			})

			sessions := tools.NewSessions(cfg.Server.SessionTTL, func(session tools.SessionContext) *tools.Dispatcher {
				return newDispatcher(cfg, logger, recorder, session)
			})

			mcpServer := newMCPServer(logger)
			tools.Register(mcpServer, tools.NewDefaultRegistry(), sessions.Resolve)

			sse := server.NewSSEServer(mcpServer,
				server.WithBaseURL(cfg.Server.BaseURL),
				server.WithSSEContextFunc(func(ctx context.Context, r *http.Request) context.Context {
					session, ok := auth.SessionFromContext(r.Context())
					if !ok {
						return ctx
					}

					return tools.WithSession(ctx, tools.SessionContext{
						AccessToken:      session.AccessToken,
						OrganizationSlug: session.OrganizationSlug,
					})
				}),
			)

			mux := http.NewServeMux()
			authHandler.Routes(mux)
			mux.Handle("/sse", authHandler.Protect(sse.SSEHandler()))
			mux.Handle("/message", authHandler.Protect(sse.MessageHandler()))
			mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

			httpServer := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errs := make(chan error, 1)
			go func() {
				logger.Info("Listening", "addr", cfg.Server.Addr, "base_url", cfg.Server.BaseURL)
				errs <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errs:
				if !errors.Is(err, http.ErrServerClosed) {
					logger.Error("Server failed", "error", err)
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("Shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := sse.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Failed to close SSE sessions", "error", err)
			}

			return httpServer.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().String("addr", ":8788", "listen address")
	cmd.Flags().String("base-url", "", "public URL of this server")
	mustBind("server.addr", cmd.Flags().Lookup("addr"))
	mustBind("server.base_url", cmd.Flags().Lookup("base-url"))

	return cmd
}

func newMCPServer(logger *log.Logger) *server.MCPServer {
	return server.NewMCPServer(serverName, serverVersion,
		server.WithToolCapabilities(false),
		server.WithToolHandlerMiddleware(middleware.Logging(logger)),
		server.WithRecovery(),
	)
}

func newDispatcher(cfg *config.Config, logger *log.Logger, recorder *metrics.Recorder, session tools.SessionContext) *tools.Dispatcher {
	client := sentry.NewClient(session.AccessToken, cfg.Sentry.Host,
		sentry.WithLogger(logger),
		sentry.WithMetrics(recorder),
	)

	return tools.NewDispatcher(tools.NewDefaultRegistry(), session, client,
		tools.WithLogger(logger),
		tools.WithMetrics(recorder),
		tools.WithTimeout(cfg.Sentry.RequestTimeout),
		tools.WithProduction(cfg.IsProduction()),
	)
}

func mustBind(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}
