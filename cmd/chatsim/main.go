// Command chatsim runs a simulated live-stream chat.
//
//	chatsim run     type what you say; viewers reply in the terminal
//	chatsim serve   websocket server for a browser overlay
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	chatsim "github.com/yaajosh/chat-simulator"
	"github.com/yaajosh/chat-simulator/config"
	"github.com/yaajosh/chat-simulator/engine"
	"github.com/yaajosh/chat-simulator/logging"
	"github.com/yaajosh/chat-simulator/server"
	"github.com/yaajosh/chat-simulator/telemetry"
)

const version = "0.1.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red("error: "+err.Error()))
		os.Exit(1)
	}
}

type app struct {
	v          *viper.Viper
	configPath string
}

func newRootCommand() *cobra.Command {
	a := &app{v: config.NewViper()}

	root := &cobra.Command{
		Use:           "chatsim",
		Short:         "Simulated live-stream chat for presentation practice",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			// .env is a local convenience; a missing file is fine.
			_ = godotenv.Load()
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	f.StringP("provider", "p", config.ProviderGemini, "completion provider: gemini, openai, anthropic or mock")
	f.String("token", "", "API credential (defaults to the provider's usual env variable)")
	f.StringP("model", "m", "", "model name override")
	f.String("base-url", "", "provider endpoint override")
	f.StringP("locale", "l", "de", "roster and prompt language")
	f.IntP("activity", "a", 5, "activity level 1-10")
	f.Bool("auto-response", true, "reply to what the streamer says")
	f.String("log-level", "info", "debug, info, warn or error")
	f.String("log-format", "text", "text or json")
	f.String("otlp-endpoint", "", "OTLP/gRPC collector host:port")

	bind := map[string]string{
		"provider":         "provider",
		"token":            "token",
		"model":            "model",
		"base_url":         "base-url",
		"locale":           "locale",
		"activity":         "activity",
		"auto_response":    "auto-response",
		"log.level":        "log-level",
		"log.format":       "log-format",
		"tracing.endpoint": "otlp-endpoint",
	}
	for key, flag := range bind {
		_ = a.v.BindPFlag(key, f.Lookup(flag))
	}

	root.AddCommand(a.newRunCommand(), a.newServeCommand())
	return root
}

func (a *app) newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Chat in the terminal; every line you type is something you said on stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !isTTY() {
				color.NoColor = true
			}
			return a.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func (a *app) newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat over HTTP and WebSocket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	_ = a.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

// setup loads configuration and builds the logger, tracing and engine.
func (a *app) setup(ctx context.Context) (*config.Config, *logging.ChatLogger, *engine.Engine, telemetry.ShutdownFunc, error) {
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	log := chatsim.NewLogger(cfg.Log)

	shutdown, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		ServiceName:    "chatsim",
		ServiceVersion: version,
		SampleRatio:    cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return nil, nil, nil, nil, err
	}

	e, err := chatsim.New(cfg, func(o *chatsim.Options) {
		o.Logger = log.WithComponent("engine")
	})
	if err != nil {
		_ = shutdown(context.Background())
		return nil, nil, nil, nil, err
	}
	return cfg, log, e, shutdown, nil
}

func (a *app) run(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, e, shutdown, err := a.setup(ctx)
	if err != nil {
		return err
	}
	defer flush(shutdown, log)
	defer e.Close()

	con := newConsole(out)
	e.OnMessage(con.message)
	e.OnError(con.error)

	if cfg.Token == "" {
		con.status("no credential configured; set --token or the provider's API key variable")
	}
	e.Start()
	con.status(fmt.Sprintf("%d viewers joined (%s, activity %d). /help lists commands.",
		len(e.Personas()), e.Config().Locale, e.Config().ActivityLevel))

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			msg, err := handleLine(e, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				con.error(err)
				continue
			}
			if msg != "" {
				con.status(msg)
			}
		}
	}
}

func (a *app) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, e, shutdown, err := a.setup(ctx)
	if err != nil {
		return err
	}
	defer flush(shutdown, log)
	defer e.Close()

	e.OnError(func(err error) { log.Warn("chat line dropped", "error", err) })
	srv := server.New(e, func(o *server.Options) {
		o.Addr = cfg.Server.Addr
		o.Logger = log.WithComponent("server")
	})
	e.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		e.Stop()
		return nil
	})
	return g.Wait()
}

func flush(shutdown telemetry.ShutdownFunc, log logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn("tracing shutdown", "error", err)
	}
}
