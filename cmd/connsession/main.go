package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	connsession "connsession-go"
	"connsession-go/config"
	"connsession-go/logging"
)

type options struct {
	mode      string
	config    string
	address   string
	transport string
	text      string
}

func main() {
	opts := parseFlags()
	logging.ConfigureRuntime()

	cfg, err := loadConfig(opts)
	if err != nil {
		fatalf("%v", err)
	}
	if !logging.SetLevel(cfg.LogLevel) {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, keeping default")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch opts.mode {
	case "serve":
		err = runServe(ctx, cfg)
	case "call":
		err = runCall(ctx, cfg, opts.text)
	case "send":
		err = runSend(ctx, cfg, opts.text)
	default:
		fatalf("unknown mode %q (supported: serve, call, send)", opts.mode)
	}
	if err != nil {
		fatalf("%v", err)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.mode, "mode", "serve", "mode: serve | call | send")
	flag.StringVar(&opts.config, "config", "", "path to a TOML config file")
	flag.StringVar(&opts.address, "address", "", "address to listen on or dial, overrides the config")
	flag.StringVar(&opts.transport, "transport", "", "tcp | websocket, overrides the config")
	flag.StringVar(&opts.text, "text", "hello", "message to send (call and send modes)")
	flag.Parse()
	return opts
}

func loadConfig(opts options) (config.Config, error) {
	cfg := config.Default()
	if opts.config != "" {
		var err error
		if cfg, err = config.Load(opts.config); err != nil {
			return config.Config{}, err
		}
	}
	if opts.address != "" {
		cfg.Address = opts.address
	}
	if opts.transport != "" {
		cfg.Transport = opts.transport
	}
	return cfg, cfg.Validate()
}

func runServe(ctx context.Context, cfg config.Config) error {
	srv, err := connsession.Serve(ctx, cfg, connsession.Greeter)
	if err != nil {
		return err
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")
	if err := srv.Close(); err != nil {
		return err
	}
	<-srv.Done()
	return nil
}

func runCall(ctx context.Context, cfg config.Config, text string) error {
	cli, err := connsession.NewClient(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer cli.Close()

	reply, err := connsession.Call[string](ctx, cli, text)
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

func runSend(ctx context.Context, cfg config.Config, text string) error {
	cli, err := connsession.NewClient(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer cli.Close()

	if err := cli.Send(text); err != nil {
		return err
	}
	// A round trip behind the one-way message guarantees it was written
	// before the connection closes.
	_, err = connsession.Call[string](ctx, cli, "hello")
	return err
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "connsession: "+format+"\n", args...)
	os.Exit(1)
}
