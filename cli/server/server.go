// Package server implements the node command of the CLI.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/torchat/torchat-go/cli/options"
	defaultconfig "github.com/torchat/torchat-go/config"
	"github.com/torchat/torchat-go/pkg/config"
	"github.com/torchat/torchat-go/pkg/peer"
	"github.com/torchat/torchat-go/pkg/reactor"
	"github.com/torchat/torchat-go/pkg/services/metrics"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

// NewCommands returns the 'node' command.
func NewCommands() []cli.Command {
	return []cli.Command{
		{
			Name:      "node",
			Usage:     "Start the chat node",
			UsageText: "torchat-go node [--config-file file] [--onion address] [-d]",
			Action:    startServer,
			Flags: []cli.Flag{
				options.ConfigFile,
				options.Debug,
				cli.StringFlag{
					Name:  "onion",
					Usage: "Our own onion address, overrides the config",
				},
			},
		},
	}
}

func newGraceContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	signal.Notify(stop, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()
	return ctx
}

func loadConfig(ctx *cli.Context) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if path := ctx.String("config-file"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Unmarshal(defaultconfig.Default)
	}
	if err != nil {
		return cfg, err
	}
	if onion := ctx.String("onion"); onion != "" {
		cfg.ChatConfiguration.OnionAddress = onion
	}
	return cfg, cfg.Validate()
}

func startServer(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	log, logCloser, err := options.HandleLoggingParams(ctx.Bool("debug"), cfg.ApplicationConfiguration.Logger)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer func() { _ = logCloser() }()

	grace := newGraceContext()

	r, err := reactor.New(log)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	chatCfg := cfg.ChatConfiguration
	client := peer.NewClient(r, peer.Config{
		Onion:         chatCfg.OnionAddress,
		ListenAddress: chatCfg.ListenAddress,
		ListenPort:    chatCfg.ListenPort,
		ConnectPort:   chatCfg.ConnectPort,
		Proxy: reactor.Proxy{
			Address: chatCfg.Proxy.Address,
			Port:    chatCfg.Proxy.Port,
			UserID:  chatCfg.Proxy.UserID,
		},
		Status:        chatCfg.Status,
		ClientName:    "torchat-go",
		ClientVersion: config.Version,
		OnChatEstablished: func(onion string) {
			log.Info("peer ready for chat", zap.String("peer", onion))
		},
		OnChatMessage: func(onion, text string) {
			log.Info("message", zap.String("peer", onion), zap.String("text", text))
		},
		OnStatusChange: func(onion, state string) {
			log.Info("peer status", zap.String("peer", onion), zap.String("state", state))
		},
		OnPeerGone: func(onion string, reason error) {
			log.Info("peer gone", zap.String("peer", onion), zap.Error(reason))
		},
	}, log)

	prometheus := metrics.NewPrometheusService(cfg.ApplicationConfiguration.Prometheus, log)
	prometheus.Start()
	defer prometheus.ShutDown()
	pprof := metrics.NewPprofService(cfg.ApplicationConfiguration.Pprof, log)
	pprof.Start()
	defer pprof.ShutDown()

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Run()
	}()
	r.InvokeLater(func() {
		if err := client.Start(); err != nil {
			log.Error("cannot start client", zap.Error(err))
			r.Stop()
		}
	})

	select {
	case <-grace.Done():
		log.Info("signal received, shutting down")
		r.InvokeLater(client.Stop)
		r.Stop()
		if err := <-errCh; err != nil {
			return cli.NewExitError(fmt.Errorf("reactor: %w", err), 1)
		}
	case err := <-errCh:
		if err != nil {
			return cli.NewExitError(fmt.Errorf("reactor: %w", err), 1)
		}
	}
	return nil
}
