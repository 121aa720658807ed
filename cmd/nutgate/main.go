package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elnosh/nutgate/gateway"
	"github.com/elnosh/nutgate/lightning"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "nutgate",
		Usage: "redeem cashu ecash to settle Lightning payments",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env",
				Usage: "path to .env file",
			},
		},
		Action: runGateway,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runGateway(ctx *cli.Context) error {
	envPath := ctx.String("env")
	if len(envPath) > 0 {
		if err := godotenv.Load(envPath); err != nil {
			log.Fatalf("error loading %v: %v", envPath, err)
		}
	} else {
		// ignore error, env vars can come from the environment
		godotenv.Load()
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	config, err := gateway.GetConfig()
	if err != nil {
		log.Fatalf("invalid gateway config: %v", err)
	}

	node, err := lightning.CreateLndClient()
	if err != nil {
		log.Fatalf("error setting up lnd client: %v", err)
	}
	if err := node.ConnectionStatus(); err != nil {
		log.Fatalf("unable to connect to lnd node: %v", err)
	}

	gw, err := gateway.Setup(config, node, logger)
	if err != nil {
		log.Fatalf("error setting up gateway: %v", err)
	}

	server := gateway.SetupServer(config, gw, logger)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		logger.Info("shutting down gateway")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
