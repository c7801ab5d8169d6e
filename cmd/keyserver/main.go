// The keyserver daemon serves the EmberTalk key registration API.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/embertalk/keyserver/cmd/flags"
	"github.com/embertalk/keyserver/cryptoutils"
	"github.com/embertalk/keyserver/enrollment"
	"github.com/embertalk/keyserver/httpserver"
	"github.com/embertalk/keyserver/interfaces"
	"github.com/embertalk/keyserver/storage"
)

var cliFlags = []cli.Flag{
	flags.ListenAddrFlag,
	flags.MetricsAddrFlag,
	flags.StoreFlag,
	flags.SealingSecretFlag,
	flags.LogJSONFlag,
	flags.LogDebugFlag,
	flags.LogUIDFlag,
	flags.LogServiceFlag,
	flags.PprofFlag,
	flags.DrainSecondsFlag,
}

func main() {
	app := &cli.App{
		Name:  "keyserver",
		Usage: "Serve the EmberTalk key registration API",
		Flags: cliFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			// Challenge sealing key: derived from the configured secret,
			// or random per process.
			var issuer *enrollment.Issuer
			var err error
			if secret := cCtx.String(flags.SealingSecretFlag.Name); secret != "" {
				logger.Info("Deriving challenge sealing key from configured secret")
				issuer, err = enrollment.NewIssuer(cryptoutils.DeriveSealingKey([]byte(secret)))
			} else {
				logger.Info("Using random challenge sealing key, challenges will not survive restarts")
				issuer, err = enrollment.NewRandomIssuer()
			}
			if err != nil {
				logger.Error("Failed to create challenge issuer", "err", err)
				return err
			}

			// Key store
			storeURI := interfaces.StoreLocation(cCtx.String(flags.StoreFlag.Name))
			store, err := storage.NewStoreFactory(logger).StoreFor(storeURI)
			if err != nil {
				logger.Error("Failed to create key store", "err", err, "store", string(storeURI))
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					logger.Error("Failed to close key store", "err", err)
				}
			}()
			logger.Info("Key store ready", "store", store.Name())

			handler := httpserver.NewHandler(issuer, store, logger)

			cfg := flags.ConfigureServer(cCtx, logger)
			server, err := httpserver.New(cfg, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server")
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
