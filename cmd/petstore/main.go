// Command petstore runs the example pet store, either on a local HTTP port
// or on the AWS Lambda runtime. The OpenAPI document is embedded; pass a
// config file or PETSTORE_* environment variables to override settings.
package main

import (
	"context"
	_ "embed"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	enforcerlambda "github.com/Gi60s/openapi-enforcer-lambda"
	"github.com/Gi60s/openapi-enforcer-lambda/contract"
	"github.com/Gi60s/openapi-enforcer-lambda/kinengine"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//go:embed openapi.yaml
var petstoreDocument []byte

var (
	configFilePath string
	logger         *slog.Logger
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "petstore",
		Short: "contract-enforced pet store example",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := loadConfig(configFilePath); err != nil {
				return err
			}
			applyEnvOverrides()
			logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo - slog.Level(config.Logging.Verbosity*4),
			}))
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&configFilePath, "config", "c", "", "path to an optional configuration file")

	viper.SetEnvPrefix("petstore")
	viper.AutomaticEnv()

	cmd.AddCommand(
		cmdServe(),
		cmdLambda(),
	)
	return cmd
}

func applyEnvOverrides() {
	if viper.IsSet("port") {
		config.Port = viper.GetInt("port")
	}
	if viper.IsSet("document") {
		config.Document.Path = viper.GetString("document")
	}
	if viper.IsSet("verbosity") {
		config.Logging.Verbosity = viper.GetInt("verbosity")
	}
}

func cmdServe() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"s", "server"},
		Short:   "serve the pet store on a local port",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				config.Port = port
			}

			handler, err := newHandler()
			if err != nil {
				return err
			}
			srv := enforcerlambda.NewServer(config.Port, handler,
				enforcerlambda.WithServerLogger(logger))
			if err := srv.Start(); err != nil {
				return err
			}
			logger.Info("pet store listening", slog.Int("port", srv.Port()))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			logger.Info("shutting down")
			return srv.Stop(context.Background())
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "[PETSTORE_PORT] listen port, overriding the config file")
	return cmd
}

func cmdLambda() *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "run on the AWS Lambda runtime",
		RunE: func(cmd *cobra.Command, _ []string) error {
			handler, err := newHandler()
			if err != nil {
				return err
			}
			logger.Info("lambda starting")
			lambda.StartWithOptions(handler, lambda.WithContext(cmd.Context()))
			return nil
		},
	}
}

func newHandler() (enforcerlambda.LambdaHandler, error) {
	api, err := enforcerlambda.NewLazy(loadEngine,
		enforcerlambda.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return api.Route(NewStore().Controllers()), nil
}

func loadEngine(ctx context.Context) (contract.Engine, error) {
	if config.Document.Path != "" {
		return kinengine.Load(ctx, config.Document.Path)
	}
	return kinengine.LoadBytes(ctx, petstoreDocument)
}
