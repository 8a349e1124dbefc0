package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"keyword_responder/internal/config"
	"keyword_responder/internal/logging"
	"keyword_responder/internal/normalize"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)

	cmd := &cobra.Command{
		Use:           "autoresponder",
		Short:         "Keyword auto-responder for LINE chats",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return config.LoadDotEnv(envFile)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("env-file", ".env", "Path to a .env file (optional).")
	flags.String("words-file", "", "Reply table file (.json, .yaml or .yml).")
	flags.String("moderation-file", "", "Moderation policy file.")
	flags.String("normalize-policy", "", "Letter folding: extended|minimal.")
	flags.String("log-level", "", "Logging level: debug|info|warn|error.")
	flags.String("log-format", "", "Logging format: json|console.")

	bindFlag(v, config.KeyWordsFile, flags.Lookup("words-file"))
	bindFlag(v, config.KeyModerationFile, flags.Lookup("moderation-file"))
	bindFlag(v, config.KeyNormalizePolicy, flags.Lookup("normalize-policy"))
	bindFlag(v, config.KeyLogLevel, flags.Lookup("log-level"))
	bindFlag(v, config.KeyLogFormat, flags.Lookup("log-format"))

	cmd.AddCommand(newServeCmd(v))
	cmd.AddCommand(newWordsCmd(v))
	cmd.AddCommand(newResolveCmd(v))
	return cmd
}

// env holds what every subcommand needs after configuration is resolved.
type env struct {
	cfg    config.Config
	logger *zap.Logger
	norm   *normalize.Normalizer
}

func loadEnv(v *viper.Viper) (*env, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, norm: normalize.New(cfg.NormalizePolicy)}, nil
}
