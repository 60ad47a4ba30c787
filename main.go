package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	cfg "github.com/langtech/transcriber/config"
)

type app struct {
	v    *viper.Viper
	conf *cfg.Root
	log  *logrus.Logger
}

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:          "transcriber",
		Short:        "Transcribe and annotate Aikuma recordings",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := cfg.Load(a.v)
			if err != nil {
				return err
			}
			log, err := cfg.NewLogger(conf.Transcriber.LogLevel, conf.Transcriber.LogFormat)
			if err != nil {
				return err
			}
			log.SetOutput(cmd.ErrOrStderr())
			a.conf, a.log = conf, log
			log.WithFields(logrus.Fields{
				"name":    conf.Transcriber.Name,
				"version": conf.Transcriber.Version,
				"command": cmd.Name(),
			}).Debug("transcriber starting")
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default config/$CONFIG_ENV/config.yaml)")
	pf.String("log-level", "", "log level: trace, debug, info, warn, error")
	a.bind("config", pf.Lookup("config"))
	a.bind("transcriber.log_level", pf.Lookup("log-level"))

	root.AddCommand(
		a.serveCmd(),
		a.indexCmd(),
		a.shapeCmd(),
		a.convertCmd(),
		a.showCmd(),
		a.statsCmd(),
		a.openCmd(),
		a.syncCmd(),
	)
	return root
}

func (a *app) bind(key string, f *pflag.Flag) {
	if err := a.v.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("bind %s: %v", key, err))
	}
}
