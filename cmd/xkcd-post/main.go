package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mlafeldt/xkcd-wall/config"
	"github.com/mlafeldt/xkcd-wall/poster"
)

var (
	flagNum int
	flagDir string
)

var rootCmd = &cobra.Command{
	Use:           "xkcd-post",
	Short:         "Post a random xkcd comic to a VK community wall",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().IntVar(&flagNum, "num", 0,
		"post this comic instead of a random one")

	rootCmd.Flags().StringVar(&flagDir, "dir", "",
		"directory for the downloaded image (overrides WORK_DIR)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
		log.Error().Err(err).Msg("xkcd-post failed")
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if flagDir != "" {
		cfg.WorkDir = flagDir
	}

	log := cfg.Logger(os.Stderr)
	log.Debug().Object("config", cfg).Msg("Loaded configuration")

	p, err := poster.New(cfg, log)
	if err != nil {
		return err
	}
	p.Num = flagNum

	_, err = p.Run(context.Background())
	return err
}
