// Command arbtrain trains bagged or boosted tree ensembles from .npy files
// and generates synthetic training sets.
//
//	arbtrain synth --kind regression --rows 1000 --x x.npy --y y.npy
//	arbtrain train --config cfg.yaml --x x.npy --y y.npy --plot curve.png
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ezoic/arbor/pkg/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:          "arbtrain",
		Short:        "Train tree ensembles",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if logLevel != "" {
				log.SetupLogger(logLevel)
			}
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level, overriding the config")
	root.AddCommand(newTrainCmd(), newSynthCmd())
	return root
}
