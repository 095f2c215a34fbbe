package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"evidence-agent/pkg/config"
)

func main() {
	var cfgPath string
	var root = &cobra.Command{
		Use:          "evidence-agent",
		Short:        "Evidence-grounded medical Q&A streaming service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(cfgPath); err != nil {
				return err
			}
			config.InitLogger()
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config/config.yaml)")

	root.AddCommand(serveCMD(), askCMD(), checkCMD())
	if err := root.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
