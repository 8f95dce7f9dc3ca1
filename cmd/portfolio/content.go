package main

import (
	"github.com/spf13/cobra"

	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/content"
)

func newContentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "content",
		Short: "Validate and print the site content as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			site, err := content.Load(cfg.ContentFile)
			if err != nil {
				return err
			}
			data, err := site.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
