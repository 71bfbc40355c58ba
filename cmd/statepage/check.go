package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pitabwire/statepage/internal/config"
	"github.com/pitabwire/statepage/internal/pages"
	"github.com/pitabwire/statepage/internal/render"
	"github.com/pitabwire/statepage/internal/server"
	"github.com/pitabwire/statepage/internal/transport"
)

func checkTemplatesCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "check-templates",
		Short: "Compile every page template and report errors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			names, err := checkTemplates(cfg)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "ok  %s\n", n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to configuration file")
	return cmd
}

// checkTemplates compiles the templates of every bundled page and returns
// their names.
func checkTemplates(cfg *config.Config) ([]string, error) {
	engine := render.NewEngine(cfg.Templates, nil)
	adapter := &transport.Adapter{Engine: engine, Logger: zap.NewNop(), Datastar: cfg.Datastar}
	routes := pages.Routes(adapter, cfg.Auth, server.NewGlobals(), zap.NewNop())

	names := templateNames(engine, routes)
	if err := engine.Check(names...); err != nil {
		return nil, err
	}
	return names, nil
}
