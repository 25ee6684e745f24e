package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"convox-bot/internal/config"
	"convox-bot/internal/permissions"
)

func newPermsCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "perms",
		Short: "Inspect the persisted permission document",
	}

	var asYAML bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the permission document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Read(*configFile)
			if err != nil {
				return err
			}
			backend, err := permissions.OpenBackend(cfg.Storage.Backend, cfg.Storage.Path, cfg.Storage.SQLitePath)
			if err != nil {
				return err
			}
			defer backend.Close()

			doc, err := backend.Load()
			if err != nil {
				return err
			}
			if doc == nil {
				doc = permissions.NewDocument()
			}
			return writeDocument(cmd.OutOrStdout(), doc, asYAML)
		},
	}
	show.Flags().BoolVar(&asYAML, "yaml", false, "Print as YAML instead of JSON")

	cmd.AddCommand(show)
	return cmd
}

func writeDocument(w io.Writer, doc *permissions.Document, asYAML bool) error {
	doc.Normalize()
	if asYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func newVersionCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the bot name and version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Read(*configFile)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", cfg.Bot.Name, cfg.Bot.Version)
			return err
		},
	}
}
