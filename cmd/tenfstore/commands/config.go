package commands

import (
	"github.com/spf13/cobra"

	"github.com/Redshadow31/tenf-v2-sub007/config"
)

func (a *app) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "config",
		Short:       "Print the effective configuration as YAML (secrets redacted)",
		Args:        usageArgs(cobra.NoArgs),
		Annotations: map[string]string{annotationNoStore: ""},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			cfg.Storage.Kind = cfg.Storage.ResolveKind()

			data, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
