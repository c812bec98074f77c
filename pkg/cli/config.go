package cli

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/beam-cloud/airkv/pkg/common"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig()
			if err != nil {
				return err
			}
			if PrintJSON(cfg) {
				return nil
			}

			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			if path == "" {
				path = common.DefaultUserConfigPath() + " (not found, defaults only)"
			}
			PrintKeyValue("Config", path)
			PrintRaw("\n" + string(out))
			return nil
		},
	}
	return cmd
}
