package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/beam-cloud/airkv/pkg/common"
	"github.com/beam-cloud/airkv/pkg/kv"
	"github.com/beam-cloud/airkv/pkg/types"
)

// Build information (injected at compile time via ldflags)
var (
	Version = "dev"
)

const (
	dataDirEnv  = "AIRKV_DATA_DIR"
	apiTokenEnv = "AIRKV_API_TOKEN"
)

var (
	configPath string
	dataDir    string
	jsonOutput bool
	debugMode  bool
)

// Custom help template with styled output
var helpTemplate = `{{with .Long}}{{. | trim}}

{{end}}{{if .HasAvailableSubCommands}}` + `{{.CommandPath}}` + ` ` + `<command>` + `

{{end}}{{if .HasAvailableSubCommands}}Commands:
{{range .Commands}}{{if .IsAvailableCommand}}  {{rpad .Name .NamePadding }}  {{.Short}}
{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}
Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}
`

// NewRootCmd builds the full command tree
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "airkv",
		Short: "Browse and edit local and remote KV namespaces",
		Long: lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true).Render("airkv") + ` - Browse and edit KV namespaces

Inspect the emulator KV state inside local project folders, or the
namespaces of a connected remote account, from one place.`,
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			SetJSONOutput(jsonOutput)
			SetOutput(cmd.OutOrStdout())
		},
	}

	rootCmd.SetHelpTemplate(helpTemplate)
	rootCmd.SetVersionTemplate(fmt.Sprintf("  %s version %s\n", BrandStyle.Render("airkv"), Version))

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.airkv/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", getEnv(dataDirEnv, ""), "Directory holding the settings database")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newFolderCmd())
	rootCmd.AddCommand(newRemoteCmd())
	rootCmd.AddCommand(newKeysCmd())
	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newPutCmd())
	rootCmd.AddCommand(newRmCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// Execute runs the CLI
func Execute() error {
	return NewRootCmd().Execute()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loadConfig reads the config file, applies flag overrides and sets up logging.
func loadConfig() (types.AppConfig, string, error) {
	var opts []common.ConfigOption
	if configPath != "" {
		opts = append(opts, common.WithConfigFile(configPath))
	}

	cm, err := common.NewConfigManager[types.AppConfig](opts...)
	if err != nil {
		return types.AppConfig{}, "", err
	}

	cfg := cm.GetConfig()
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if debugMode {
		cfg.DebugMode = true
	}

	common.SetupLogging(cfg.DebugMode, cfg.PrettyLogs)
	return cfg, cm.Path(), nil
}

func newApp(ctx context.Context) (*kv.App, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return kv.NewApp(ctx, cfg)
}

// withApp opens the app for the duration of fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *kv.App) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(ctx, app)
}
