package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/commy-mesh/commy/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample commy configuration file.

By default, the configuration file is created at
$XDG_CONFIG_HOME/commy/config.yaml. Use --config to specify a custom path.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error
	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Start the server with: commyd start")
	fmt.Printf("  2. Or specify a custom config: commyd start --config %s\n", configPath)
	fmt.Println("\nSecurity note:")
	fmt.Println("  A random JWT secret has been generated for development use.")
	fmt.Println("  For production, override it via COMMY_MANAGER_JWT_SECRET.")
	fmt.Println("  manager.require_tls is off by default. For production, enable it and")
	fmt.Println("  set manager.tls_cert_file/tls_key_file/tls_ca_file to a shared mesh CA.")

	return nil
}
