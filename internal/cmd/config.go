package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/plugspan/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify plugspan configuration",
	Long: `View or modify plugspan configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  plugspan config set shutdown.grace_ms 2000
  plugspan config set countdown.from 10
  plugspan config set logging.level DEBUG

Valid keys:
  logging.level      - Log level (DEBUG, INFO, WARN, ERROR)
  logging.file       - Log file path (empty logs to stderr)
  shutdown.grace_ms  - How long shutdown waits for tasks, 0 waits forever
  registry.pool_size - Task scheduler capacity
  countdown.from     - Countdown start value
  countdown.sleep_ms - Milliseconds between countdown steps
  watch.glob         - Glob filter for watch plugin events`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/plugspan/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	fmt.Println("Current configuration:")
	fmt.Println()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Config file: (none - using defaults)\n")
	}
	fmt.Println()

	fmt.Println("logging:")
	fmt.Printf("  level: %s\n", cfg.Logging.Level)
	if cfg.Logging.File != "" {
		fmt.Printf("  file: %s\n", cfg.Logging.File)
	} else {
		fmt.Printf("  file: (stderr)\n")
	}

	fmt.Println("shutdown:")
	fmt.Printf("  grace_ms: %d\n", cfg.Shutdown.GraceMs)

	fmt.Println("registry:")
	fmt.Printf("  pool_size: %d\n", cfg.Registry.PoolSize)

	fmt.Println("countdown:")
	fmt.Printf("  from: %d\n", cfg.Countdown.From)
	fmt.Printf("  sleep_ms: %d\n", cfg.Countdown.SleepMs)

	fmt.Println("watch:")
	fmt.Printf("  glob: %q\n", cfg.Watch.Glob)

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	// Validate the key exists
	validKeys := map[string]string{
		"logging.level":      "string",
		"logging.file":       "string",
		"shutdown.grace_ms":  "int",
		"registry.pool_size": "int",
		"countdown.from":     "int",
		"countdown.sleep_ms": "int",
		"watch.glob":         "string",
	}

	keyType, ok := validKeys[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s\nRun 'plugspan config set --help' to see valid keys", key)
	}

	// Validate the value based on type
	var typedValue interface{}
	switch keyType {
	case "string":
		if key == "logging.level" && !logLevelValid(value) {
			return fmt.Errorf("invalid value for %s: %s\nValid options: DEBUG, INFO, WARN, ERROR", key, value)
		}
		typedValue = value
	case "int":
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if intVal < 0 {
			return fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		typedValue = intVal
	}

	// Ensure config directory exists
	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set the value in viper
	viper.Set(key, typedValue)

	// Write to config file
	configFile := config.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Set %s = %v\n", key, typedValue)
	fmt.Printf("Config saved to %s\n", configFile)

	return nil
}

func logLevelValid(level string) bool {
	switch strings.ToUpper(level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
		return true
	}
	return false
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'plugspan config set' to modify values", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Generate a commented config file
	configContent := `# Plugspan Configuration

# Logging settings
logging:
  # Log level: DEBUG, INFO, WARN, ERROR
  level: INFO
  # Log file path; empty logs text to stderr, a path logs JSON to it
  file: ""

# Shutdown settings
shutdown:
  # Milliseconds to wait for cancelled tasks before abandoning them.
  # 0 waits forever.
  grace_ms: 0

# Task scheduler settings
registry:
  # Scheduler capacity; must cover every plugin that yields a task
  pool_size: 16

# Countdown plugin
countdown:
  # Start value
  from: 3
  # Milliseconds between countdown steps
  sleep_ms: 1000

# Watch plugin
watch:
  # Only publish events whose path matches this glob; empty matches all
  glob: ""
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	fmt.Println(config.ConfigFile())
	return nil
}
