package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/feedsync/internal/output"
	"github.com/marcus/feedsync/internal/suggest"
	"github.com/marcus/feedsync/internal/syncconfig"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Manage feedsync configuration",
	GroupID: "system",
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]

		if err := checkKey(key); err != nil {
			return err
		}

		cfg, err := syncconfig.LoadConfig()
		if err != nil {
			output.Error("load config: %v", err)
			return err
		}
		if err := syncconfig.Set(cfg, key, val); err != nil {
			output.Error("%v", err)
			return err
		}
		if err := syncconfig.SaveConfig(cfg); err != nil {
			output.Error("save config: %v", err)
			return err
		}

		output.Success("set %s = %s", key, val)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a config value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		if err := checkKey(key); err != nil {
			return err
		}

		cfg, err := syncconfig.LoadConfig()
		if err != nil {
			output.Error("load config: %v", err)
			return err
		}
		val, err := syncconfig.Get(cfg, key)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if val == "" {
			val = "(default)"
		}
		fmt.Println(val)
		return nil
	},
}

// checkKey reports an unknown key with close matches or the full key list
func checkKey(key string) error {
	if syncconfig.IsValidKey(key) {
		return nil
	}
	output.Error("unknown config key: %s", key)
	if similar := suggest.Similar(key, syncconfig.Keys); len(similar) > 0 {
		fmt.Println("Did you mean:", strings.Join(similar, ", "))
	} else {
		fmt.Println("Valid keys:", strings.Join(syncconfig.Keys, ", "))
	}
	return fmt.Errorf("unknown config key: %s", key)
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all config values",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := syncconfig.LoadConfig()
		if err != nil {
			output.Error("load config: %v", err)
			return err
		}

		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			output.Error("marshal config: %v", err)
			return err
		}

		fmt.Println(string(data))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)
}
