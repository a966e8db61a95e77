package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/BaSui01/chatflow/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// envPrefix 环境变量前缀，如 CHATFLOW_LLM_API_KEY
const envPrefix = "CHATFLOW"

type rootOptions struct {
	configPath string
	envFiles   []string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "chatflow",
		Short: "Conversational chat engines over a retrieval pipeline",
		Long: `chatflow serves stateful chat sessions backed by simple, context,
condense-question, condense-plus-context or custom flow engines.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFiles(opts.envFiles)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files loaded before the config; missing files are skipped")

	cmd.AddCommand(
		newServeCommand(opts),
		newChatCommand(opts),
		newValidateFlowCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

// loadEnvFiles 加载 dotenv 文件，已存在的环境变量不会被覆盖
func loadEnvFiles(paths []string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

func (o *rootOptions) loader() *config.Loader {
	return config.NewLoader().
		WithConfigPath(o.configPath).
		WithEnvPrefix(envPrefix).
		WithValidator((*config.Config).Validate)
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	return o.loader().Load()
}
