package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "prospect-matcher"
)

type Config struct {
	UserID        string        `mapstructure:"user-id"`
	ProspectsFile string        `mapstructure:"prospects-file"`
	Source        *SourceConfig `mapstructure:"source"`
	Cache         *CacheConfig  `mapstructure:"cache"`
}

type SourceConfig struct {
	// Provider selects the match source: static, api or gemini.
	Provider string         `mapstructure:"provider"`
	API      *APIConfig     `mapstructure:"api"`
	Gemini   *GeminiConfig  `mapstructure:"gemini"`
	Static   map[string]any `mapstructure:"static"`
}

type APIConfig struct {
	BaseURL   string `mapstructure:"base-url"`
	TokenFile string `mapstructure:"token-file"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type CacheConfig struct {
	// Backend selects where the cache array lives: file or redis.
	Backend string       `mapstructure:"backend"`
	Path    string       `mapstructure:"path"`
	Redis   *RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "prospect-matcher finds likely hiring-manager contacts for saved job prospects",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("user-id", "PROSPECT_MATCHER_USER"); err != nil {
		log.Fatalf("binding PROSPECT_MATCHER_USER environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is prospect-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
