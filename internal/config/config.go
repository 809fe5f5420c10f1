package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	MaxConnections  int           `mapstructure:"max_connections" yaml:"max_connections"`
	AdminUser       string        `mapstructure:"admin_user" yaml:"admin_user"`
	CredentialsPath string        `mapstructure:"credentials_path" yaml:"credentials_path"`
	DictionaryPath  string        `mapstructure:"dictionary_path" yaml:"dictionary_path"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:            ":5000",
		MaxConnections:  100,
		AdminUser:       "jonah",
		CredentialsPath: "users.dat",
		DictionaryPath:  "d2.txt",
		LogLevel:        "info",
		ShutdownTimeout: 5 * time.Second,
	}
}
