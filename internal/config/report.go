package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ReportConfig holds configuration for the report command.
type ReportConfig struct {
	In       string
	Report   string
	LogLevel string
}

// LoadReport merges config file, environment variables, and flags into ReportConfig.
// The artifact path is read from "out" so one config file serves both commands.
func LoadReport(cfgFile string, flags *pflag.FlagSet) (ReportConfig, error) {
	v := viper.New()
	v.SetDefault("out", "blue-pill.json")
	v.SetDefault("report", "table")
	v.SetDefault("log-level", "info")

	if err := readInto(v, cfgFile, flags); err != nil {
		return ReportConfig{}, err
	}

	return ReportConfig{
		In:       v.GetString("out"),
		Report:   v.GetString("report"),
		LogLevel: v.GetString("log-level"),
	}, nil
}
