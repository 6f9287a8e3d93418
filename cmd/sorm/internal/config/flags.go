package config

import (
	"github.com/spf13/cobra"
)

// AddFlags binds every option with a flag name to cmd.
func (cfg *Config) AddFlags(cmd *cobra.Command) error {
	flags := cmd.PersistentFlags()
	for _, option := range cfg.options() {
		if err := option.addFlag(flags); err != nil {
			return err
		}
	}
	cfg.flagset = flags
	return nil
}

// loadFlags copies the flags set on the command line into the config.
func (cfg *Config) loadFlags() error {
	if cfg.flagset == nil {
		return nil
	}
	for _, option := range cfg.options() {
		if option.Name == "" {
			continue
		}
		flag := cfg.flagset.Lookup(option.Name)
		if flag == nil || !flag.Changed {
			continue
		}
		value, err := option.flagValue(cfg.flagset)
		if err != nil {
			return err
		}
		if err := option.setValue(value); err != nil {
			return err
		}
	}
	return nil
}
