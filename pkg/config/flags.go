package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --model
// on both "patchbay serve" and "patchbay chat").
type Flag struct {
	// Name is the long flag name (e.g. "model").
	Name string

	// Shorthand is the one-letter short flag (e.g. "m"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "vertex.model").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagListen        = "listen"
	FlagProject       = "project"
	FlagRegion        = "region"
	FlagModel         = "model"
	FlagAccessToken   = "access-token"
	FlagSQLite        = "sqlite"
	FlagStorageDriver = "storage-driver"
	FlagRateLimitRPM  = "rate-limit-rpm"
)

// ServeFlagSet returns the flag definitions used by the serve command.
func ServeFlagSet() FlagSet {
	return FlagSet{
		FlagListen: {
			Name:        "listen",
			Shorthand:   "l",
			ViperKey:    "listen",
			Description: "Address for the gateway to listen on",
		},
		FlagProject: {
			Name:        "project",
			Shorthand:   "p",
			ViperKey:    "vertex.project_id",
			Description: "Google Cloud project ID for Vertex AI",
		},
		FlagRegion: {
			Name:        "region",
			Shorthand:   "r",
			ViperKey:    "vertex.region",
			Description: "Google Cloud region for Vertex AI",
		},
		FlagModel: {
			Name:        "model",
			Shorthand:   "m",
			ViperKey:    "vertex.model",
			Description: "Default Gemini model to serve",
		},
		FlagAccessToken: {
			Name:        "access-token",
			ViperKey:    "vertex.access_token",
			Description: "Static access token for Vertex AI (overrides ADC and gcloud)",
		},
		FlagSQLite: {
			Name:        "sqlite",
			Shorthand:   "s",
			ViperKey:    "storage.path",
			Description: "Path to SQLite usage database (default: <dotdir>/patchbay.db)",
		},
		FlagStorageDriver: {
			Name:        "storage-driver",
			ViperKey:    "storage.driver",
			Description: "Usage storage driver (sqlite, postgres, memory)",
		},
		FlagRateLimitRPM: {
			Name:        "rate-limit-rpm",
			ViperKey:    "limits.rate_limit_rpm",
			Description: "Maximum requests admitted per 60s window",
		},
	}
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
