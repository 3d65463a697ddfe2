package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	Name      = "clipsync"
	EnvPrefix = "CLIPSYNC"
)

var ErrFlag = errors.New("invalid configuration value")

// Search lists the directories searched for clipsync.{toml,yaml}.
func Search() []string {
	dirs := []string{filepath.Join("/etc", Name)}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append([]string{filepath.Join(home, ".config", Name)}, dirs...)
	}
	return dirs
}

// Merge fills every flag the user did not pass explicitly from the config
// file and CLIPSYNC_* variables.
//
// Precedence (lowest to highest): defaults, config file, env, flags.
// It returns the config file used, if any.
func Merge(fs *flag.FlagSet, file string, dirs ...string) (string, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(Name)
		for _, dir := range dirs {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return "", fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var errs []error
	fs.VisitAll(func(f *flag.Flag) {
		if f.Changed || !fromOutside(v, f.Name) {
			return
		}

		value, err := stringify(v.Get(f.Name))
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrFlag, f.Name, err))
			return
		}
		if err := fs.Set(f.Name, value); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrFlag, f.Name, err))
		}
	})

	return v.ConfigFileUsed(), errors.Join(errs...)
}

func fromOutside(v *viper.Viper, key string) bool {
	if v.InConfig(key) {
		return true
	}
	env := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
	_, ok := os.LookupEnv(env)
	return ok
}

// stringify renders a config value the way it would be typed on the command line.
func stringify(value any) (string, error) {
	switch value := value.(type) {
	case []any:
		items, err := cast.ToStringSliceE(value)
		if err != nil {
			return "", err
		}
		return strings.Join(items, ","), nil
	case []string:
		return strings.Join(value, ","), nil
	default:
		return cast.ToStringE(value)
	}
}
