// Package config loads Silk's configuration — the `permissions` and
// `mode_a` blocks spec §6 defines — via viper, the way
// cklxx-elephant.ai's CLI wires viper alongside cobra for its own
// configuration (cmd/cobra_cli.go). Only local file and environment
// variable sources are used; viper's remote-config backends are not
// wired (see DESIGN.md).
package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/silkrt/silk/internal/bridge"
	"github.com/silkrt/silk/permission"
)

// Config is the parsed configuration consumed by runtime.New.
type Config struct {
	Permissions permission.Config
	ModeA       bridge.Config
}

// Load reads configuration from path (if non-empty) plus environment
// variables prefixed SILK_, and unmarshals it into Config.
//
// Example file (YAML):
//
//	permissions:
//	  allow_commands: ["silk:ping"]
//	  deny_commands: ["fs:readText"]
//	  fs:
//	    read_roots: ["/srv/app"]
//	    write_roots: ["/srv/app/data"]
//	  shell:
//	    allow_programs: ["git"]
//	mode_a:
//	  enabled: true
//	  argv: ["node", "handler.js"]
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SILK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (Config, error) {
	cfg := Config{
		Permissions: permission.Config{
			AllowCommands:      v.GetStringSlice("permissions.allow_commands"),
			DenyCommands:       v.GetStringSlice("permissions.deny_commands"),
			FSReadRoots:        v.GetStringSlice("permissions.fs.read_roots"),
			FSWriteRoots:       v.GetStringSlice("permissions.fs.write_roots"),
			ShellAllowPrograms: v.GetStringSlice("permissions.shell.allow_programs"),
		},
		ModeA: bridge.Config{
			Enabled: v.GetBool("mode_a.enabled"),
			Argv:    v.GetStringSlice("mode_a.argv"),
		},
	}

	nsRaw := v.GetStringMap("permissions.namespace_grants")
	if len(nsRaw) > 0 {
		cfg.Permissions.NamespaceGrants = make(map[string][]string, len(nsRaw))
		for ns, subsRaw := range nsRaw {
			switch subs := subsRaw.(type) {
			case []interface{}:
				var list []string
				for _, s := range subs {
					if str, ok := s.(string); ok {
						list = append(list, str)
					}
				}
				cfg.Permissions.NamespaceGrants[ns] = list
			case nil:
				cfg.Permissions.NamespaceGrants[ns] = nil
			}
		}
	}

	if cfg.ModeA.Enabled && len(cfg.ModeA.Argv) == 0 {
		return Config{}, fmt.Errorf("config: mode_a.enabled is true but mode_a.argv is empty")
	}

	return cfg, nil
}

// WatchFunc is called with the freshly reloaded Config whenever the
// watched file changes.
type WatchFunc func(Config)

// Watch installs an fsnotify-backed watch (via viper.WatchConfig) on the
// policy file at path, invoking onChange with the reloaded Config after
// each write. This is an opt-in extension point: spec §4.3 states routes
// and policy are never mutated after dispatch begins, so applying a
// reloaded Config to a live Runtime is the host's explicit decision, not
// something this package does automatically.
func Watch(path string, onChange WatchFunc) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}
