// Package config provides the validated configuration store for wdir.
//
// The configuration is a two-section tree persisted as JSON:
//
//	{
//	  "log": {
//	    "level": "info",
//	    "output": "console",
//	    "file": "/var/log/wdir.log",
//	    "pluginLevels": { "git": "debug" }
//	  },
//	  "plugin": {
//	    "active": true,
//	    "path": "~/.config/wdir/plugins"
//	  }
//	}
//
// # Addressing
//
// Settings are addressed by two-segment dot paths such as "log.level" or
// "plugin.active". A single plugin override is addressed as
// "log.pluginLevels.<name>".
//
// # Mutation
//
// Every write goes through Store.Overwrite, which validates the value
// against the setting's domain, checks cross-field rules, persists the whole
// tree and only then commits it. A rejected write returns *Error and leaves
// both memory and disk untouched.
//
//	store := config.NewStore(config.FilePersister{Path: config.DefaultFile()})
//	cfg, err := store.Load()
//	if err != nil {
//	    return err
//	}
//	if err := store.Overwrite("log.level", "debug"); err != nil {
//	    var cerr *config.Error
//	    if errors.As(err, &cerr) {
//	        fmt.Println("bad key:", cerr.Key)
//	    }
//	}
//
// Committed changes are published through the notify sub-package.
package config
