// Package plugin discovers and loads wdir plugins.
//
// Every immediate subdirectory of the configured plugin path is a
// candidate. A candidate opts in by shipping a manifest:
//
//	plugins/
//	└── tagger/
//	    └── src/
//	        ├── manifest.json
//	        ├── main.lua      # entry
//	        └── util.lua      # require("util")
//
// # Manifest
//
//	{
//	  "name": "tagger",
//	  "entry": "main",
//	  "description": "Tags changed files",
//	  "version": "0.2.0",
//	  "author": "someone",
//	  "logLevel": "debug"
//	}
//
// The entry is resolved under src/, and ".lua" is appended when it has no
// extension.
//
// # Load Pass
//
// Folders are processed one at a time in directory listing order:
//
//	Discovered → ManifestValid → EntryFound → Loaded → Registered
//
// A folder without a manifest is skipped at debug level, and a missing
// entry is skipped with a warning. Load or registration errors, panics and
// timeouts mark only that plugin as failed.
//
// # Usage
//
//	loader := plugin.NewLoader(
//	    plugin.WithRuntime(".lua", lua.NewRuntime()),
//	    plugin.WithTimeout(5*time.Second),
//	)
//	defer loader.Close()
//
//	results := loader.LoadAll(ctx, plugin.Env{
//	    Logger:    log,
//	    Config:    store,
//	    Watch:     bus,
//	    Commands:  registrar,
//	    WatchPath: func() string { return dir },
//	    Version:   version,
//	})
//
// The entry point receives a Bundle: a logger named after the plugin, a
// watch subscription handle, a config snapshot carrying the plugin's
// effective log level, and functions to overwrite config and register
// commands.
package plugin
