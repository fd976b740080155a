// internal/app/bootstrap/hooks.go
package bootstrap

import (
	"github.com/dalemusser/waffle/app"
)

// Hooks wires this app into the WAFFLE lifecycle.
// Each function is called in order by app.Run, from configuration
// loading through DB setup, one-time startup work, HTTP handler
// construction, and finally graceful shutdown.
var Hooks = app.Hooks[AppConfig, DBDeps]{
	Name:           "stratanotify",  // used only for logging/diagnostics
	LoadConfig:     LoadConfig,      // load core + app config
	ValidateConfig: ValidateConfig,  // validate MongoDB URI and audit modes
	ConnectDB:      ConnectDB,       // connect to MongoDB and return DBDeps
	EnsureSchema:   EnsureSchema,    // validators, indexes, default templates
	Startup:        Startup,         // editing registry, audit logger, background jobs
	BuildHandler:   BuildHandler,    // build the HTTP router + middleware stack
	Shutdown:       Shutdown,        // stop jobs, flush stats, disconnect MongoDB
}
