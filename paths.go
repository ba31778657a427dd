package main

import (
	"os"
	"path/filepath"

	"github.com/dandels/dmodman-core/internal/apiclient"
	"github.com/dandels/dmodman-core/internal/appconfig"
)

// appName and version (root.go) compose the Nexus Mods API User-Agent header (§6).
const appName = "dmodman-core"

// apiClientFromConfig builds an apiclient.Client from resolved CLI state.
// Shared by every command that needs to talk to the remote API.
func apiClientFromConfig(cc *CLIContext) *apiclient.Client {
	return apiclient.NewClient(apiclient.DefaultBaseURL, cc.Cfg.APIKey, appName, version, nil, cc.Logger)
}

// appSocketPath resolves the UNIX socket path for the current user (§6:
// "/run/user/<uid>/dmodman.socket").
func appSocketPath() string {
	return appconfig.SocketPath(os.Getuid())
}

// historyDBPath is the ledger database file under the data directory.
func historyDBPath(paths appconfig.Paths) string {
	return filepath.Join(paths.DataDir, "history.db")
}
