package appconfig

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
	appName        = "dmodman"
	configFileName = "config.toml"
)

// Paths resolves the XDG (or per-OS equivalent) directory tree a running
// instance uses: downloaded archives, extracted mods, and cached API
// responses/sidecars (§4.5, §6).
type Paths struct {
	ConfigDir   string
	DataDir     string
	CacheDir    string
	DownloadDir string
	InstallDir  string
}

// DefaultPaths resolves every directory from the environment, creating
// none of them — callers create directories lazily on first write, matching
// the teacher's DefaultConfigDir/DefaultDataDir/DefaultCacheDir split.
func DefaultPaths() Paths {
	dataDir := defaultDataDir()

	return Paths{
		ConfigDir:   defaultConfigDir(),
		DataDir:     dataDir,
		CacheDir:    defaultCacheDir(),
		DownloadDir: filepath.Join(dataDir, "downloads"),
		InstallDir:  filepath.Join(dataDir, "mods"),
	}
}

// DefaultConfigPath is the config file path used when neither --config nor
// an environment override names one.
func DefaultConfigPath() string {
	dir := defaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}

// SocketPath returns the well-known UNIX socket path for uid (§6:
// "/run/user/<uid>/dmodman.socket").
func SocketPath(uid int) string {
	return filepath.Join("/run", "user", strconv.Itoa(uid), appName+".socket")
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxDir(home, "XDG_CONFIG_HOME", ".config")
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".config", appName)
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxDir(home, "XDG_DATA_HOME", ".local/share")
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".local", "share", appName)
	}
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxDir(home, "XDG_CACHE_HOME", ".cache")
	case platformDarwin:
		return filepath.Join(home, "Library", "Caches", appName)
	default:
		return filepath.Join(home, ".cache", appName)
	}
}

func linuxDir(home, envVar, fallback string) string {
	if xdg := os.Getenv(envVar); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, filepath.FromSlash(fallback), appName)
}
