package appconfig

// Config is the top-level TOML configuration structure (§10.3), holding
// the api key, the default game profile, and per-profile directory
// overrides, following the teacher's internal/config.Config layout.
type Config struct {
	APIKey      string                   `toml:"api_key"`
	DefaultGame string                   `toml:"default_game"`
	Profiles    map[string]ProfileConfig `toml:"profile"`
	Logging     LoggingConfig            `toml:"logging"`
	Transfers   TransfersConfig          `toml:"transfers"`
}

// ProfileConfig overrides directory placement for one game profile.
type ProfileConfig struct {
	DownloadDir string `toml:"download_dir"`
	InstallDir  string `toml:"install_dir"`
}

// LoggingConfig controls log output behavior, mirroring the teacher's
// internal/config.LoggingConfig.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// TransfersConfig controls the download pipeline's concurrency bound (§5).
type TransfersConfig struct {
	MaxConcurrentDownloads int64 `toml:"max_concurrent_downloads"`
}

// DefaultConfig returns a Config with the documented defaults (§5's
// recommended concurrency bound, Warn-level logging).
func DefaultConfig() *Config {
	return &Config{
		Profiles: make(map[string]ProfileConfig),
		Logging:  LoggingConfig{Level: "warn"},
		Transfers: TransfersConfig{
			MaxConcurrentDownloads: 4,
		},
	}
}

// ProfileFor resolves the download/install directories for a game,
// falling back to the shared defaults when no profile override exists.
func (c *Config) ProfileFor(game string, defaults Paths) (downloadDir, installDir string) {
	downloadDir, installDir = defaults.DownloadDir, defaults.InstallDir

	p, ok := c.Profiles[game]
	if !ok {
		return downloadDir, installDir
	}

	if p.DownloadDir != "" {
		downloadDir = p.DownloadDir
	}

	if p.InstallDir != "" {
		installDir = p.InstallDir
	}

	return downloadDir, installDir
}
