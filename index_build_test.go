package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dandels/dmodman-core/internal/appconfig"
)

func TestConfiguredGames_DeduplicatesAndSorts(t *testing.T) {
	cfg := appconfig.DefaultConfig()
	cfg.DefaultGame = "morrowind"
	cfg.Profiles["skyrimspecialedition"] = appconfig.ProfileConfig{}
	cfg.Profiles["morrowind"] = appconfig.ProfileConfig{}

	games := configuredGames(cfg, "newvegas")

	assert.Equal(t, []string{"morrowind", "newvegas", "skyrimspecialedition"}, games)
}

func TestConfiguredGames_EmptySelectionFallsBackToProfilesOnly(t *testing.T) {
	cfg := appconfig.DefaultConfig()
	cfg.Profiles["morrowind"] = appconfig.ProfileConfig{}

	games := configuredGames(cfg, "")

	assert.Equal(t, []string{"morrowind"}, games)
}

func TestGameSidecars_ResolvesPerGameDirectories(t *testing.T) {
	cfg := appconfig.DefaultConfig()
	cfg.Profiles["skyrimspecialedition"] = appconfig.ProfileConfig{DownloadDir: "/custom/downloads", InstallDir: "/custom/mods"}

	paths := appconfig.Paths{DownloadDir: "/default/downloads", InstallDir: "/default/mods"}

	gs := newGameSidecars(cfg, paths)

	assert.Equal(t, "/custom/downloads", gs.storeFor("skyrimspecialedition").DownloadDir)
	assert.Equal(t, "/default/downloads", gs.storeFor("morrowind").DownloadDir)
}
