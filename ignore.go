package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dandels/dmodman-core/internal/updatecheck"
)

func newIgnoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ignore <file_id>",
		Short: "Ignore the currently known update for a file",
		Args:  cobra.ExactArgs(1),
		RunE:  runIgnore,
	}
}

func runIgnore(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())

	fileID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("ignore: invalid file_id %q: %w", args[0], err)
	}

	games := configuredGames(cc.Cfg, cc.Game)
	if len(games) == 0 {
		return fmt.Errorf("ignore: no game configured; set --game or default_game in config")
	}

	idx, _ := buildIndex(cmd.Context(), cc.Cfg, cc.Paths, games, cc.Logger)

	api := apiClientFromConfig(cc)
	checker := updatecheck.NewChecker(api, idx, cc.Paths.CacheDir, cc.Logger)

	if err := checker.IgnoreUpdateByFileID(cmd.Context(), fileID); err != nil {
		return fmt.Errorf("ignore: %w", err)
	}

	fmt.Printf("ignored update for file_id %d\n", fileID)

	return nil
}
