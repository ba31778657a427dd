package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the indexed file count",
		Long: `Rebuilds a throwaway index from on-disk sidecars (no live daemon query:
the socket protocol only carries mod-protocol URLs, not a status RPC) and
reports its size. The API quota is not known to this command: it is shown
as unknown on a terminal and omitted from piped output.`,
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	games := configuredGames(cc.Cfg, cc.Game)
	if len(games) == 0 {
		return fmt.Errorf("status: no game configured; set --game or default_game in config")
	}

	idx, _ := buildIndex(cmd.Context(), cc.Cfg, cc.Paths, games, cc.Logger)

	if isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Printf("games:         %v\n", games)
		fmt.Printf("indexed files: %d\n", idx.Size())
		fmt.Println("quota:         unknown until a request has been made (no live daemon to query)")

		return nil
	}

	fmt.Printf("indexed_files=%d games=%v\n", idx.Size(), games)

	return nil
}
