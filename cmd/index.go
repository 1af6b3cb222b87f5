package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hempwatch/harvester/internal/indexer"
)

// newIndexCmd creates the 'index' subcommand, which regenerates the static
// archive listing page without running a harvest.
func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Rebuilds the static archive index page",
		Long: `Lists every archived report in storage and regenerates the paginated
HTML index page. Useful after manual archive maintenance.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ix := indexer.New(a.Store, indexer.Config{
				ArchivePrefix: a.Cfg.Storage.ArchivePrefix,
				MarkerPath:    a.Cfg.Storage.MarkerPath,
				OutputPath:    a.Cfg.Index.OutputPath,
				PublicBaseURL: a.Cfg.Index.PublicBaseURL,
				Title:         a.Cfg.Index.Title,
				PageSize:      a.Cfg.Index.PageSize,
			}, a.Logger)
			return ix.Rebuild(cmd.Context())
		},
	}
}
