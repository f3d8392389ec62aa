package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var resetConfirm bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop and recreate all tables",
	Long:  "Destroys every stored record and recreates an empty schema. Requires --confirm.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if !resetConfirm {
			return eris.New("reset destroys all stored data, pass --confirm to proceed")
		}

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()

		if err := st.Reset(ctx); err != nil {
			return eris.Wrap(err, "reset")
		}

		zap.L().Info("store reset", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetConfirm, "confirm", false, "confirm destroying all stored data")
	rootCmd.AddCommand(resetCmd)
}
