package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/mirror/internal/store"
)

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Inspect and reset stored widget layouts",
}

var layoutListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored widget layouts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st *store.Store) error {
			layouts, err := st.Layouts().List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WIDGET\tX\tY\tWIDTH\tHEIGHT\tSOURCE\tUPDATED")
			for _, l := range layouts {
				fmt.Fprintf(w, "%s\t%.0f\t%.0f\t%.0f\t%.0f\t%s\t%s\n",
					l.WidgetID, l.X, l.Y, l.Width, l.Height, l.Source, l.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		})
	},
}

var layoutResetCmd = &cobra.Command{
	Use:   "reset <widget-id>...",
	Short: "Forget stored layouts so widgets return to their defaults",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st *store.Store) error {
			for _, id := range args {
				err := st.Layouts().Delete(cmd.Context(), id)
				if errors.Is(err, store.ErrNotFound) {
					fmt.Printf("%s: no stored layout\n", id)
					continue
				}
				if err != nil {
					return fmt.Errorf("reset %s: %w", id, err)
				}
				fmt.Printf("%s: reset\n", id)
			}
			return nil
		})
	},
}

func init() {
	layoutCmd.AddCommand(layoutListCmd, layoutResetCmd)
	rootCmd.AddCommand(layoutCmd)
}

func withStore(fn func(st *store.Store) error) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}
