package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	presetCmd.AddCommand(presetSaveCmd, presetLoadCmd, presetListCmd, presetDeleteCmd)
	rootCmd.AddCommand(presetCmd)
}

var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Manage the preset library",
}

var presetSaveCmd = &cobra.Command{
	Use:   "save [name] [file]",
	Short: "Store a document as a preset",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, name, err := openProject(args[1])
		if err != nil {
			return err
		}
		doc, err := store.Load(ctx, name, cfg.Layout())
		if err != nil {
			return err
		}
		lib, err := openPresets(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = lib.Close() }()
		if err := lib.Save(ctx, args[0], doc.Export()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved preset %q\n", args[0])
		return nil
	},
}

var presetLoadCmd = &cobra.Command{
	Use:   "load [name] [file]",
	Short: "Write a preset out as a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		lib, err := openPresets(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = lib.Close() }()
		doc, err := lib.Load(ctx, args[0])
		if err != nil {
			return err
		}
		store, name, err := openProject(args[1])
		if err != nil {
			return err
		}
		if err := store.Save(ctx, name, doc); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote preset %q to %s\n", args[0], args[1])
		return nil
	},
}

var presetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		lib, err := openPresets(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = lib.Close() }()
		list, err := lib.List(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tSCHEMA\tNODES\tUPDATED")
		for _, p := range list {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", p.Name, p.SchemaVersion, p.Nodes, p.UpdatedAt.Format(time.RFC3339))
		}
		return tw.Flush()
	},
}

var presetDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Remove a preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		lib, err := openPresets(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = lib.Close() }()
		if err := lib.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted preset %q\n", args[0])
		return nil
	},
}
