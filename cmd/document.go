package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/agentic-research/folio/api"
	"github.com/agentic-research/folio/internal/document"
	"github.com/agentic-research/folio/internal/graph"
	"github.com/agentic-research/folio/internal/layout"
	"github.com/spf13/cobra"
)

var (
	newPreset string
	newTitle  string
)

func init() {
	newCmd.Flags().StringVar(&newPreset, "preset", "", "Start from a stored preset")
	newCmd.Flags().StringVar(&newTitle, "title", "", "Title of the root node")
	rootCmd.AddCommand(newCmd, migrateCmd, inspectCmd, validateCmd)
}

var newCmd = &cobra.Command{
	Use:   "new [file]",
	Short: "Create a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		doc := document.New(cfg.Layout())
		if newPreset != "" {
			lib, err := openPresets(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = lib.Close() }()
			src, err := lib.Load(ctx, newPreset)
			if err != nil {
				return err
			}
			if doc, err = document.FromAPI(src, cfg.Layout()); err != nil {
				return err
			}
		}
		if newTitle != "" {
			if err := doc.Nodes().Update(doc.Nodes().RootID(), graph.Patch{Title: &newTitle}); err != nil {
				return err
			}
		}

		store, name, err := openProject(args[0])
		if err != nil {
			return err
		}
		if err := store.Save(ctx, name, doc.Export()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", args[0])
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate [in] [out]",
	Short: "Upgrade a document to the current schema version",
	Long:  "Upgrade a document of any supported schema version. Without [out] the result is written to stdout.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		in, name, err := openProject(args[0])
		if err != nil {
			return err
		}
		doc, err := in.Decode(ctx, name)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		}
		out, outName, err := openProject(args[1])
		if err != nil {
			return err
		}
		if err := out.Save(ctx, outName, doc); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Migrated %s to schema version %d\n", args[0], api.CurrentSchemaVersion)
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "Print the node tree and variants of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDocument(cmd, args[0])
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()

		fmt.Fprintln(w, "Nodes:")
		err = doc.Nodes().Walk(func(n *api.Node, depth int) error {
			indent := strings.Repeat("  ", depth+1)
			if n.IsReference() {
				fmt.Fprintf(w, "%s-> %s (%s) alias of %s\n", indent, n.Title, n.Type, n.ReferenceID)
				return nil
			}
			fmt.Fprintf(w, "%s%s (%s) %s\n", indent, n.Title, n.Type, n.ID)
			return nil
		})
		if err != nil {
			return err
		}

		fmt.Fprintln(w, "Variants:")
		active := doc.Variants().ActiveID()
		refs := doc.Variants().References()
		for _, vid := range doc.Variants().VariantIDs() {
			v, _ := doc.Variants().Variant(vid)
			marker := " "
			if vid == active {
				marker = "*"
			}
			fmt.Fprintf(w, " %s %s (%s)\n", marker, v.Name, v.ID)
			for _, key := range layout.TemplateKeys(v) {
				t := v.Templates[key]
				fmt.Fprintf(w, "     %s: %q %gx%g, %d elements\n", key, t.Name, t.Width, t.Height, len(t.Elements))
			}
		}
		if len(refs) > 0 {
			fmt.Fprintf(w, "Referenced nodes: %d\n", len(refs))
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check a document against the model invariants",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadDocument(cmd, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
		return nil
	},
}

func loadDocument(cmd *cobra.Command, path string) (*document.Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	store, name, err := openProject(path)
	if err != nil {
		return nil, err
	}
	return store.Load(cmd.Context(), name, cfg.Layout())
}
