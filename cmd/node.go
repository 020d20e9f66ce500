package cmd

import (
	"fmt"

	"github.com/agentic-research/folio/internal/editor"
	"github.com/agentic-research/folio/internal/graph"
	"github.com/spf13/cobra"
)

var (
	nodeTitle string
	nodeIndex int
)

func init() {
	nodeAddCmd.Flags().StringVar(&nodeTitle, "title", "", "Title of the new node")
	nodeMoveCmd.Flags().IntVar(&nodeIndex, "index", -1, "Position among the new siblings (-1 appends)")
	nodeCmd.AddCommand(nodeAddCmd, nodeAliasCmd, nodeMoveCmd, nodeDeleteCmd)
	rootCmd.AddCommand(nodeCmd)
}

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Edit the node tree of a document",
}

var nodeAddCmd = &cobra.Command{
	Use:   "add [file] [parent] [type]",
	Short: "Add a node under parent",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editDocument(cmd, args[0], func(s *editor.Session) error {
			id, err := s.AddNode(args[1], args[2])
			if err != nil {
				return err
			}
			if nodeTitle != "" {
				if err := s.UpdateNode(id, graph.Patch{Title: &nodeTitle}); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		})
	},
}

var nodeAliasCmd = &cobra.Command{
	Use:   "alias [file] [parent] [target]",
	Short: "Add an alias of target under parent",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editDocument(cmd, args[0], func(s *editor.Session) error {
			id, err := s.AddReference(args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		})
	},
}

var nodeMoveCmd = &cobra.Command{
	Use:   "move [file] [id] [parent]",
	Short: "Reparent a node",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editDocument(cmd, args[0], func(s *editor.Session) error {
			return s.MoveNode(args[1], args[2], nodeIndex)
		})
	},
}

var nodeDeleteCmd = &cobra.Command{
	Use:   "delete [file] [id]",
	Short: "Delete a node with its subtree and aliases",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editDocument(cmd, args[0], func(s *editor.Session) error {
			del, err := s.DeleteNode(args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d nodes\n", del.Len())
			return nil
		})
	},
}

// editDocument loads path into an editor session, runs fn and saves the
// result. Nothing is written when fn fails.
func editDocument(cmd *cobra.Command, path string, fn func(s *editor.Session) error) error {
	doc, err := loadDocument(cmd, path)
	if err != nil {
		return err
	}
	s := editor.New(doc, cfg.Editor(logs.Logger))
	if err := fn(s); err != nil {
		return err
	}
	store, name, err := openProject(path)
	if err != nil {
		return err
	}
	return store.Save(cmd.Context(), name, s.Export())
}
