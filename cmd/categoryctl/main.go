package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shopverse/category_service/client"
	"github.com/shopverse/category_service/config"
	"github.com/shopverse/category_service/engine"
	"github.com/shopverse/category_service/logger"
	"github.com/shopverse/category_service/tree"
)

// rootParent is the --parent value addressing the top level
const rootParent = "root"

type options struct {
	apiURL  string
	verbose bool
	cfg     *config.ClientConfig
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "categoryctl",
		Short: "Inspect and reorder the ShopVerse category tree",
		Long: `categoryctl talks to the category admin API.

Moves are applied to a local copy first and then committed as the full
sibling order of the parent. When the server rejects a move the local
tree is reloaded from the server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClientConfig()
			if err != nil {
				return err
			}
			if opts.apiURL != "" {
				cfg.APIURL = opts.apiURL
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			opts.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.apiURL, "api-url", "", "category API base URL (default $CATEGORYCTL_API_URL)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log engine activity to stderr")

	root.AddCommand(newTreeCmd(opts), newMoveCmd(opts), newParentsCmd(opts))
	return root
}

func (o *options) session() *engine.Session {
	log := zap.NewNop().Sugar()
	if o.verbose {
		log = logger.Get()
	}
	store := client.New(o.cfg.APIURL, &http.Client{Timeout: o.cfg.Timeout})
	return engine.NewSession(store, log)
}

func load(ctx context.Context, s *engine.Session) error {
	if err := s.Load(ctx); err != nil {
		return fmt.Errorf("unable to load categories: %w", err)
	}
	return nil
}

func newTreeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the category tree with product counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := opts.session()
			if err := load(cmd.Context(), s); err != nil {
				return err
			}
			printTree(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func printTree(w io.Writer, s *engine.Session) {
	nodes := s.Tree()
	for _, f := range tree.Flatten(nodes) {
		n := tree.Find(nodes, f.ID)
		fmt.Fprintf(w, "%s  [%d/%d]  %s\n", f.IndentedLabel(), n.DirectCount, n.TotalCount, f.ID)
	}
	sum := s.Summary()
	fmt.Fprintf(w, "%d categories, %d at root, %d products, max depth %d\n",
		sum.TotalCategories, sum.RootCategories, sum.TotalProducts, sum.MaxDepth)
}

func newMoveCmd(opts *options) *cobra.Command {
	var (
		parent string
		index  int
	)
	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Move a category to a new position among its siblings",
		Example: `  categoryctl move 6f1c2a9e-3b5d-4c8e-9a7f-1d2e3f4a5b6c --parent root --index 0
  categoryctl move 8a2b3c4d-5e6f-4a1b-8c9d-0e1f2a3b4c5d --parent 6f1c2a9e-3b5d-4c8e-9a7f-1d2e3f4a5b6c --index 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			s := opts.session()
			if err := load(ctx, s); err != nil {
				return err
			}

			var parentID *string
			if !strings.EqualFold(parent, rootParent) {
				parentID = &parent
			}

			result, err := s.Move(ctx, parentID, args[0], index)
			var commitErr *engine.CommitError
			switch {
			case errors.As(err, &commitErr):
				if commitErr.Resynced() {
					fmt.Fprintln(out, "move rejected, tree reloaded from server")
				} else {
					fmt.Fprintln(out, "move rejected and the tree could not be reloaded")
				}
				return err
			case err != nil:
				return err
			case result == nil:
				fmt.Fprintf(out, "category %s is not a child of %s, nothing moved\n", args[0], parent)
				return nil
			}

			nodes := s.Tree()
			fmt.Fprintf(out, "new order under %s:\n", parent)
			for i, id := range result.OrderedIDs {
				name := id
				if n := tree.Find(nodes, id); n != nil {
					name = n.Name
				}
				fmt.Fprintf(out, "%3d. %s\n", i, name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&parent, "parent", rootParent, `parent id, or "root" for the top level`)
	cmd.Flags().IntVar(&index, "index", 0, "target position among the siblings (clamped)")
	return cmd
}

func newParentsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "parents [id]",
		Short: "List the categories that can become the parent of a category",
		Long:  "Without an id the list is the one offered when creating a category.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := opts.session()
			if err := load(cmd.Context(), s); err != nil {
				return err
			}
			editing := ""
			if len(args) == 1 {
				editing = args[0]
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "(none)  root")
			for _, f := range s.ParentOptions(editing) {
				fmt.Fprintf(out, "%s  %s\n", f.IndentedLabel(), f.ID)
			}
			return nil
		},
	}
}
