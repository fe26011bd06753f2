package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/circuitflow/internal/config"
	"github.com/gyaneshwarpardhi/circuitflow/internal/store"
	"github.com/gyaneshwarpardhi/circuitflow/internal/topology"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// cli carries state shared by every subcommand.
type cli struct {
	configPath string
	store      store.Store
}

// execute runs one command line and closes the store it opened.
func execute(args []string, in io.Reader, out io.Writer) error {
	c := &cli{}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(out)
	err := root.Execute()
	if c.store != nil {
		if cerr := c.store.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "circuitctl",
		Short:         "Inspect and move stored circuit graphs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd)
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "configs/circuitflow.yaml", "Path to YAML config")

	root.AddCommand(
		c.listCmd(),
		c.showCmd(),
		c.exportCmd(),
		c.importCmd(),
		c.inspectCmd(),
		c.deleteCmd(),
	)
	return root
}

func (c *cli) open(cmd *cobra.Command) error {
	loader, err := config.NewLoader(c.configPath)
	if err != nil {
		return err
	}
	st, err := store.Open(cmd.Context(), loader.Config().Store, nil)
	if err != nil {
		return err
	}
	c.store = st
	return nil
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored graphs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos, err := c.store.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintln(out, "no graphs stored")
				return nil
			}
			rows := make([][]string, len(infos))
			for i, info := range infos {
				rows[i] = []string{info.Name, info.Tag, strconv.Itoa(info.Nodes), info.LastUpdate.Format("2006-01-02 15:04:05")}
			}
			fmt.Fprintln(out, renderTable([]string{"NAME", "TAG", "NODES", "UPDATED"}, rows))
			return nil
		},
	}
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Print a stored graph as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.store.Load(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(e)
		},
	}
}

func (c *cli) exportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export [NAME...]",
		Short: "Write graphs to a JSON container (all graphs when no name is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			n, err := store.ExportContainer(cmd.Context(), c.store, w, args...)
			if err != nil {
				return err
			}
			if w != cmd.OutOrStdout() {
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d graphs to %s\n", n, output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func (c *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Save every graph of a JSON container; FILE may be - for stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			n, err := store.ImportContainer(cmd.Context(), c.store, r)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d graphs\n", n)
			return err
		},
	}
}

func (c *cli) inspectCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect NAME",
		Short: "Summarize a stored graph's topology",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.store.Load(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			stats := topology.Build(e.Graph.Records).Summarize()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			depth := strconv.Itoa(stats.Depth)
			if stats.Cyclic {
				depth = "n/a (cyclic)"
			}
			rows := [][]string{
				{"nodes", strconv.Itoa(stats.Nodes)},
				{"edges", strconv.Itoa(stats.Edges)},
				{"roots", strconv.Itoa(stats.Roots)},
				{"settle depth", depth},
				{"cyclic", strconv.FormatBool(stats.Cyclic)},
				{"dropped edges", strconv.Itoa(stats.Dropped)},
				{"kinds", formatKinds(stats.Kinds)},
			}
			fmt.Fprintln(out, renderTable([]string{args[0], ""}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	return cmd
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME...",
		Short: "Delete stored graphs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				if err := c.store.Delete(cmd.Context(), name); err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", name)
			}
			return nil
		},
	}
}

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}

func formatKinds(kinds map[string]int) string {
	names := make([]string, 0, len(kinds))
	for k := range kinds {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s=%d", k, kinds[k])
	}
	return strings.Join(parts, " ")
}
