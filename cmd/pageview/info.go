package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tsawler/pageview/reader"
)

func infoCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "info <file.pdf>",
		Short: "Print document and page information",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := reader.OpenWithPassword(args[0], cfg.Password)
			if err != nil {
				return err
			}
			defer r.Close()
			return printInfo(cmd.OutOrStdout(), r)
		},
	}
}

func printInfo(w io.Writer, r *reader.Reader) error {
	count, err := r.PageCount()
	if err != nil {
		return err
	}
	info, err := r.Info()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Version:   %s\n", r.Version())
	fmt.Fprintf(w, "Pages:     %d\n", count)
	if info.Title != "" {
		fmt.Fprintf(w, "Title:     %s\n", info.Title)
	}
	if info.Author != "" {
		fmt.Fprintf(w, "Author:    %s\n", info.Author)
	}
	if info.Producer != "" {
		fmt.Fprintf(w, "Producer:  %s\n", info.Producer)
	}
	fmt.Fprintf(w, "Encrypted: %t\n", r.Encrypted())
	if r.Repaired() {
		fmt.Fprintln(w, "Repaired:  true")
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PAGE\tBOX\tROTATE")
	for i := 0; i < count; i++ {
		p, err := r.GetPage(i)
		if err != nil {
			return fmt.Errorf("page %d: %w", i+1, err)
		}
		box, err := p.Box()
		if err != nil {
			return fmt.Errorf("page %d: %w", i+1, err)
		}
		fmt.Fprintf(tw, "%d\t[%g %g %g %g]\t%d\n", i+1, box.Left, box.Bottom, box.Right, box.Top, p.Rotate())
	}
	return tw.Flush()
}
