package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fadilmartias/resume-insight/internal/service"
	"github.com/spf13/cobra"
)

type searchOptions struct {
	location string
	limit    int
}

var searchKinds = []string{service.SearchWeb, service.SearchImages, service.SearchJobs}

func newSearchCmd(root *rootOptions) *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:       "search <web|images|jobs> <query...>",
		Short:     "Query the web, image or job search backend",
		Args:      searchArgs,
		ValidArgs: searchKinds,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := root.logger()
			defer func() { _ = log.Sync() }()

			up := newUpstream(cmd.Context(), log)
			defer up.Close()

			results, err := runSearch(cmd.Context(), up.search, args[0], strings.Join(args[1:], " "), opts)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().StringVarP(&opts.location, "location", "l", "", "Location filter for job searches")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 5, "Number of results (max 10)")
	return cmd
}

func searchArgs(cmd *cobra.Command, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("expected a search kind and a query")
	}
	for _, k := range searchKinds {
		if args[0] == k {
			return nil
		}
	}
	return fmt.Errorf("unknown search kind %q (want one of %s)", args[0], strings.Join(searchKinds, ", "))
}

func runSearch(ctx context.Context, s service.Searcher, kind, query string, opts *searchOptions) ([]service.SearchResult, error) {
	switch kind {
	case service.SearchWeb:
		return s.Web(ctx, query, opts.limit)
	case service.SearchImages:
		return s.Images(ctx, query, opts.limit)
	default:
		return s.Jobs(ctx, query, opts.location, opts.limit)
	}
}
