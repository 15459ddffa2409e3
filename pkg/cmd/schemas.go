package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/jzelinskie/cobrautil/v2"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/spf13/cobra"

	"github.com/authzed/jsonschemas/internal/services/schemas"
	"github.com/authzed/jsonschemas/pkg/cmd/server"
	"github.com/authzed/jsonschemas/pkg/cmd/termination"
	"github.com/authzed/jsonschemas/pkg/schemaerrors"
)

const maxSuggestions = 3

func registerOfflineFlags(cmd *cobra.Command, config *server.Config) {
	nfs := cobrautil.NewNamedFlagSets(cmd)
	schemaFlags := nfs.FlagSet(BoldBlue("Schemas"))
	RegisterSchemaFlags(schemaFlags, config)
	RegisterSourceFlags(schemaFlags, config)
	nfs.AddFlagSets(cmd)

	// Each command reads a single registry snapshot; caching gains nothing.
	config.SchemaCache.Disabled = true
}

func withService(cmd *cobra.Command, config *server.Config, fn func(ctx context.Context, completed *server.CompletedService) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	completed, err := config.CompleteService(ctx)
	if err != nil {
		return err
	}
	defer completed.Close()
	return fn(ctx, completed)
}

// NewListCommand returns a command printing every registered schema.
func NewListCommand(programName string, config *server.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Short:   "list the registered schemas",
		Args:    cobra.NoArgs,
		PreRunE: server.DefaultPreRunE(programName),
		RunE: termination.PublishError(func(cmd *cobra.Command, args []string) error {
			asJSON := cobrautil.MustGetBool(cmd, "json")
			fullPaths := cobrautil.MustGetBool(cmd, "full-path")

			return withService(cmd, config, func(ctx context.Context, completed *server.CompletedService) error {
				entries, err := completed.Service.Index(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return writeIndexJSON(cmd.OutOrStdout(), entries)
				}

				reg := completed.Reloader.Current().Registry
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, entry := range entries {
					source, err := reg.SourceOf(entry.Path)
					if err != nil {
						return err
					}

					location := entry.URL
					if fullPaths {
						if location, err = reg.FullPath(entry.Path); err != nil {
							return err
						}
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", entry.Path, source.Name, location)
				}
				return w.Flush()
			})
		}),
	}
	cmd.Flags().Bool("json", false, "print the index as JSON")
	cmd.Flags().Bool("full-path", false, "print the location of each schema document instead of its URL")
	registerOfflineFlags(cmd, config)
	return cmd
}

func writeIndexJSON(w io.Writer, entries []schemas.IndexEntry) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(struct {
		Schemas []schemas.IndexEntry `json:"schemas"`
	}{Schemas: entries})
}

// NewResolveCommand returns a command printing one schema, transformed as the
// HTTP endpoint would.
func NewResolveCommand(programName string, config *server.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "resolve <schema path>",
		Short:   "print a registered schema",
		Long:    "Prints a registered schema, optionally with references replaced and allOf compositions merged",
		Args:    cobra.ExactArgs(1),
		PreRunE: server.DefaultPreRunE(programName),
		RunE: termination.PublishError(func(cmd *cobra.Command, args []string) error {
			transform := schemas.Transform{
				ReplaceRefs: cobrautil.MustGetBool(cmd, "refs") || config.ReplaceRefs,
				Resolve:     cobrautil.MustGetBool(cmd, "resolved") || config.ResolveSchema,
			}

			return withService(cmd, config, func(ctx context.Context, completed *server.CompletedService) error {
				body, err := completed.Service.Schema(ctx, args[0], transform)
				if schemaerrors.IsNotFound(err) {
					paths, listErr := completed.Reloader.Current().Registry.ListPaths()
					if listErr == nil {
						if suggestions := suggestPaths(args[0], paths); len(suggestions) > 0 {
							return fmt.Errorf("%w; did you mean %s?", err, strings.Join(suggestions, ", "))
						}
					}
				}
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return err
			})
		}),
	}
	cmd.Flags().Bool("refs", false, "replace $ref references")
	cmd.Flags().Bool("resolved", false, "replace references and merge allOf compositions")
	registerOfflineFlags(cmd, config)
	return cmd
}

// suggestPaths returns the registered paths closest to a path that was not
// found, best match first.
func suggestPaths(missing string, paths []string) []string {
	ranks := fuzzy.RankFindNormalizedFold(missing, paths)
	sort.Sort(ranks)

	suggestions := make([]string, 0, maxSuggestions)
	for _, rank := range ranks {
		if len(suggestions) == maxSuggestions {
			break
		}
		suggestions = append(suggestions, rank.Target)
	}
	return suggestions
}
