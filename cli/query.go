package cli

import (
	"fmt"

	"github.com/morikuni/failure/v2"
	"github.com/rendini/mashup/api/backend"
	"github.com/rendini/mashup/api/model"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func newBackendsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the configured backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, _, err := o.gateway(nil)
			if err != nil {
				return err
			}
			backends := gw.Backends()

			if o.json {
				type view struct {
					Name        string `json:"name"`
					BaseAddress string `json:"baseAddress"`
				}
				return writeJSON(cmd.OutOrStdout(), lo.Map(backends, func(b backend.Backend, _ int) view {
					return view{Name: b.Name, BaseAddress: b.BaseURL.String()}
				}))
			}
			rows := lo.Map(backends, func(b backend.Backend, _ int) []string {
				return []string{b.Name, b.BaseURL.String()}
			})
			return writeTable(cmd.OutOrStdout(), []string{"NAME", "BASE ADDRESS"}, rows)
		},
	}
}

func newTargetsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List render targets across all backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, _, err := o.gateway(nil)
			if err != nil {
				return err
			}
			targets, err := gw.ListTargets(cmd.Context())
			if err != nil {
				return err
			}

			if o.json {
				return writeJSON(cmd.OutOrStdout(), targets)
			}
			rows := lo.Map(targets, func(e model.ListingEntry, _ int) []string {
				return []string{e.Path, orDash(e.Template), e.OriginBackend}
			})
			return writeTable(cmd.OutOrStdout(), []string{"NAME", "TEMPLATE", "BACKEND"}, rows)
		},
	}
}

func newIndexCmd(o *rootOptions) *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "List the content index across all backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, _, err := o.gateway(nil)
			if err != nil {
				return err
			}
			entries, err := gw.RenderIndex(cmd.Context(), namespace)
			if err != nil {
				return err
			}

			if o.json {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			rows := lo.Map(entries, func(e model.ListingEntry, _ int) []string {
				return []string{orDash(e.Namespace), e.Path, e.ContentType, formatOptTime(e.LastModified), e.OriginBackend}
			})
			return writeTable(cmd.OutOrStdout(), []string{"NAMESPACE", "PATH", "CONTENT TYPE", "LAST MODIFIED", "BACKEND"}, rows)
		},
	}
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Only entries in this namespace")
	return cmd
}

func newSitemapCmd(o *rootOptions) *cobra.Command {
	var (
		backendName string
		since       timestampFlag
		variants    bool
	)

	cmd := &cobra.Command{
		Use:   "sitemap",
		Short: "Synthesize a sitemap from every backend",
		Long: `Synthesize a sitemap from the sitemap entries every backend reports.

The XML document is printed by default; --json prints the full document
including the parsed entries.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, _, err := o.gateway(nil)
			if err != nil {
				return err
			}
			doc, err := gw.RenderSitemap(cmd.Context(), model.SitemapFilter{
				Backend:         backendName,
				Since:           since.Time(),
				IncludeVariants: variants,
			})
			if err != nil {
				return err
			}

			if o.json {
				return writeJSON(cmd.OutOrStdout(), doc)
			}
			if _, err := fmt.Fprint(cmd.OutOrStdout(), doc.XML); err != nil {
				return failure.Wrap(err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&backendName, "backend", "b", "", "Only entries from this backend")
	cmd.Flags().Var(&since, "since", "Only entries modified at or after this time")
	cmd.Flags().BoolVar(&variants, "variants", false, "Keep every backend's entry for a shared path")
	return cmd
}
