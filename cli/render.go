package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/morikuni/failure/v2"
	"github.com/rendini/mashup/api/markup"
	"github.com/rendini/mashup/api/model"
	"github.com/spf13/cobra"
)

type renderOptions struct {
	backend string
	params  paramsFlag
	device  string
	locale  string
	agent   string
	preview bool
	raw     bool
	noPager bool
}

func newRenderCmd(o *rootOptions) *cobra.Command {
	ro := &renderOptions{}

	cmd := &cobra.Command{
		Use:   "render <path>...",
		Short: "Render paths on every backend",
		Long: `Render one or more paths on every backend (or the one named by --backend)
and show what came back.

HTML output is converted to Markdown and shown in a pager when stdout is a
terminal. Use --raw to print backend output untouched.`,
		Example: `  rendini render /home
  rendini render /product --param id=42 --param tags='["a","b"]' --locale ja-JP
  rendini render /home --backend vue --raw`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, _, err := o.gateway(nil)
			if err != nil {
				return err
			}

			req := model.RenderRequest{
				Paths:   args,
				Params:  ro.params.Values,
				Backend: ro.backend,
			}
			rc := model.RenderContext{Device: ro.device, Locale: ro.locale, UserAgent: ro.agent}
			if cmd.Flags().Changed("preview") {
				preview := ro.preview
				rc.Preview = &preview
			}
			if !rc.IsZero() {
				req.Context = &rc
			}

			results, err := gw.Render(cmd.Context(), req)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				return failure.New(NoResults,
					failure.Message("No backend rendered the requested paths"),
					failure.Context{"paths": strings.Join(args, ",")},
				)
			}

			out := cmd.OutOrStdout()
			if o.json {
				return writeJSON(out, results)
			}
			if ro.raw {
				return writeRaw(out, results)
			}

			pages, err := renderPages(results)
			if err != nil {
				return err
			}
			if !ro.noPager && isTerminal(out) {
				return runPager(pages)
			}
			for _, p := range pages {
				if _, err := fmt.Fprintf(out, "# %s\n%s\n", p.Title, p.Body); err != nil {
					return failure.Wrap(err)
				}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&ro.backend, "backend", "b", "", "Render on this backend only")
	f.VarP(&ro.params, "param", "p", "Template parameter as key=value; JSON values keep their type")
	f.StringVar(&ro.device, "device", "", "Device hint forwarded to the backends")
	f.StringVar(&ro.locale, "locale", "", "Locale hint forwarded to the backends")
	f.StringVar(&ro.agent, "user-agent", "", "User agent hint forwarded to the backends")
	f.BoolVar(&ro.preview, "preview", false, "Ask the backends for preview content")
	f.BoolVar(&ro.raw, "raw", false, "Print backend output without conversion")
	f.BoolVar(&ro.noPager, "no-pager", false, "Print to stdout even on a terminal")
	return cmd
}

// renderPages converts each result into a terminal page
func renderPages(results []model.RenderResult) ([]page, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return nil, failure.Wrap(err)
	}

	pages := make([]page, 0, len(results))
	for _, res := range results {
		md, err := markup.Markdown(res.Content, res.ContentType)
		if err != nil {
			return nil, err
		}
		body, err := renderer.Render(md)
		if err != nil {
			return nil, failure.Wrap(err)
		}
		pages = append(pages, page{Title: pageTitle(res), Body: body})
	}
	return pages, nil
}

func pageTitle(res model.RenderResult) string {
	title := res.Path + " @ " + res.OriginBackend
	if markup.IsHTML(res.ContentType) {
		if t := markup.Title(res.Content); t != "" {
			title += " | " + t
		}
	}
	return title
}

func writeRaw(w io.Writer, results []model.RenderResult) error {
	for _, res := range results {
		if _, err := fmt.Fprintf(w, "==> %s @ %s (%s) <==\n%s\n", res.Path, res.OriginBackend, res.ContentType, res.Content); err != nil {
			return failure.Wrap(err)
		}
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
