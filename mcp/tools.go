package mcp

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"
	"github.com/rendini/mashup/api/backend"
	"github.com/rendini/mashup/api/jsonvalue"
	"github.com/rendini/mashup/api/markup"
	"github.com/rendini/mashup/api/model"
	"github.com/rendini/mashup/api/normalize"
	"github.com/samber/lo"
)

var validate = validator.New()

// InitTools returns every tool backed by gw
func InitTools(gw Gateway) []server.ServerTool {
	return []server.ServerTool{
		newServerTool(ListBackends(gw)),
		newServerTool(ListTargets(gw)),
		newServerTool(Render(gw)),
		newServerTool(RenderSitemap(gw)),
		newServerTool(RenderIndex(gw)),
	}
}

// decodeArgs fills args from the raw tool arguments and validates it
func decodeArgs(ctx context.Context, raw map[string]interface{}, args interface{}) error {
	if err := mapstructure.Decode(raw, args); err != nil {
		return err
	}
	return validate.StructCtx(ctx, args)
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func ListBackends(gw Gateway) (tool mcp.Tool, handler server.ToolHandlerFunc) {
	return mcp.NewTool(
			"list_backends",
			mcp.WithDescription("List the rendering backends the gateway aggregates"),
		), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			type BackendInfo struct {
				Name        string `json:"name"`
				BaseAddress string `json:"baseAddress"`
			}
			return jsonResult(lo.Map(gw.Backends(), func(b backend.Backend, _ int) BackendInfo {
				return BackendInfo{Name: b.Name, BaseAddress: b.BaseURL.String()}
			}))
		}
}

func ListTargets(gw Gateway) (tool mcp.Tool, handler server.ToolHandlerFunc) {
	return mcp.NewTool(
			"list_render_targets",
			mcp.WithDescription("List the paths every backend can render, tagged with the backend that reported them"),
		), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			targets, err := gw.ListTargets(ctx)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return jsonResult(targets)
		}
}

func Render(gw Gateway) (tool mcp.Tool, handler server.ToolHandlerFunc) {
	return mcp.NewTool(
			"render",
			mcp.WithDescription("Render paths on every backend (or one) and return the results that succeeded"),
			mcp.WithArray("paths", mcp.Required(), mcp.Description("Paths to render"), mcp.Items(map[string]interface{}{"type": "string"})),
			mcp.WithString("backend", mcp.Description("Render on this backend only")),
			mcp.WithObject("params", mcp.Description("Template parameters forwarded to the backends")),
			mcp.WithString("device", mcp.Description("Device hint")),
			mcp.WithString("locale", mcp.Description("Locale hint, e.g. en-US")),
			mcp.WithString("user_agent", mcp.Description("User agent hint")),
			mcp.WithBoolean("preview", mcp.Description("Ask the backends for preview content")),
			mcp.WithBoolean("markdown", mcp.Description("Convert HTML results to Markdown")),
		), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			type ToolArguments struct {
				Paths    []string               `mapstructure:"paths" validate:"required,min=1,dive,required"`
				Backend  string                 `mapstructure:"backend"`
				Params   map[string]interface{} `mapstructure:"params"`
				Device   string                 `mapstructure:"device"`
				Locale   string                 `mapstructure:"locale"`
				Agent    string                 `mapstructure:"user_agent"`
				Preview  *bool                  `mapstructure:"preview"`
				Markdown bool                   `mapstructure:"markdown"`
			}
			var args ToolArguments
			if err := decodeArgs(ctx, req.Params.Arguments, &args); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}

			renderReq := model.RenderRequest{Paths: args.Paths, Backend: args.Backend}
			if args.Params != nil {
				params, err := jsonvalue.FromAny(args.Params)
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				renderReq.Params = params.Object
			}
			rc := model.RenderContext{
				Device:    args.Device,
				Locale:    args.Locale,
				UserAgent: args.Agent,
				Preview:   args.Preview,
			}
			if !rc.IsZero() {
				renderReq.Context = &rc
			}

			results, err := gw.Render(ctx, renderReq)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}

			if args.Markdown {
				for i, res := range results {
					if !markup.IsHTML(res.ContentType) {
						continue
					}
					md, err := markup.Markdown(res.Content, res.ContentType)
					if err != nil {
						return mcp.NewToolResultError(err.Error()), nil
					}
					results[i].Content = md
					results[i].ContentType = "text/markdown"
				}
			}
			return jsonResult(results)
		}
}

func RenderSitemap(gw Gateway) (tool mcp.Tool, handler server.ToolHandlerFunc) {
	return mcp.NewTool(
			"render_sitemap",
			mcp.WithDescription("Synthesize a sitemap from every backend's sitemap entries"),
			mcp.WithString("backend", mcp.Description("Only entries from this backend")),
			mcp.WithString("since", mcp.Description("Only entries modified at or after this RFC 3339 time")),
			mcp.WithBoolean("include_variants", mcp.Description("Keep every backend's entry for a shared path")),
		), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			type ToolArguments struct {
				Backend         string `mapstructure:"backend"`
				Since           string `mapstructure:"since"`
				IncludeVariants bool   `mapstructure:"include_variants"`
			}
			var args ToolArguments
			if err := decodeArgs(ctx, req.Params.Arguments, &args); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}

			filter := model.SitemapFilter{Backend: args.Backend, IncludeVariants: args.IncludeVariants}
			if args.Since != "" {
				since, err := normalize.ParseTimestamp(jsonvalue.String(args.Since))
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				filter.Since = &since
			}

			doc, err := gw.RenderSitemap(ctx, filter)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}

			type SitemapInfo struct {
				model.SitemapDocument
				Count int `json:"count"`
			}
			return jsonResult(SitemapInfo{SitemapDocument: doc, Count: doc.Count()})
		}
}

func RenderIndex(gw Gateway) (tool mcp.Tool, handler server.ToolHandlerFunc) {
	return mcp.NewTool(
			"render_index",
			mcp.WithDescription("List the content index of every backend"),
			mcp.WithString("namespace", mcp.Description("Only entries in this namespace")),
		), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			type ToolArguments struct {
				Namespace string `mapstructure:"namespace"`
			}
			var args ToolArguments
			if err := decodeArgs(ctx, req.Params.Arguments, &args); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}

			entries, err := gw.RenderIndex(ctx, args.Namespace)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return jsonResult(entries)
		}
}
