package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/morikuni/failure/v2"
	"github.com/rendini/mashup/api"
	"github.com/rendini/mashup/log"
)

// maxQuerySize caps a GraphQL request body
const maxQuerySize = 1 << 20

type graphqlRequest struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	OperationName string                 `json:"operationName"`
}

type graphqlResponse struct {
	Data   interface{}               `json:"data,omitempty"`
	Errors []gqlerrors.FormattedError `json:"errors,omitempty"`
}

func graphqlHandler(schema graphql.Schema) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := parseGraphQLRequest(c.Request)
		if err != nil {
			c.JSON(http.StatusBadRequest, graphqlResponse{
				Errors: []gqlerrors.FormattedError{{Message: err.Error()}},
			})
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			c.JSON(http.StatusBadRequest, graphqlResponse{
				Errors: []gqlerrors.FormattedError{{Message: "Must provide query string."}},
			})
			return
		}

		ctx := c.Request.Context()
		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        ctx,
		})

		if len(result.Errors) > 0 {
			log.FromContext(ctx).Debug("GraphQL request finished with errors", "errors", len(result.Errors))
		}
		c.JSON(http.StatusOK, graphqlResponse{
			Data:   result.Data,
			Errors: sanitizeErrors(c, result.Errors),
		})
	}
}

func parseGraphQLRequest(r *http.Request) (graphqlRequest, error) {
	var req graphqlRequest

	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req.Query = q.Get("query")
		req.OperationName = q.Get("operationName")
		if vars := q.Get("variables"); vars != "" {
			if err := json.Unmarshal([]byte(vars), &req.Variables); err != nil {
				return req, failure.Translate(err, api.ErrInvalidRequest, failure.Message("variables must be a JSON object"))
			}
		}
		return req, nil
	}

	body := io.LimitReader(r.Body, maxQuerySize)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/graphql") {
		b, err := io.ReadAll(body)
		if err != nil {
			return req, failure.Wrap(err)
		}
		req.Query = string(b)
		return req, nil
	}

	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return req, failure.Translate(err, api.ErrInvalidRequest, failure.Message("body must be a JSON GraphQL request"))
	}
	return req, nil
}

// sanitizeErrors keeps messages of query errors and of errors the facade
// raises on purpose; anything else is logged and replaced.
func sanitizeErrors(c *gin.Context, errs []gqlerrors.FormattedError) []gqlerrors.FormattedError {
	if len(errs) == 0 {
		return nil
	}

	out := make([]gqlerrors.FormattedError, 0, len(errs))
	for _, e := range errs {
		orig := e.OriginalError()
		if orig != nil {
			if userFacing(orig) {
				if msg := failure.MessageOf(orig); msg != "" {
					e.Message = msg.String()
				}
			} else {
				log.FromContext(c.Request.Context()).Error("GraphQL resolver failed", "error", orig, "path", e.Path)
				e.Message = "internal server error"
			}
		}
		out = append(out, e)
	}
	return out
}

func userFacing(err error) bool {
	return failure.Is(err, api.ErrInvalidRequest, api.ErrCanceled)
}
