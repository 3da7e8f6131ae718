package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"adline/internal/app"
	"adline/internal/catalog"
	"adline/internal/domain"
	"adline/internal/editor"
)

// Config for the HTTP API handler.
type Config struct {
	App      *app.App
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_transition"`
	Message string         `json:"message" example:"invalid transition: submit in idle"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"state\":\"idle\"}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

type forbiddenError struct {
	Account string
}

func (e forbiddenError) Error() string {
	return fmt.Sprintf("account %s does not own this catalog", e.Account)
}

// New returns an HTTP handler exposing the adline API.
func New(cfg Config) (http.Handler, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	a := cfg.App
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Auth.logger()
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if websocketRequest(r) {
				next.ServeHTTP(w, r)
				return
			}
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, a.Keys))
	hcfg := huma.DefaultConfig("adline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerAds(group, a)
	registerCatalog(group, a)
	registerReview(group, a)
	registerEvents(group, a)
	registerRotation(group, a)
	registerMe(group, a)
	registerDevAuth(group, cfg.Auth)
	registerOpenAPI(router, api, basePath)
	router.Get(path.Join(basePath, "review/stream"), reviewStream(a, logger))
	router.Handle("/metrics", a.Metrics.Handler())
	logger.Debug("api mounted", zap.String("base_path", basePath), zap.String("account", a.Config.Account.Address))

	return router, nil
}

func websocketRequest(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var fe forbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"account": fe.Account})
	}
	msg := err.Error()
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", msg, nil)
	case errors.Is(err, domain.ErrInFlight):
		return newAPIError(http.StatusConflict, "review_in_flight", msg, nil)
	case errors.Is(err, domain.ErrVotingAssigned):
		return newAPIError(http.StatusConflict, "voting_assigned", msg, nil)
	case errors.Is(err, domain.ErrInvalidTransition):
		return newAPIError(http.StatusConflict, "invalid_transition", msg, nil)
	case errors.Is(err, domain.ErrEstimation):
		return newAPIError(http.StatusUnprocessableEntity, "estimation_failed", msg, nil)
	case errors.Is(err, domain.ErrTransport):
		return newAPIError(http.StatusBadGateway, "node_unavailable", msg, nil)
	case errors.Is(err, domain.ErrPersistence):
		return newAPIError(http.StatusInternalServerError, "persistence_error", msg, nil)
	}
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// requireOwner admits callers acting as the configured account.
func requireOwner(ctx context.Context, a *app.App) error {
	principal, authErr := principalFromRequest(ctx)
	if authErr != nil {
		return authErr
	}
	if !strings.EqualFold(principal.Account, a.Config.Account.Address) {
		return forbiddenError{Account: principal.Account}
	}
	return nil
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		doc  []byte
	)
	r.Get(path.Join(basePath, "openapi.json"), func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			doc, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range operations(item) {
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	public := map[string]bool{
		path.Join("/", basePath, "health"):         true,
		path.Join("/", basePath, "auth/dev/login"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range operations(item) {
			if public[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func operations(item *huma.PathItem) []*huma.Operation {
	var ops []*huma.Operation
	for _, op := range []*huma.Operation{
		item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
	} {
		if op != nil {
			ops = append(ops, op)
		}
	}
	return ops
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>adline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

type adPath struct {
	ID string `path:"id"`
}

type adBody struct {
	Body domain.Ad `json:"body"`
}

func registerAds(api huma.API, a *app.App) {
	huma.Register(api, huma.Operation{
		OperationID: "list-ads",
		Method:      http.MethodGet,
		Path:        "/ads",
		Summary:     "List stored ads",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" example:"Draft"`
	}) (*struct {
		Body []domain.Ad `json:"body"`
	}, error) {
		var filter string
		if input.Status != "" {
			st, err := domain.ParseStatus(input.Status)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"status": input.Status})
			}
			filter = string(st)
		}
		ads, err := a.Store.ListAll(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]domain.Ad, 0, len(ads))
		for _, ad := range ads {
			if filter == "" || catalog.Matches(ad.Status, filter) {
				out = append(out, ad)
			}
		}
		return &struct {
			Body []domain.Ad `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-ad",
		Method:      http.MethodGet,
		Path:        "/ads/{id}",
		Summary:     "Get ad",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *adPath) (*adBody, error) {
		ad, err := a.Store.GetByID(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &adBody{Body: ad}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-ad",
		Method:        http.MethodPost,
		Path:          "/ads",
		Summary:       "Create a draft ad",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body CreateAdRequest `json:"body"`
	}) (*adBody, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requireOwner(ctx, a); err != nil {
			return nil, handleError(err)
		}
		ad, err := runEdit(ctx, a.NewEdit(""), input.Body.patch())
		if err != nil {
			return nil, err
		}
		return &adBody{Body: ad}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-ad",
		Method:      http.MethodPatch,
		Path:        "/ads/{id}",
		Summary:     "Edit ad fields",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID   string          `path:"id"`
		Body UpdateAdRequest `json:"body"`
	}) (*adBody, error) {
		if err := requireOwner(ctx, a); err != nil {
			return nil, handleError(err)
		}
		if a.Review.Busy(input.ID) {
			return nil, handleError(fmt.Errorf("%w: ad %s", domain.ErrInFlight, input.ID))
		}
		ad, err := runEdit(ctx, a.NewEdit(input.ID), input.Body.patch())
		if err != nil {
			return nil, err
		}
		return &adBody{Body: ad}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-ad",
		Method:        http.MethodDelete,
		Path:          "/ads/{id}",
		Summary:       "Remove ad from the store and the catalog",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *adPath) (*struct{}, error) {
		if err := requireOwner(ctx, a); err != nil {
			return nil, handleError(err)
		}
		if err := a.Catalog.Remove(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

// runEdit drives an edit session through one update and a submit.
func runEdit(ctx context.Context, e *editor.EditWorkflow, patch domain.AdPatch) (domain.Ad, huma.StatusError) {
	if err := e.Start(ctx); err != nil {
		return domain.Ad{}, handleError(err)
	}
	ad, err := e.Update(patch)
	if err != nil {
		return domain.Ad{}, handleError(err)
	}
	if problems := editor.Problems(ad); len(problems) > 0 {
		return domain.Ad{}, newAPIError(http.StatusUnprocessableEntity, "validation_failed", "ad is not valid", map[string]any{"problems": problems})
	}
	if err := e.Submit(ctx); err != nil {
		return domain.Ad{}, handleError(err)
	}
	return e.Ad(), nil
}

type viewBody struct {
	Body catalog.View `json:"body"`
}

func registerCatalog(api huma.API, a *app.App) {
	huma.Register(api, huma.Operation{
		OperationID: "get-catalog",
		Method:      http.MethodGet,
		Path:        "/catalog",
		Summary:     "Catalog view",
	}, func(ctx context.Context, _ *struct{}) (*viewBody, error) {
		return &viewBody{Body: a.Catalog.View()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "load-catalog",
		Method:      http.MethodPost,
		Path:        "/catalog/load",
		Summary:     "Reload ads, statuses and total spent",
		Errors:      []int{http.StatusForbidden, http.StatusConflict, http.StatusBadGateway},
	}, func(ctx context.Context, _ *struct{}) (*viewBody, error) {
		if err := requireOwner(ctx, a); err != nil {
			return nil, handleError(err)
		}
		if err := a.Catalog.Load(ctx); err != nil {
			return nil, handleError(err)
		}
		return &viewBody{Body: a.Catalog.View()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "filter-catalog",
		Method:      http.MethodPost,
		Path:        "/catalog/filter",
		Summary:     "Change the visible status filter",
		Errors:      []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body FilterRequest `json:"body"`
	}) (*viewBody, error) {
		if strings.TrimSpace(input.Body.Status) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "status is required", nil)
		}
		v, err := a.Catalog.Filter(input.Body.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &viewBody{Body: v}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-catalog-item",
		Method:      http.MethodPatch,
		Path:        "/catalog/items/{id}",
		Summary:     "Change fields of a catalog item without saving",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string          `path:"id"`
		Body UpdateAdRequest `json:"body"`
	}) (*adBody, error) {
		if err := requireOwner(ctx, a); err != nil {
			return nil, handleError(err)
		}
		ad, err := a.Catalog.ChangeItem(input.ID, input.Body.patch())
		if err != nil {
			return nil, handleError(err)
		}
		return &adBody{Body: ad}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "publish-catalog-item",
		Method:      http.MethodPost,
		Path:        "/catalog/items/{id}/publish",
		Summary:     "Mark an ad as being published",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *adPath) (*adBody, error) {
		if err := requireOwner(ctx, a); err != nil {
			return nil, handleError(err)
		}
		ad, err := a.Catalog.SelectForPublish(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &adBody{Body: ad}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-catalog",
		Method:      http.MethodPost,
		Path:        "/catalog/cancel",
		Summary:     "Leave publishing or cancel the review session",
		Errors:      []int{http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, _ *struct{}) (*viewBody, error) {
		if err := requireOwner(ctx, a); err != nil {
			return nil, handleError(err)
		}
		if err := a.Catalog.Cancel(); err != nil {
			return nil, handleError(err)
		}
		return &viewBody{Body: a.Catalog.View()}, nil
	})
}

type reviewBody struct {
	Body ReviewResponse `json:"body"`
}

func registerReview(api huma.API, a *app.App) {
	huma.Register(api, huma.Operation{
		OperationID: "get-review",
		Method:      http.MethodGet,
		Path:        "/review",
		Summary:     "Current review session",
	}, func(ctx context.Context, _ *struct{}) (*reviewBody, error) {
		return &reviewBody{Body: reviewResponse(a.Review.Snapshot())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "select-review",
		Method:      http.MethodPost,
		Path:        "/review/select",
		Summary:     "Open a review session for an ad",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body SelectReviewRequest `json:"body"`
	}) (*reviewBody, error) {
		if strings.TrimSpace(input.Body.AdID) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "ad_id is required", nil)
		}
		if err := requireOwner(ctx, a); err != nil {
			return nil, handleError(err)
		}
		if _, err := a.Catalog.SelectForReview(input.Body.AdID); err != nil {
			return nil, handleError(err)
		}
		return &reviewBody{Body: reviewResponse(a.Review.Snapshot())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-review",
		Method:      http.MethodPost,
		Path:        "/review/submit",
		Summary:     "Publish content and deploy the voting contract",
		Description: "Returns once the submission has started; follow progress on /review or /review/stream.",
		Errors:      []int{http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, _ *struct{}) (*reviewBody, error) {
		if err := requireOwner(ctx, a); err != nil {
			return nil, handleError(err)
		}
		if err := a.Review.Submit(); err != nil {
			return nil, handleError(err)
		}
		return &reviewBody{Body: reviewResponse(a.Review.Snapshot())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-review",
		Method:      http.MethodPost,
		Path:        "/review/cancel",
		Summary:     "Cancel the review session",
		Errors:      []int{http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, _ *struct{}) (*reviewBody, error) {
		if err := requireOwner(ctx, a); err != nil {
			return nil, handleError(err)
		}
		if err := a.Catalog.Cancel(); err != nil {
			return nil, handleError(err)
		}
		return &reviewBody{Body: reviewResponse(a.Review.Snapshot())}, nil
	})
}

func registerEvents(api huma.API, a *app.App) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent journal events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"ad"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := a.Store.LatestEvents(ctx, limit+1, cursorID, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func registerRotation(api huma.API, a *app.App) {
	huma.Register(api, huma.Operation{
		OperationID: "rotation",
		Method:      http.MethodGet,
		Path:        "/rotation",
		Summary:     "Approved ads targeted at the caller",
		Errors:      []int{http.StatusUnauthorized, http.StatusBadGateway},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body RotationResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		slots, err := a.Rotation.Select(ctx, principal.Identity())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RotationResponse `json:"body"`
		}{Body: RotationResponse{Items: nonNilSlice(slots)}}, nil
	})
}

func registerMe(api huma.API, a *app.App) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: WhoAmIResponse{
			Account:  principal.Account,
			Source:   principal.Source,
			Owner:    strings.EqualFold(principal.Account, a.Config.Account.Address),
			Age:      principal.Age,
			Stake:    principal.Stake,
			Language: principal.Language,
			OS:       principal.OS,
		}}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		input.Body.Account = strings.TrimSpace(input.Body.Account)
		if input.Body.Account == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "account is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, input.Body, authCfg.TokenTTL)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
