package api

import (
	"context"
	"net/http"

	"github.com/AvengeMedia/dankquery/internal/engine"
	"github.com/AvengeMedia/dankquery/internal/errdefs"
	"github.com/AvengeMedia/dankquery/internal/fieldmap"
	"github.com/AvengeMedia/dankquery/internal/log"
	"github.com/danielgtaylor/huma/v2"
)

type EngineInterface interface {
	Types() []string
	Mapping(typeName string) (*engine.TypeInfo, error)
	Index(typeName string, records []fieldmap.Record) (int, error)
	Delete(typeName, id string) error
	Search(ctx context.Context, req engine.Request) (*engine.Response, error)
	Reload() error
	DocCount() (uint64, error)
}

type WatcherInterface interface {
	Start() error
	Stop() error
	IsRunning() bool
}

type Server struct {
	Engine  EngineInterface
	Watcher WatcherInterface
}

type SearchInput struct {
	Type        string   `query:"type" required:"true" doc:"Record type to search" example:"book"`
	Query       string   `query:"q" doc:"Query string, empty matches all records" example:"summary:practical"`
	Where       []string `query:"where,explode" doc:"Equality restrictions as prop=value"`
	Ranges      []string `query:"range,explode" doc:"Range restrictions as prop:lower..upper, either side may be empty"`
	Order       []string `query:"order,explode" doc:"Sort properties, prefix with - for descending"`
	Fields      []string `query:"fields" doc:"Stored fields to load, empty loads all"`
	Limit       int      `query:"limit" minimum:"0" doc:"Maximum results, 0 uses the configured default"`
	Offset      int      `query:"offset" minimum:"0" doc:"Results to skip"`
	TermVectors bool     `query:"vectors" doc:"Include term locations of fields mapped with term vectors"`
	After       []string `query:"after,explode" doc:"Sort values of the last hit of the previous page"`
}

type SearchOutput struct {
	Body *engine.Response
}

type TypesOutput struct {
	Body struct {
		Types     []string `json:"types"`
		Documents uint64   `json:"documents"`
	}
}

type TypeInput struct {
	Name string `path:"name" doc:"Record type" example:"book"`
}

type MappingOutput struct {
	Body *engine.TypeInfo
}

type IndexInput struct {
	Name string `path:"name" doc:"Record type" example:"book"`
	Body struct {
		Records []fieldmap.Record `json:"records" doc:"Records keyed by property name"`
	}
}

type IndexOutput struct {
	Body struct {
		Indexed int `json:"indexed"`
	}
}

type DeleteInput struct {
	Name string `path:"name" doc:"Record type" example:"book"`
	ID   string `path:"id" doc:"Document ID or escaped key values" example:"111"`
}

type StatusOutput struct {
	Body struct {
		Status string `json:"status" example:"running"`
	}
}

func statusOutput(status string) *StatusOutput {
	out := &StatusOutput{}
	out.Body.Status = status
	return out
}

// toHTTPError maps engine error types to response codes.
func toHTTPError(msg string, err error) error {
	switch {
	case errdefs.Is(err, errdefs.ErrTypeArgument),
		errdefs.Is(err, errdefs.ErrTypeUnsupportedOperation),
		errdefs.Is(err, errdefs.ErrTypeUnsupportedKind):
		return huma.Error400BadRequest(msg, err)
	case errdefs.Is(err, errdefs.ErrTypeReadOnly):
		return huma.Error403Forbidden(msg, err)
	case errdefs.Is(err, errdefs.ErrTypeMappingDrift):
		return huma.Error409Conflict(msg, err)
	case errdefs.Is(err, errdefs.ErrTypeConfiguration),
		errdefs.Is(err, errdefs.ErrTypeInvalidConfig):
		return huma.Error422UnprocessableEntity(msg, err)
	}
	return huma.Error500InternalServerError(msg, err)
}

func RegisterHandlers(srv *Server, api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "search",
		Summary:     "Search records",
		Description: "Query one record type with restrictions, ordering and paging",
		Method:      http.MethodGet,
		Path:        "/search",
		Tags:        []string{"Search"},
	}, func(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
		res, err := srv.Engine.Search(ctx, engine.Request{
			Type:        input.Type,
			Query:       input.Query,
			Where:       input.Where,
			Ranges:      input.Ranges,
			Order:       input.Order,
			Fields:      input.Fields,
			Limit:       input.Limit,
			Offset:      input.Offset,
			TermVectors: input.TermVectors,
			SearchAfter: input.After,
		})
		if err != nil {
			return nil, toHTTPError("search failed", err)
		}
		return &SearchOutput{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "listTypes",
		Summary:     "List record types",
		Method:      http.MethodGet,
		Path:        "/types",
		Tags:        []string{"Mapping"},
	}, func(ctx context.Context, input *struct{}) (*TypesOutput, error) {
		count, err := srv.Engine.DocCount()
		if err != nil {
			return nil, toHTTPError("failed to count documents", err)
		}
		out := &TypesOutput{}
		out.Body.Types = srv.Engine.Types()
		out.Body.Documents = count
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "getMapping",
		Summary:     "Get type mapping",
		Description: "Returns the resolved storage, index and analysis settings of every property",
		Method:      http.MethodGet,
		Path:        "/types/{name}/mapping",
		Tags:        []string{"Mapping"},
	}, func(ctx context.Context, input *TypeInput) (*MappingOutput, error) {
		info, err := srv.Engine.Mapping(input.Name)
		if err != nil {
			if errdefs.Is(err, errdefs.ErrTypeArgument) {
				return nil, huma.Error404NotFound("unknown type", err)
			}
			return nil, toHTTPError("mapping failed", err)
		}
		return &MappingOutput{Body: info}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "indexRecords",
		Summary:     "Index records",
		Description: "Adds or replaces records of one type in a single batch",
		Method:      http.MethodPost,
		Path:        "/types/{name}/documents",
		Tags:        []string{"Index"},
	}, func(ctx context.Context, input *IndexInput) (*IndexOutput, error) {
		n, err := srv.Engine.Index(input.Name, input.Body.Records)
		if err != nil {
			return nil, toHTTPError("indexing failed", err)
		}
		out := &IndexOutput{}
		out.Body.Indexed = n
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "deleteRecord",
		Summary:       "Delete a record",
		Method:        http.MethodDelete,
		Path:          "/types/{name}/documents/{id}",
		Tags:          []string{"Index"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *DeleteInput) (*struct{}, error) {
		if err := srv.Engine.Delete(input.Name, input.ID); err != nil {
			return nil, toHTTPError("delete failed", err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reloadSchema",
		Summary:     "Reload schema",
		Description: "Re-reads the schema file, re-indexing stored records when mappings changed",
		Method:      http.MethodPost,
		Path:        "/schema/reload",
		Tags:        []string{"Mapping"},
	}, func(ctx context.Context, input *struct{}) (*StatusOutput, error) {
		if err := srv.Engine.Reload(); err != nil {
			log.Errorf("schema reload failed: %v", err)
			return nil, toHTTPError("reload failed", err)
		}
		return statusOutput("schema reloaded"), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "watchStart",
		Summary:     "Start schema watcher",
		Method:      http.MethodPost,
		Path:        "/watch/start",
		Tags:        []string{"Watch"},
	}, func(ctx context.Context, input *struct{}) (*StatusOutput, error) {
		if srv.Watcher.IsRunning() {
			return nil, huma.Error409Conflict("watcher already running")
		}
		if err := srv.Watcher.Start(); err != nil {
			return nil, huma.Error500InternalServerError("failed to start watcher", err)
		}
		return statusOutput("watcher started"), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "watchStop",
		Summary:     "Stop schema watcher",
		Method:      http.MethodPost,
		Path:        "/watch/stop",
		Tags:        []string{"Watch"},
	}, func(ctx context.Context, input *struct{}) (*StatusOutput, error) {
		if !srv.Watcher.IsRunning() {
			return nil, huma.Error409Conflict("watcher not running")
		}
		if err := srv.Watcher.Stop(); err != nil {
			return nil, huma.Error500InternalServerError("failed to stop watcher", err)
		}
		return statusOutput("watcher stopped"), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "watchStatus",
		Summary:     "Get watcher status",
		Method:      http.MethodGet,
		Path:        "/watch/status",
		Tags:        []string{"Watch"},
	}, func(ctx context.Context, input *struct{}) (*StatusOutput, error) {
		if srv.Watcher.IsRunning() {
			return statusOutput("running"), nil
		}
		return statusOutput("stopped"), nil
	})
}
