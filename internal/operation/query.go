package operation

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/roach88/docstore/internal/model"
	"github.com/roach88/docstore/internal/querysql"
	"github.com/roach88/docstore/internal/result"
)

// Query retrieves documents of the request's resource type, filtered by the
// request's search terms, with offset/limit pagination. The total count is a
// separate query and only runs when explicitly asked for.
func (e *Engine) Query(ctx context.Context, tx *sql.Tx, req model.QueryRequest) result.QueryResult {
	log := e.opLog("query", req.TraceID).With(
		zap.String("resource_name", req.ResourceInfo.ResourceName),
	)

	if req.Pagination.Limit <= 0 {
		return result.QueryInvalid{Message: "limit must be positive"}
	}
	if req.Pagination.Offset < 0 {
		return result.QueryInvalid{Message: "offset must not be negative"}
	}

	conditions, args, err := querysql.Compile(e.action.Dialect(), req.Terms)
	if err != nil {
		// The query shape is the caller's fault; retrying cannot help.
		log.Debug("query rejected", zap.Error(err))
		return result.QueryInvalid{Message: err.Error()}
	}

	documents, err := e.action.QueryDocuments(ctx, tx,
		req.ResourceInfo.ResourceName, conditions, args,
		req.Pagination.Offset, req.Pagination.Limit)
	if err != nil {
		log.Error("query failed", zap.Error(err))
		return result.UnknownFailure{Message: err.Error()}
	}

	res := result.QuerySuccess{Documents: documents}
	if req.Pagination.IncludeTotal {
		total, err := e.action.CountDocuments(ctx, tx,
			req.ResourceInfo.ResourceName, conditions, args)
		if err != nil {
			log.Error("count failed", zap.Error(err))
			return result.UnknownFailure{Message: err.Error()}
		}
		t := int(total)
		res.Total = &t
	}

	log.Debug("query returned documents", zap.Int("count", len(res.Documents)))
	return res
}
