package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/lab-compliance/internal/async"
	"github.com/joseph-ayodele/lab-compliance/internal/common"
	"github.com/joseph-ayodele/lab-compliance/internal/entity"
	"github.com/joseph-ayodele/lab-compliance/internal/export"
)

// JobService exposes the orchestrator over gRPC.
type JobService struct {
	orch   *async.Orchestrator
	export *export.Service
	logger *slog.Logger
}

func NewJobService(orch *async.Orchestrator, exp *export.Service, logger *slog.Logger) *JobService {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobService{orch: orch, export: exp, logger: logger}
}

var _ JobServiceServer = (*JobService)(nil)

const (
	maxFileRefLen    = 4096
	maxCategoryIDLen = 128
)

func (s *JobService) Submit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	path := strings.TrimSpace(stringField(fields, "file_ref"))
	rawID := strings.TrimSpace(stringField(fields, "existing_job_id"))
	categoryID := strings.TrimSpace(stringField(fields, "custom_category_id"))

	v := common.NewValidator().
		Field("file_ref", path, common.Required, common.MaxLength(maxFileRefLen)).
		Field("existing_job_id", rawID, common.UUID).
		Field("custom_category_id", categoryID, common.MaxLength(maxCategoryIDLen))
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}

	opts := async.SubmitOptions{
		ForceRecovery:    boolField(fields, "force_recovery"),
		CustomCategoryID: categoryID,
	}
	if rawID != "" {
		id := uuid.MustParse(rawID)
		opts.ExistingJobID = &id
	}

	id, err := s.orch.Submit(ctx, path, opts)
	if err != nil {
		common.LoggerFromContext(ctx, s.logger).Error("submit failed", "file_ref", path, "error", err)
		return nil, common.ToStatus(err)
	}
	return structpb.NewStruct(map[string]any{"job_id": id.String()})
}

func (s *JobService) Poll(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := jobID(req)
	if err != nil {
		return nil, err
	}
	view, err := s.orch.Poll(ctx, id)
	if err != nil {
		return nil, common.ToStatus(err)
	}

	out := map[string]any{
		"job_id":           view.ID.String(),
		"file_name":        view.FileName,
		"state":            string(view.State),
		"progress_percent": view.ProgressPercent,
		"stage":            view.Stage,
		"attempts":         view.Attempts,
		"error_message":    view.ErrorMessage,
		"created_at":       view.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":       view.UpdatedAt.Format(time.RFC3339Nano),
	}
	if view.Result != nil {
		rec, err := recordToMap(view.Result)
		if err != nil {
			s.logger.Error("encode result record failed", "job_id", id, "error", err)
			return nil, common.InternalError("encode result record")
		}
		out["result"] = rec
	}
	return structpb.NewStruct(out)
}

func (s *JobService) Reprocess(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := jobID(req)
	if err != nil {
		return nil, err
	}
	if err := s.orch.Reprocess(ctx, id, boolField(req.GetFields(), "force_recovery")); err != nil {
		common.LoggerFromContext(ctx, s.logger).Warn("reprocess rejected", "job_id", id, "error", err)
		return nil, common.ToStatus(err)
	}
	return structpb.NewStruct(map[string]any{"job_id": id.String()})
}

func (s *JobService) Export(ctx context.Context, req *structpb.Struct) (*wrapperspb.BytesValue, error) {
	id, err := jobID(req)
	if err != nil {
		return nil, err
	}
	xlsx, err := s.export.ExportJobXLSX(ctx, id)
	if err != nil {
		common.LoggerFromContext(ctx, s.logger).Error("export.xlsx.failed", "job_id", id, "err", err)
		return nil, common.ToStatus(err)
	}
	return wrapperspb.Bytes(xlsx), nil
}

func jobID(req *structpb.Struct) (uuid.UUID, error) {
	raw := strings.TrimSpace(stringField(req.GetFields(), "job_id"))
	if raw == "" {
		return uuid.Nil, common.InvalidArgumentError("job_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, common.InvalidArgumentErrorf("job_id must be a UUID: %q", raw)
	}
	return id, nil
}

func stringField(fields map[string]*structpb.Value, key string) string {
	return fields[key].GetStringValue()
}

func boolField(fields map[string]*structpb.Value, key string) bool {
	return fields[key].GetBoolValue()
}

// recordToMap goes through JSON so the wire shape matches the persisted document.
func recordToMap(rec *entity.ResultRecord) (map[string]any, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
