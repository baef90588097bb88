package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls labcheck.v1.JobService over an existing connection.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// SubmitRequest mirrors the Submit message fields.
type SubmitRequest struct {
	FileRef          string
	ForceRecovery    bool
	ExistingJobID    string
	CustomCategoryID string
}

func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	in := map[string]any{
		"file_ref":       req.FileRef,
		"force_recovery": req.ForceRecovery,
	}
	if req.ExistingJobID != "" {
		in["existing_job_id"] = req.ExistingJobID
	}
	if req.CustomCategoryID != "" {
		in["custom_category_id"] = req.CustomCategoryID
	}
	out, err := c.call(ctx, methodSubmit, in)
	if err != nil {
		return "", err
	}
	return stringField(out.GetFields(), "job_id"), nil
}

// Poll returns the job snapshot as a plain map, result record included once terminal.
func (c *Client) Poll(ctx context.Context, jobID string) (map[string]any, error) {
	out, err := c.call(ctx, methodPoll, map[string]any{"job_id": jobID})
	if err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

func (c *Client) Reprocess(ctx context.Context, jobID string, force bool) error {
	_, err := c.call(ctx, methodReprocess, map[string]any{"job_id": jobID, "force_recovery": force})
	return err
}

// Export returns the XLSX workbook bytes for a finished job.
func (c *Client) Export(ctx context.Context, jobID string) ([]byte, error) {
	in, err := structpb.NewStruct(map[string]any{"job_id": jobID})
	if err != nil {
		return nil, err
	}
	out := new(wrapperspb.BytesValue)
	if err := c.conn.Invoke(ctx, fullMethod(methodExport), in, out); err != nil {
		return nil, err
	}
	return out.GetValue(), nil
}

// WithRequestID attaches a request ID the server will log and propagate.
func WithRequestID(ctx context.Context, id string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, RequestIDHeader, id)
}

func (c *Client) call(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fullMethod(method), in, out); err != nil {
		return nil, err
	}
	return out, nil
}
