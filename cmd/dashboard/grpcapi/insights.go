// Package grpcapi exposes the insight pipeline over gRPC.
//
// The service is gridinsight.v1.Insights with a single unary method,
// GetInsight. Requests and responses are google.protobuf.Struct values so
// that clients need no generated code:
//
//	request:  {"metric": "carbon-intensity", "zone": "PT", "quantity": 100}
//	response: the same JSON document GET /api/insights/{metric} returns
//
// zone and quantity are optional and default to the dashboard settings.
package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ecoaily/gridinsight/pkg/grid"
	"github.com/ecoaily/gridinsight/pkg/insight"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "gridinsight.v1.Insights"
	// GetInsightMethod is the full method name used by clients.
	GetInsightMethod = "/" + ServiceName + "/GetInsight"
)

// InsightsServer is the server API for the Insights service.
type InsightsServer interface {
	GetInsight(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the Insights service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InsightsServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetInsight",
			Handler:    getInsightHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gridinsight/v1/insights.proto",
}

// Register adds srv to s.
func Register(s grpc.ServiceRegistrar, srv InsightsServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func getInsightHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InsightsServer).GetInsight(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetInsightMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InsightsServer).GetInsight(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// GetInsight calls the Insights service over cc.
func GetInsight(ctx context.Context, cc grpc.ClientConnInterface, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, GetInsightMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ErrorRecorder counts failed calls. *metrics.Metrics satisfies it.
type ErrorRecorder interface {
	RecordError(component, reason string)
}

// Server implements InsightsServer on top of an insight.Engine.
type Server struct {
	engine          *insight.Engine
	defaultZone     string
	defaultQuantity float64
	errors          ErrorRecorder
	logger          *slog.Logger
}

// NewServer creates a Server. errs may be nil. defaultQuantity applies to
// requests without a quantity, zero included.
func NewServer(engine *insight.Engine, defaultZone string, defaultQuantity float64, errs ErrorRecorder, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:          engine,
		defaultZone:     defaultZone,
		defaultQuantity: defaultQuantity,
		errors:          errs,
		logger:          logger,
	}
}

// GetInsight runs the pipeline for the metric named in req.
func (s *Server) GetInsight(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	metric, zone, quantity, err := s.parseRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	s.logger.Debug("GetInsight called", "metric", metric, "zone", zone, "quantity", quantity)

	in, err := s.engine.Insight(ctx, metric, zone, quantity)
	if err != nil {
		code := Code(err)
		if code != codes.InvalidArgument && code != codes.NotFound {
			s.logger.Warn("GetInsight failed", "metric", metric, "zone", zone, "error", err)
			if s.errors != nil {
				s.errors.RecordError("grpc", code.String())
			}
		}
		return nil, status.Error(code, err.Error())
	}

	out, err := toStruct(in)
	if err != nil {
		s.logger.Error("failed to encode insight", "error", err)
		return nil, status.Error(codes.Internal, "failed to encode insight")
	}
	return out, nil
}

func (s *Server) parseRequest(req *structpb.Struct) (metric, zone string, quantity float64, err error) {
	zone = s.defaultZone
	quantity = s.defaultQuantity

	fields := req.GetFields()
	v, ok := fields["metric"]
	if !ok {
		return "", "", 0, errors.New("metric is required")
	}
	if _, isStr := v.GetKind().(*structpb.Value_StringValue); !isStr {
		return "", "", 0, errors.New("metric must be a string")
	}
	metric = v.GetStringValue()

	if v, ok := fields["zone"]; ok {
		if _, isStr := v.GetKind().(*structpb.Value_StringValue); !isStr {
			return "", "", 0, errors.New("zone must be a string")
		}
		zone = v.GetStringValue()
	}
	if v, ok := fields["quantity"]; ok {
		if _, isNum := v.GetKind().(*structpb.Value_NumberValue); !isNum {
			return "", "", 0, errors.New("quantity must be a number")
		}
		quantity = v.GetNumberValue()
	}
	return metric, zone, quantity, nil
}

// Code maps an insight pipeline error to a gRPC status code.
func Code(err error) codes.Code {
	switch {
	case errors.Is(err, insight.ErrInvalidArgument):
		return codes.InvalidArgument
	case errors.Is(err, grid.ErrMissingField), errors.Is(err, grid.ErrInsufficientData):
		return codes.NotFound
	case errors.Is(err, insight.ErrUpstream), errors.Is(err, grid.ErrMalformedRecord):
		return codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Internal
	}
}

// toStruct round-trips v through JSON so the Struct carries the same field
// names as the HTTP API.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("convert to struct: %w", err)
	}
	return out, nil
}
