package api

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"storefront-service/internal/cart"
	"storefront-service/internal/catalog"
	"storefront-service/internal/domain"
	"storefront-service/internal/session"
)

// StorefrontServiceName is the fully qualified gRPC service name.
const StorefrontServiceName = "storefront.v1.Storefront"

// Requests and responses are google.protobuf.Struct documents so internal
// callers need no generated stubs.
type StorefrontServer interface {
	SearchProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetCartSummary(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// StorefrontServiceDesc describes the Storefront service for grpc.Server.RegisterService.
var StorefrontServiceDesc = grpc.ServiceDesc{
	ServiceName: StorefrontServiceName,
	HandlerType: (*StorefrontServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SearchProducts", Handler: unaryHandler("SearchProducts", StorefrontServer.SearchProducts)},
		{MethodName: "GetProduct", Handler: unaryHandler("GetProduct", StorefrontServer.GetProduct)},
		{MethodName: "GetCartSummary", Handler: unaryHandler("GetCartSummary", StorefrontServer.GetCartSummary)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/v1/storefront.proto",
}

func unaryHandler(method string, call func(StorefrontServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	fullMethod := "/" + StorefrontServiceName + "/" + method
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(StorefrontServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(StorefrontServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServerOptions returns the interceptor chain every Storefront server runs
// with: panics become codes.Internal and each call is logged.
func ServerOptions(logger *zap.Logger) []grpc.ServerOption {
	if logger == nil {
		logger = zap.NewNop()
	}
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			unaryLogger(logger),
			recovery.UnaryServerInterceptor(recovery.WithRecoveryHandlerContext(
				func(ctx context.Context, p interface{}) error {
					logger.Error("recovered from panic in gRPC handler", zap.Any("panic", p), zap.Stack("stack"))
					return status.Error(codes.Internal, "internal server error")
				},
			)),
		),
	}
}

func unaryLogger(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc request",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("duration", time.Since(start)),
		)
		return resp, err
	}
}

// GRPCHandler implements StorefrontServer.
type GRPCHandler struct {
	catalog  *catalog.Catalog
	sessions *session.Registry
	logger   *zap.Logger
}

// NewGRPCHandler creates a new GRPCHandler.
func NewGRPCHandler(c *catalog.Catalog, sessions *session.Registry, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{catalog: c, sessions: sessions, logger: logger}
}

// Register attaches the handler to s.
func (s *GRPCHandler) Register(gs *grpc.Server) {
	gs.RegisterService(&StorefrontServiceDesc, s)
}

// --- Helper: Error Mapping ---
func (s *GRPCHandler) mapErrorToGrpcStatus(err error, resourceName string, resourceID interface{}) error {
	var reqErr requestError
	switch {
	case errors.As(err, &reqErr):
		return status.Error(codes.InvalidArgument, reqErr.Error())
	case errors.Is(err, catalog.ErrProductNotFound):
		return status.Errorf(codes.NotFound, "%s with ID %v not found", resourceName, resourceID)
	default:
		s.logger.Error("grpc request failed", zap.String("resource", resourceName), zap.Any("id", resourceID), zap.Error(err))
		return status.Errorf(codes.Internal, "Failed to process request for %s ID %v", resourceName, resourceID)
	}
}

func (s *GRPCHandler) SearchProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	s.logger.Debug("received gRPC SearchProducts request", zap.Any("request", req.AsMap()))

	minPrice, err := stringField(fields, "minPrice")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	maxPrice, err := stringField(fields, "maxPrice")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	cfg, err := BuildFilter(s.catalog,
		fields["category"].GetStringValue(),
		fields["query"].GetStringValue(),
		minPrice, maxPrice,
		fields["sort"].GetStringValue(),
	)
	if err != nil {
		return nil, s.mapErrorToGrpcStatus(err, "Product", "search")
	}

	results := s.catalog.Search(cfg)
	products := make([]interface{}, 0, len(results))
	for _, p := range results {
		products = append(products, productToMap(p))
	}
	return structpb.NewStruct(map[string]interface{}{
		"products": products,
		"total":    len(results),
	})
}

func (s *GRPCHandler) GetProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := req.GetFields()["id"].GetStringValue()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "Product ID is required")
	}
	p, err := s.catalog.ProductByID(id)
	if err != nil {
		return nil, s.mapErrorToGrpcStatus(err, "Product", id)
	}
	return structpb.NewStruct(productToMap(p))
}

func (s *GRPCHandler) GetCartSummary(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := req.GetFields()["sessionId"].GetStringValue()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "Session ID is required")
	}
	c, ok := s.sessions.Lookup(id)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "Session with ID %s not found", id)
	}

	snap := c.Snapshot()
	sum := cart.Summarize(snap.TotalPrice)
	lines := make([]interface{}, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		lines = append(lines, map[string]interface{}{
			"productId":     l.ID,
			"name":          l.Name,
			"quantity":      l.Quantity,
			"selectedColor": l.SelectedColor,
			"selectedSize":  l.SelectedSize,
			"lineTotal":     cart.FormatMoney(l.LineTotal()),
		})
	}
	return structpb.NewStruct(map[string]interface{}{
		"items":      lines,
		"totalItems": snap.TotalItems,
		"isOpen":     snap.IsOpen,
		"subtotal":   cart.FormatMoney(sum.Subtotal),
		"shipping":   cart.FormatMoney(sum.Shipping),
		"tax":        cart.FormatMoney(sum.Tax),
		"total":      cart.FormatMoney(sum.Total),
	})
}

// stringField reads a price given either as a JSON number or a string.
func stringField(fields map[string]*structpb.Value, key string) (string, error) {
	v, ok := fields[key]
	if !ok {
		return "", nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue, nil
	case *structpb.Value_NumberValue:
		if math.IsNaN(k.NumberValue) || math.IsInf(k.NumberValue, 0) {
			return "", requestError("Invalid " + key + ": must be a finite number")
		}
		return decimal.NewFromFloat(k.NumberValue).String(), nil
	case *structpb.Value_NullValue:
		return "", nil
	default:
		return "", requestError("Invalid " + key + ": must be a number or string")
	}
}

func productToMap(p domain.Product) map[string]interface{} {
	m := map[string]interface{}{
		"id":          p.ID,
		"name":        p.Name,
		"description": p.Description,
		"category":    string(p.Category),
		"price":       cart.FormatMoney(p.Price),
		"images":      stringsToList(p.Images),
		"rating":      p.Rating,
		"reviews":     p.Reviews,
		"stock":       p.Stock,
		"isNew":       p.IsNew,
		"isSale":      p.IsSale,
	}
	if p.OriginalPrice != nil {
		m["originalPrice"] = cart.FormatMoney(*p.OriginalPrice)
	}
	if len(p.Colors) > 0 {
		m["colors"] = stringsToList(p.Colors)
	}
	if len(p.Sizes) > 0 {
		m["sizes"] = stringsToList(p.Sizes)
	}
	return m
}

func stringsToList(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// StorefrontClient is a thin client for StorefrontServiceDesc.
type StorefrontClient struct {
	cc grpc.ClientConnInterface
}

func NewStorefrontClient(cc grpc.ClientConnInterface) *StorefrontClient {
	return &StorefrontClient{cc: cc}
}

func (c *StorefrontClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+StorefrontServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StorefrontClient) SearchProducts(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "SearchProducts", in, opts...)
}

func (c *StorefrontClient) GetProduct(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetProduct", in, opts...)
}

func (c *StorefrontClient) GetCartSummary(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetCartSummary", in, opts...)
}
