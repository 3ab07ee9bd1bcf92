package grpc

import (
	"context"
	"errors"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName             = "visualsearch.v1.ProductService"
	GetProductsFullMethod   = "/" + ServiceName + "/GetProducts"
	SearchSimilarFullMethod = "/" + ServiceName + "/SearchSimilar"
)

// ProductServiceServer — сервис каталога и поиска для внутренних клиентов.
// Сообщения передаются как google.protobuf.Struct с теми же полями, что и HTTP API.
type ProductServiceServer interface {
	GetProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SearchSimilar(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type ProductService struct {
	prUC     usecase.ProductUC
	searchUC usecase.SearchUC
	logger   logger.Logger
}

func NewProductService(prUC usecase.ProductUC, searchUC usecase.SearchUC, logger logger.Logger) *ProductService {
	return &ProductService{prUC: prUC, searchUC: searchUC, logger: logger}
}

// GetProducts принимает {"ids": [...]} и возвращает найденные товары
// и список ненайденных id.
func (g *ProductService) GetProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "grpc.GetProducts"

	ids := stringList(req, "ids")
	found := make([]*domain.Product, 0, len(ids))
	notFound := make([]any, 0)

	for _, id := range ids {
		product, err := g.prUC.GetProduct(ctx, id)
		if errors.Is(err, e.ErrNotFound) {
			notFound = append(notFound, id)
			continue
		}
		if err != nil {
			g.logger.Errorf(e.Wrap(op, err), "%s", op)
			return nil, GRPCErrorResponse(e.Wrap(op, err))
		}
		found = append(found, product)
	}

	res, err := structpb.NewStruct(map[string]any{
		"products":         toArrGRPCProduct(found),
		"productsNotFound": notFound,
	})
	if err != nil {
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	return res, nil
}

// SearchSimilar принимает {"imageUrl" | "productId", "topK", "minScore", "category"}.
func (g *ProductService) SearchSimilar(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "grpc.SearchSimilar"

	res, err := g.searchUC.Search(ctx, &usecase.SearchReq{
		ImageURL:  stringField(req, "imageUrl"),
		ProductID: stringField(req, "productId"),
		TopK:      int(numberField(req, "topK")),
		MinScore:  numberField(req, "minScore"),
		Category:  stringField(req, "category"),
	})
	if err != nil {
		g.logger.Warnf("%s: %v", op, err)
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	results := make([]any, 0, len(res.Results))
	for _, r := range res.Results {
		item := toGRPCProduct(r.Product)
		item["score"] = r.Score
		results = append(results, item)
	}

	out, err := structpb.NewStruct(map[string]any{
		"queryEmbeddingDims": res.QueryEmbeddingDims,
		"historyId":          res.HistoryID,
		"results":            results,
	})
	if err != nil {
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	return out, nil
}

var productServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ProductServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetProducts",
			Handler: unaryHandler(GetProductsFullMethod, func(srv ProductServiceServer) structMethod {
				return srv.GetProducts
			}),
		},
		{
			MethodName: "SearchSimilar",
			Handler: unaryHandler(SearchSimilarFullMethod, func(srv ProductServiceServer) structMethod {
				return srv.SearchSimilar
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "visualsearch/v1/product_service.proto",
}

type structMethod func(context.Context, *structpb.Struct) (*structpb.Struct, error)

// unaryHandler повторяет то, что protoc-gen-go-grpc генерирует для unary-методов.
func unaryHandler(fullMethod string, pick func(ProductServiceServer) structMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}

		method := pick(srv.(ProductServiceServer))
		if interceptor == nil {
			return method(ctx, in)
		}

		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return method(ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RegisterProductServiceServer регистрирует сервис на gRPC-сервере.
func RegisterProductServiceServer(s grpc.ServiceRegistrar, srv ProductServiceServer) {
	s.RegisterService(&productServiceDesc, srv)
}
