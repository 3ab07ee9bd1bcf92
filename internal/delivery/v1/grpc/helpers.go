package grpc

import (
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// GRPCErrorResponse переводит вид ошибки в код gRPC. Внутренние детали наружу не отдаются.
func GRPCErrorResponse(err error) error {
	switch e.Kind(err) {
	case e.KindValidation, e.KindInvalidRequest:
		return status.Error(codes.InvalidArgument, e.PublicMessage(err))
	case e.KindNotFound:
		return status.Error(codes.NotFound, e.PublicMessage(err))
	case e.KindEmbedding, e.KindStorage:
		return status.Error(codes.Unavailable, e.PublicMessage(err))
	default:
		return status.Error(codes.Internal, e.PublicMessage(err))
	}
}

func toGRPCProduct(p *domain.Product) map[string]any {
	res := map[string]any{
		"id":            p.ID,
		"name":          p.Name,
		"category":      p.Category,
		"imageUrl":      p.ImageURL,
		"embeddingDims": len(p.Embedding),
	}
	if p.Metadata != nil && p.Metadata.Price != nil {
		res["price"] = p.Metadata.Price.String()
	}

	return res
}

func toArrGRPCProduct(products []*domain.Product) []any {
	res := make([]any, len(products))
	for i, p := range products {
		res[i] = toGRPCProduct(p)
	}

	return res
}

// stringList читает список строк из поля запроса. Нестроковые элементы пропускаются.
func stringList(req *structpb.Struct, field string) []string {
	values := req.GetFields()[field].GetListValue().GetValues()

	res := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.GetKind().(*structpb.Value_StringValue); ok {
			res = append(res, s.StringValue)
		}
	}

	return res
}

func stringField(req *structpb.Struct, field string) string {
	return req.GetFields()[field].GetStringValue()
}

func numberField(req *structpb.Struct, field string) float64 {
	return req.GetFields()[field].GetNumberValue()
}
