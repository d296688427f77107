package server

import (
	"context"

	"google.golang.org/grpc"

	"github.com/joseph-ayodele/invoice-normalizer/internal/entity"
)

const InvoiceService_Normalize_FullMethodName = "/invoices.v1.InvoiceService/Normalize"

// NormalizeRequest carries one invoice image. ImageBase64 may be a data: URL.
type NormalizeRequest struct {
	ImageBase64 string `json:"imageBase64"`
	MimeType    string `json:"mimeType,omitempty"`
	Filename    string `json:"filename,omitempty"`
}

type NormalizeResponse struct {
	RequestID string         `json:"requestId"`
	Outcome   string         `json:"outcome"`
	State     string         `json:"state"`
	Retried   bool           `json:"retried"`
	Invoice   entity.Invoice `json:"invoice"`
}

// InvoiceServiceServer is the server API for InvoiceService.
type InvoiceServiceServer interface {
	Normalize(context.Context, *NormalizeRequest) (*NormalizeResponse, error)
}

func RegisterInvoiceServiceServer(s grpc.ServiceRegistrar, srv InvoiceServiceServer) {
	s.RegisterService(&InvoiceService_ServiceDesc, srv)
}

func _InvoiceService_Normalize_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(NormalizeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InvoiceServiceServer).Normalize(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: InvoiceService_Normalize_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InvoiceServiceServer).Normalize(ctx, req.(*NormalizeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// InvoiceService_ServiceDesc is the grpc.ServiceDesc for InvoiceService.
// Messages travel with the JSON codec registered in codec.go.
var InvoiceService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "invoices.v1.InvoiceService",
	HandlerType: (*InvoiceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Normalize",
			Handler:    _InvoiceService_Normalize_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "invoices/v1/invoice_service",
}

// InvoiceServiceClient is the client API for InvoiceService.
type InvoiceServiceClient interface {
	Normalize(ctx context.Context, in *NormalizeRequest, opts ...grpc.CallOption) (*NormalizeResponse, error)
}

type invoiceServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewInvoiceServiceClient(cc grpc.ClientConnInterface) InvoiceServiceClient {
	return &invoiceServiceClient{cc}
}

func (c *invoiceServiceClient) Normalize(ctx context.Context, in *NormalizeRequest, opts ...grpc.CallOption) (*NormalizeResponse, error) {
	out := new(NormalizeResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, InvoiceService_Normalize_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
