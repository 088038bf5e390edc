package handler

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// The order service is described by hand and carried as JSON, so clients and
// servers share these Go types instead of generated protobuf messages.

const (
	jsonCodecName        = "json"
	OrderServiceName     = "canteen.v1.OrderService"
	placeOrderFullMethod = "/" + OrderServiceName + "/PlaceOrder"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return jsonCodecName }

type OrderLine struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name,omitempty"`
	Price    string `json:"price,omitempty"`
	Quantity int32  `json:"quantity"`
}

type PlaceOrderRequest struct {
	UserID     string       `json:"user_id"`
	Items      []*OrderLine `json:"items"`
	TotalPrice string       `json:"total_price,omitempty"`
}

type PlaceOrderResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	OrderID    string `json:"order_id,omitempty"`
	TotalPrice string `json:"total_price,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
	ItemID     string `json:"item_id,omitempty"`
	Available  int64  `json:"available,omitempty"`
	Requested  int64  `json:"requested,omitempty"`
}

type OrderServiceServer interface {
	PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error)
}

func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&OrderServiceDesc, srv)
}

var OrderServiceDesc = grpc.ServiceDesc{
	ServiceName: OrderServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PlaceOrder", Handler: placeOrderHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "canteen/v1/order",
}

func placeOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PlaceOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServiceServer).PlaceOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: placeOrderFullMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(OrderServiceServer).PlaceOrder(ctx, req.(*PlaceOrderRequest))
	})
}

type OrderServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderServiceClient(cc grpc.ClientConnInterface) *OrderServiceClient {
	return &OrderServiceClient{cc: cc}
}

func (c *OrderServiceClient) PlaceOrder(ctx context.Context, in *PlaceOrderRequest, opts ...grpc.CallOption) (*PlaceOrderResponse, error) {
	out := new(PlaceOrderResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsonCodecName)}, opts...)
	if err := c.cc.Invoke(ctx, placeOrderFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
