package handler

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/rl1809/canteen-engine/internal/core/domain"
	"github.com/rl1809/canteen-engine/internal/core/service"
)

// GRPCHandler reports business failures in the response body, never as an
// RPC status, mirroring the HTTP handler.
type GRPCHandler struct {
	orderService *service.OrderService
}

func NewGRPCHandler(orderService *service.OrderService) *GRPCHandler {
	return &GRPCHandler{orderService: orderService}
}

func (h *GRPCHandler) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	cart, badField := toCartRequest(req)
	if badField != "" {
		return &PlaceOrderResponse{
			Success:   false,
			Message:   badField + ": must be a decimal number",
			ErrorCode: string(domain.CodeValidationFailed),
		}, nil
	}

	order, err := h.orderService.PlaceOrder(ctx, cart)
	if err != nil {
		return failureResponse(err), nil
	}

	return &PlaceOrderResponse{
		Success:    true,
		Message:    "order placed successfully",
		OrderID:    order.ID,
		TotalPrice: order.TotalPrice.String(),
	}, nil
}

// toCartRequest converts the wire request. It returns the name of the first
// field that is not a valid decimal.
func toCartRequest(req *PlaceOrderRequest) (domain.CartRequest, string) {
	cart := domain.CartRequest{
		PurchaserID: req.UserID,
		Lines:       make([]domain.CartLine, 0, len(req.Items)),
	}
	if req.TotalPrice != "" {
		total, err := decimal.NewFromString(req.TotalPrice)
		if err != nil {
			return cart, "total_price"
		}
		cart.ClaimedTotal = total
	}
	for _, item := range req.Items {
		if item == nil {
			continue
		}
		line := domain.CartLine{ItemID: item.ItemID, Name: item.Name, Quantity: int(item.Quantity)}
		if item.Price != "" {
			price, err := decimal.NewFromString(item.Price)
			if err != nil {
				return cart, "items.price"
			}
			line.Price = price
		}
		cart.Lines = append(cart.Lines, line)
	}
	return cart, ""
}

func failureResponse(err error) *PlaceOrderResponse {
	code := domain.CodeOf(err)
	resp := &PlaceOrderResponse{Message: err.Error(), ErrorCode: string(code)}

	var (
		stockErr *domain.InsufficientStockError
		missing  *domain.ItemNotFoundError
	)
	switch {
	case errors.As(err, &stockErr):
		resp.Message = "sold out"
		resp.ItemID = stockErr.ItemID
		resp.Available = int64(stockErr.Available)
		resp.Requested = int64(stockErr.Requested)
	case errors.As(err, &missing):
		resp.ItemID = missing.ItemID
	case code == domain.CodeStorageFailure:
		resp.Message = "internal error"
	}
	return resp
}

// UnaryLoggingInterceptor logs every unary call with its status code and latency.
func UnaryLoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	logger = logger.Named("grpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("call",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)),
		)
		return resp, err
	}
}
