package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/canteen-engine/internal/core/domain"
	"github.com/rl1809/canteen-engine/internal/core/service"
)

type HTTPHandler struct {
	orders   *service.OrderService
	bookings *service.BookingService
	forum    *service.ForumService
	reports  *service.ReportingService
	logger   *zap.Logger
}

type PlaceOrderHTTPResponse struct {
	Success    bool             `json:"success"`
	Message    string           `json:"message"`
	OrderID    string           `json:"order_id,omitempty"`
	TotalPrice *decimal.Decimal `json:"total_price,omitempty"`
}

// ErrorHTTPResponse is the body of every failed request.
type ErrorHTTPResponse struct {
	Success   bool                `json:"success"`
	Message   string              `json:"message"`
	Code      domain.ErrorCode    `json:"code"`
	Fields    []domain.FieldError `json:"fields,omitempty"`
	ItemID    string              `json:"item_id,omitempty"`
	Available *int                `json:"available,omitempty"`
	Requested *int                `json:"requested,omitempty"`
}

type AddCommentHTTPRequest struct {
	Content    string `json:"content"`
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
}

func NewHTTPHandler(
	orders *service.OrderService,
	bookings *service.BookingService,
	forum *service.ForumService,
	reports *service.ReportingService,
	logger *zap.Logger,
) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{
		orders:   orders,
		bookings: bookings,
		forum:    forum,
		reports:  reports,
		logger:   logger.Named("http"),
	}
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(h *HTTPHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	r.GET("/health", h.HealthCheck)

	api := r.Group("/api")
	api.POST("/orders", h.PlaceOrder)
	api.GET("/orders", h.ListOrders)
	api.GET("/items/:id", h.GetItem)
	api.GET("/reports/sales", h.RecentSales)
	api.GET("/reports/low-stock", h.LowStock)
	api.POST("/bookings", h.Book)

	forum := api.Group("/forum/posts")
	forum.POST("", h.CreatePost)
	forum.POST("/:id/upvote", h.Upvote)
	forum.POST("/:id/comments", h.AddComment)
	forum.GET("/:id/comments", h.ListComments)

	return r
}

func (h *HTTPHandler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func (h *HTTPHandler) PlaceOrder(c *gin.Context) {
	var req domain.CartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}

	order, err := h.orders.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, PlaceOrderHTTPResponse{
		Success:    true,
		Message:    "order placed successfully",
		OrderID:    order.ID,
		TotalPrice: &order.TotalPrice,
	})
}

func (h *HTTPHandler) ListOrders(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	orders, err := h.reports.OrdersForPurchaser(c.Request.Context(), c.Query("user_id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": orders})
}

func (h *HTTPHandler) GetItem(c *gin.Context) {
	item, err := h.reports.Item(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "item": item})
}

func (h *HTTPHandler) RecentSales(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	sales, err := h.reports.RecentSales(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sales": sales})
}

func (h *HTTPHandler) LowStock(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	items, err := h.reports.LowStockItems(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "items": items})
}

func (h *HTTPHandler) Book(c *gin.Context) {
	var req domain.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}

	booking, err := h.bookings.Book(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "booking": booking})
}

func (h *HTTPHandler) CreatePost(c *gin.Context) {
	var req domain.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}

	post, err := h.forum.CreatePost(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "post": post})
}

func (h *HTTPHandler) Upvote(c *gin.Context) {
	upvotes, err := h.forum.Upvote(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "upvotes": upvotes})
}

func (h *HTTPHandler) AddComment(c *gin.Context) {
	var body AddCommentHTTPRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badBody(c)
		return
	}

	comment, err := h.forum.AddComment(c.Request.Context(), domain.AddCommentRequest{
		PostID:     c.Param("id"),
		Content:    body.Content,
		AuthorID:   body.AuthorID,
		AuthorName: body.AuthorName,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "comment": comment})
}

func (h *HTTPHandler) ListComments(c *gin.Context) {
	comments, err := h.reports.Comments(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "comments": comments})
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func limitParam(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorHTTPResponse{
			Message: "limit must be an integer",
			Code:    domain.CodeValidationFailed,
			Fields:  []domain.FieldError{{Field: "limit", Reason: "must be an integer"}},
		})
		return 0, false
	}
	return n, true
}

func badBody(c *gin.Context) {
	c.JSON(http.StatusBadRequest, ErrorHTTPResponse{
		Message: "invalid request body",
		Code:    domain.CodeValidationFailed,
	})
}

// statusFor maps an error class to its HTTP status. Sold out stays 410 Gone.
func statusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeValidationFailed:
		return http.StatusBadRequest
	case domain.CodeItemNotFound, domain.CodePostNotFound:
		return http.StatusNotFound
	case domain.CodeInsufficientStock:
		return http.StatusGone
	case domain.CodeSlotTaken:
		return http.StatusConflict
	case domain.CodeContention:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	code := domain.CodeOf(err)
	resp := ErrorHTTPResponse{Message: err.Error(), Code: code}

	var (
		verr     *domain.ValidationError
		stockErr *domain.InsufficientStockError
		missing  *domain.ItemNotFoundError
	)
	switch {
	case errors.As(err, &verr):
		resp.Message = "invalid request"
		resp.Fields = verr.Fields
	case errors.As(err, &stockErr):
		resp.Message = "sold out"
		resp.ItemID = stockErr.ItemID
		resp.Available = &stockErr.Available
		resp.Requested = &stockErr.Requested
	case errors.As(err, &missing):
		resp.ItemID = missing.ItemID
	case code == domain.CodeContention:
		resp.Message = "too many concurrent orders, try again"
	case code == domain.CodeStorageFailure:
		resp.Message = "internal error"
	}

	c.JSON(statusFor(code), resp)
}
