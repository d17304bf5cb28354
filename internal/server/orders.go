package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/smallbiznis/panucci/internal/order/domain"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"

	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type orderItemRequest struct {
	ProductID string `json:"productoId"`
	Name      string `json:"nombre"`
	Quantity  int64  `json:"cantidad"`
	UnitPrice *int64 `json:"precioUnit"`
}

type createOrderRequest struct {
	Items         []orderItemRequest `json:"items"`
	CustomerName  string             `json:"clienteNombre"`
	CustomerEmail string             `json:"clienteEmail"`
}

type updateOrderStatusRequest struct {
	Status string `json:"estado"`
}

func (s *Server) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	items := make([]orderdomain.ItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, orderdomain.ItemInput{
			ProductID: strings.TrimSpace(item.ProductID),
			Name:      strings.TrimSpace(item.Name),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	result, err := s.orderSvc.Create(c.Request.Context(), orderdomain.CreateOrderRequest{
		Items:          items,
		CustomerName:   strings.TrimSpace(req.CustomerName),
		CustomerEmail:  strings.TrimSpace(req.CustomerEmail),
		IdempotencyKey: strings.TrimSpace(c.GetHeader(headerIdempotencyKey)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("cliente_id", result.Order.ClienteID)
	if result.Replayed {
		c.Set("idempotent_replay", true)
		c.Header(headerReplayed, "true")
	}
	c.JSON(http.StatusOK, gin.H{"data": result.Order})
}

func (s *Server) ListOrders(c *gin.Context) {
	status, err := parseOptionalStatus(c.Query("status"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.orderSvc.List(c.Request.Context(), orderdomain.ListOrderFilter{Status: status})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"items": items}})
}

func (s *Server) GetOrder(c *gin.Context) {
	resp, err := s.orderSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("orderId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelOrder(c *gin.Context) {
	resp, err := s.orderSvc.Cancel(c.Request.Context(), strings.TrimSpace(c.Param("orderId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateOrderStatus(c *gin.Context) {
	var req updateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.UpdateStatus(c.Request.Context(), orderdomain.UpdateStatusRequest{
		OrderID: strings.TrimSpace(c.Param("orderId")),
		Status:  orderdomain.Status(strings.ToUpper(strings.TrimSpace(req.Status))),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetOrderReceipt(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("orderId"))
	doc, err := s.orderSvc.Receipt(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	writeAttachment(c, contentTypePDF, fmt.Sprintf("recibo-%s.pdf", orderID), doc)
}

func (s *Server) ExportOrders(c *gin.Context) {
	status, err := parseOptionalStatus(c.Query("status"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	data, err := s.orderSvc.Export(c.Request.Context(), orderdomain.ListOrderFilter{Status: status})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="pedidos.xlsx"`)
	c.Data(http.StatusOK, contentTypeXLSX, data)
}

func (s *Server) ListProducts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": s.catalog.List(c.Request.Context())})
}

func writeAttachment(c *gin.Context, contentType, filename string, body io.Reader) {
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, filename))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, body); err != nil {
		_ = c.Error(err)
	}
}
