package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	kitchendomain "github.com/smallbiznis/panucci/internal/kitchen/domain"
)

func (s *Server) ListKitchenOrders(c *gin.Context) {
	status := kitchendomain.Status(strings.ToUpper(strings.TrimSpace(c.Query("status"))))
	if status != "" && !status.Valid() {
		AbortWithError(c, newValidationError("status", "invalid_status", "unknown kitchen status"))
		return
	}

	items, err := s.kitchenSvc.List(c.Request.Context(), kitchendomain.ListTicketFilter{Status: status})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"items": items}})
}

func (s *Server) GetKitchenOrder(c *gin.Context) {
	resp, err := s.kitchenSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("orderRef")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) PrintKitchenTicket(c *gin.Context) {
	orderRef := strings.TrimSpace(c.Param("orderRef"))
	doc, err := s.kitchenSvc.PrintTicket(c.Request.Context(), orderRef)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	writeAttachment(c, contentTypePDF, fmt.Sprintf("comanda-%s.pdf", orderRef), doc)
}
