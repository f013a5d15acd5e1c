package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ibuddy-app/ibuddy-service/internal/services"
	"github.com/ibuddy-app/ibuddy-service/internal/utils"
)

type FAQHandler struct {
	BaseHandler
	faqService services.FAQService
}

func NewFAQHandler(faqService services.FAQService, logger utils.Logger) *FAQHandler {
	return &FAQHandler{
		BaseHandler: NewBaseHandler(logger),
		faqService:  faqService,
	}
}

// ListFAQs
// @Summary List FAQs
// @Tags faqs
// @Produce json
// @Success 200 {array} services.FAQView
// @Router /faqs [get]
func (h *FAQHandler) ListFAQs(c *gin.Context) {
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}

	faqs, err := h.faqService.List(c.Request.Context(), actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, faqs)
}

// GetFAQ
// @Summary Get FAQ
// @Tags faqs
// @Produce json
// @Param id path string true "FAQ ID"
// @Success 200 {object} services.FAQView
// @Router /faqs/{id} [get]
func (h *FAQHandler) GetFAQ(c *gin.Context) {
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}

	faq, err := h.faqService.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, faq)
}

// CreateFAQ
// @Summary Create FAQ
// @Tags faqs
// @Accept json
// @Produce json
// @Param body body services.FAQRequest true "FAQ"
// @Success 201 {object} models.FAQ
// @Router /faqs [post]
func (h *FAQHandler) CreateFAQ(c *gin.Context) {
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req services.FAQRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.LogRequest(c, "Creating FAQ")

	faq, err := h.faqService.Create(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, faq)
}

// UpdateFAQ
// @Summary Update FAQ
// @Tags faqs
// @Accept json
// @Produce json
// @Param id path string true "FAQ ID"
// @Param body body services.FAQRequest true "FAQ"
// @Success 200 {object} models.FAQ
// @Router /faqs/{id} [put]
func (h *FAQHandler) UpdateFAQ(c *gin.Context) {
	id := c.Param("id")
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req services.FAQRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.LogRequest(c, "Updating FAQ", "faq_id", id)

	faq, err := h.faqService.Update(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, faq)
}

// DeleteFAQ
// @Summary Delete FAQ
// @Tags faqs
// @Param id path string true "FAQ ID"
// @Success 204
// @Router /faqs/{id} [delete]
func (h *FAQHandler) DeleteFAQ(c *gin.Context) {
	id := c.Param("id")
	h.LogRequest(c, "Deleting FAQ", "faq_id", id)
	actor, ok := h.currentUser(c)
	if !ok {
		return
	}

	if err := h.faqService.Delete(c.Request.Context(), actor, id); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
