package api

import (
	"net/http"

	"github.com/Domenick1991/travelgo/internal/service/foodorders"
	"github.com/gin-gonic/gin"
)

type FoodOrderHandler struct {
	service foodorders.FoodOrderUseCase
}

func NewFoodOrderHandler(service foodorders.FoodOrderUseCase) *FoodOrderHandler {
	return &FoodOrderHandler{service: service}
}

func (h *FoodOrderHandler) Register(router *gin.RouterGroup) {
	router.GET("/", h.list)
	router.POST("/", h.create)
	router.GET("/:id", h.get)
	router.DELETE("/:id", h.delete)
}

func (h *FoodOrderHandler) list(c *gin.Context) {
	orders, err := h.service.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *FoodOrderHandler) create(c *gin.Context) {
	var input foodorders.CreateFoodOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		writeBindError(c, err)
		return
	}
	order, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *FoodOrderHandler) get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	order, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *FoodOrderHandler) delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
