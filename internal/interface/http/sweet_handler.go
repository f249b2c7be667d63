package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-sweet-shop/internal/application"
	"github.com/oksasatya/go-sweet-shop/internal/domain/entity"
	"github.com/oksasatya/go-sweet-shop/internal/domain/search"
	"github.com/oksasatya/go-sweet-shop/pkg/response"
)

// maxImageBytes caps image uploads.
const maxImageBytes = 5 << 20

type SweetHandler struct {
	Svc    *application.SweetService
	Logger *logrus.Logger
}

func NewSweetHandler(svc *application.SweetService, logger *logrus.Logger) *SweetHandler {
	return &SweetHandler{Svc: svc, Logger: logger}
}

// sweetRequest leaves absent fields nil so updates only touch what was sent.
type sweetRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Category    *string  `json:"category"`
	Image       *string  `json:"image"`
	Quantity    *int     `json:"quantity"`
}

func (r sweetRequest) patch() entity.SweetPatch {
	return entity.SweetPatch{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Category:    r.Category,
		Image:       r.Image,
		Quantity:    r.Quantity,
	}
}

type restockRequest struct {
	Quantity *float64 `json:"quantity"`
	Amount   *float64 `json:"amount"`
}

func (h *SweetHandler) List(c *gin.Context) {
	sweets, err := h.Svc.List(c.Request.Context())
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.JSON(c, http.StatusOK, sweets)
}

func (h *SweetHandler) Search(c *gin.Context) {
	sweets, err := h.Svc.Search(c.Request.Context(), search.Params{
		Name:     c.Query("name"),
		Category: c.Query("category"),
		MinPrice: c.Query("minPrice"),
		MaxPrice: c.Query("maxPrice"),
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.JSON(c, http.StatusOK, sweets)
}

func (h *SweetHandler) Create(c *gin.Context) {
	var req sweetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	sweet, err := h.Svc.Add(c.Request.Context(), req.patch())
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.JSON(c, http.StatusCreated, sweet)
}

func (h *SweetHandler) Update(c *gin.Context) {
	var req sweetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	sweet, err := h.Svc.Update(c.Request.Context(), c.Param("id"), req.patch())
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.JSON(c, http.StatusOK, sweet)
}

func (h *SweetHandler) Delete(c *gin.Context) {
	id, err := h.Svc.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"id": id})
}

func (h *SweetHandler) Purchase(c *gin.Context) {
	sweet, err := h.Svc.Purchase(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.JSON(c, http.StatusOK, sweet)
}

func (h *SweetHandler) Restock(c *gin.Context) {
	var req restockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	amount := req.Quantity
	if amount == nil {
		amount = req.Amount
	}
	var n float64
	if amount != nil {
		n = *amount
	}
	sweet, err := h.Svc.Restock(c.Request.Context(), c.Param("id"), n)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.JSON(c, http.StatusOK, sweet)
}

// UploadImage accepts a multipart "image" file.
func (h *SweetHandler) UploadImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImageBytes)
	fh, err := c.FormFile("image")
	if err != nil {
		writeError(c, h.Logger, entity.NewValidationError("invalid payload", map[string]string{"image": "is required"}))
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	defer func() { _ = f.Close() }()

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	sweet, err := h.Svc.UploadImage(c.Request.Context(), c.Param("id"), fh.Filename, contentType, f)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.JSON(c, http.StatusOK, sweet)
}
