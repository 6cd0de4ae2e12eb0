package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"restrobook/pkg/models"
)

func (h *Handler) ListMenu(c *gin.Context) {
	filter := models.MenuFilter{
		Category: c.Query("category"),
		VegOnly:  c.Query("veg") == "true" || c.Query("veg") == "1",
		Search:   strings.TrimSpace(c.Query("q")),
	}
	items, err := h.services.Menu().List(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) ListCategories(c *gin.Context) {
	cats, err := h.services.Menu().Categories(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, cats)
}

type menuItemForm struct {
	Name        string          `json:"name" form:"name" binding:"required"`
	Description string          `json:"description" form:"description"`
	Price       decimal.Decimal `json:"price" form:"-"`
	Image       string          `json:"image" form:"image"`
	IsVeg       bool            `json:"isVeg" form:"isVeg"`
	Category    string          `json:"category" form:"category" binding:"required"`
	Badge       string          `json:"badge" form:"badge"`
	InStock     *bool           `json:"inStock" form:"inStock"`
}

func (f menuItemForm) item() models.MenuItem {
	inStock := true
	if f.InStock != nil {
		inStock = *f.InStock
	}
	return models.MenuItem{
		Name:        strings.TrimSpace(f.Name),
		Description: f.Description,
		Price:       f.Price,
		Image:       f.Image,
		IsVeg:       f.IsVeg,
		Category:    strings.TrimSpace(f.Category),
		Badge:       models.BadgeType(f.Badge),
		InStock:     inStock,
	}
}

// CreateMenuItem accepts JSON, or a multipart form carrying an optional "image" file.
func (h *Handler) CreateMenuItem(c *gin.Context) {
	var (
		form     menuItemForm
		image    io.Reader
		filename string
	)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&form); err != nil {
			h.badRequest(c, err)
			return
		}
		price, err := decimal.NewFromString(c.PostForm("price"))
		if err != nil {
			h.badRequest(c, err)
			return
		}
		form.Price = price

		if fh, err := c.FormFile("image"); err == nil {
			f, err := fh.Open()
			if err != nil {
				h.badRequest(c, err)
				return
			}
			defer f.Close()
			image, filename = f, fh.Filename
		}
	} else if err := c.ShouldBindJSON(&form); err != nil {
		h.badRequest(c, err)
		return
	}

	item, err := h.services.Menu().Create(c.Request.Context(), form.item(), image, filename)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) DeleteMenuItem(c *gin.Context) {
	if err := h.services.Menu().Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type stockRequest struct {
	InStock *bool `json:"inStock" binding:"required"`
}

func (h *Handler) SetStock(c *gin.Context) {
	var req stockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if err := h.services.Menu().SetInStock(c.Request.Context(), c.Param("id"), *req.InStock); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "inStock": *req.InStock})
}

func (h *Handler) SeedMenu(c *gin.Context) {
	n, err := h.services.Menu().Seed(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"seeded": n})
}

func (h *Handler) UploadImage(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		h.badRequest(c, err)
		return
	}
	url, err := h.upload(c, fh)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *Handler) upload(c *gin.Context, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	return h.services.Menu().UploadImage(c.Request.Context(), fh.Filename, f)
}

func (h *Handler) GetSettings(c *gin.Context) {
	st, err := h.services.Menu().GetSettings(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

type settingsRequest struct {
	TotalTables int `json:"totalTables" binding:"required"`
}

func (h *Handler) PutSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	st, err := h.services.Menu().SetTotalTables(c.Request.Context(), req.TotalTables)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) TableQR(c *gin.Context) {
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		h.badRequest(c, err)
		return
	}
	png, err := h.services.Menu().TableQR(c.Request.Context(), n)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", "inline; filename=table-"+strconv.Itoa(n)+".png")
	c.Data(http.StatusOK, "image/png", png)
}
