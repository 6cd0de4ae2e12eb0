package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"restrobook/service"
)

const dayLayout = "2006-01-02"

// salesRange reads ?from=&to= as whole days; to is inclusive.
func salesRange(c *gin.Context) (time.Time, time.Time, error) {
	var since, until time.Time
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(dayLayout, v)
		if err != nil {
			return since, until, err
		}
		since = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(dayLayout, v)
		if err != nil {
			return since, until, err
		}
		until = t.AddDate(0, 0, 1)
	}
	return since, until, nil
}

func (h *Handler) SalesCSV(c *gin.Context) {
	since, until, err := salesRange(c)
	if err != nil {
		h.badRequest(c, err)
		return
	}
	report, err := h.services.Sales().Report(c.Request.Context(), since, until)
	if err != nil {
		h.handleError(c, err)
		return
	}
	name := "sales_report_" + time.Now().UTC().Format(dayLayout) + ".csv"
	c.Header("Content-Disposition", "attachment; filename="+name)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", report.CSV)
}

// SalesEmail mails the report to the signed-in admin; an account without an
// e-mail address gets ErrNoRecipient.
func (h *Handler) SalesEmail(c *gin.Context) {
	since, until, err := salesRange(c)
	if err != nil {
		h.badRequest(c, err)
		return
	}
	claims, ok := c.MustGet(ctxClaims).(*service.Claims)
	if !ok {
		h.handleError(c, service.ErrInvalidToken)
		return
	}
	user, err := h.services.User().Get(c.Request.Context(), claims.UserID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if user.Email == nil {
		h.handleError(c, service.ErrNoRecipient)
		return
	}
	report, err := h.services.Sales().Email(c.Request.Context(), *user.Email, since, until)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email sent successfully", "to": *user.Email, "orders": report.Orders, "revenue": report.Revenue})
}
