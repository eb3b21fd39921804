package handlers

import (
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed dashboard.html
var dashboardHTML []byte

// Dashboard godoc
// @Summary Operator dashboard
// @Tags dashboard
// @Produce html
// @Success 200 {string} string
// @Router / [get]
func Dashboard(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", dashboardHTML)
}
