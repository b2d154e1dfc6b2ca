package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/quotes/:symbol", func(c *gin.Context) {
		Write(c, NewNotFoundError("no quote for "+c.Param("symbol"), ""))
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/quotes/EURUSD", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/problem+json")

	var p ProblemDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, TypeNotFound, p.Type)
	assert.Equal(t, "Not Found", p.Title)
	assert.Equal(t, "no quote for EURUSD", p.Detail)
	assert.Equal(t, "/quotes/EURUSD", p.Instance)
}

func TestProblemError(t *testing.T) {
	p := NewNotImplementedError("quote stream disabled", "/ws/quotes")
	assert.Equal(t, http.StatusNotImplemented, p.Status)
	assert.Equal(t, "quote stream disabled", p.Error())
	assert.Equal(t, http.StatusServiceUnavailable, NewUnavailableError("", "").Status)
}
