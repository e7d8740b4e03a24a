package gbfs

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes returned in the body of every failed feed request.
const (
	CodeMissingCity     = "MISSING_CITY"
	CodeUnknown         = "UNKNOWN"
	CodeUnknownCity     = "UNKNOWN_CITY"
	CodeUnsupportedFeed = "UNSUPPORTED_FEED"
)

type errorBody struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

func missingCityError(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Code: CodeMissingCity, Msg: "Missing city URL parameter"})
}

func unknownCityError(c *gin.Context, city string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Code: CodeUnknownCity, Msg: fmt.Sprintf("Unknown city '%s'.", city)})
}

func unknownError(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Code: CodeUnknown, Msg: "An error occurred"})
}

func unsupportedFeedError(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, errorBody{Code: CodeUnsupportedFeed, Msg: "Unsupported GBFS feed"})
}
