package server

import (
	"net/http"

	"github.com/ajitpratap0/sfbridge/pkg/errors"
	"github.com/gin-gonic/gin"
)

type apiResponse struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    any                    `json:"data,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
	})
}

// fail writes the error envelope. The status comes from the error
// classification; the stack is never exposed.
func fail(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)

	resp := apiResponse{
		Code:    status,
		Message: err.Error(),
	}
	var e *errors.Error
	if errors.As(err, &e) && len(e.Details) > 0 {
		resp.Details = e.Details
	}

	_ = c.Error(err)
	c.JSON(status, resp)
}
