package response

import (
	"net/http"

	"advisorledger/internal/errs"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess      = 0
	CodeParamError   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeServerError  = 500
)

// Business failure codes, returned with HTTP 400.
const (
	CodeInvalidState      = 1001
	CodeInsufficientFunds = 1002
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, status, code int, message string) {
	c.AbortWithStatusJSON(status, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeParamError, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, CodeUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, CodeForbidden, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, CodeServerError, message)
}

// FromError writes a failure returned by the ledger services. Persistence details
// stay in the logs; the client only sees a generic message.
func FromError(c *gin.Context, err error) {
	switch errs.KindOf(err) {
	case errs.NotFound:
		Error(c, http.StatusNotFound, CodeNotFound, err.Error())
	case errs.InvalidState:
		Error(c, http.StatusBadRequest, CodeInvalidState, err.Error())
	case errs.InsufficientFunds:
		Error(c, http.StatusBadRequest, CodeInsufficientFunds, err.Error())
	case errs.Validation:
		Error(c, http.StatusBadRequest, CodeParamError, err.Error())
	default:
		_ = c.Error(err)
		ServerError(c, "internal error")
	}
}
