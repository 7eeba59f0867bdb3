package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应格式
type Response struct {
	Code    int         `json:"code"` // 0 表示成功
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// ErrorResponse 错误响应格式
type ErrorResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Detail  interface{} `json:"detail,omitempty"`
}

// PaginatedResponse 分页响应
type PaginatedResponse struct {
	Code       int            `json:"code"`
	Message    string         `json:"message"`
	Data       interface{}    `json:"data"`
	Pagination PaginationInfo `json:"pagination"`
}

// PaginationInfo 分页信息
type PaginationInfo struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"page_size"`
	Total     int64 `json:"total"`
	TotalPage int   `json:"total_page"`
}

// NewPaginationInfo 计算总页数
func NewPaginationInfo(page, pageSize int, total int64) PaginationInfo {
	totalPage := 0
	if pageSize > 0 {
		totalPage = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return PaginationInfo{Page: page, PageSize: pageSize, Total: total, TotalPage: totalPage}
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: 0, Message: "created", Data: data})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string, detail interface{}) {
	statusCode := http.StatusInternalServerError
	if code >= 400 && code < 600 {
		statusCode = code
	}
	c.AbortWithStatusJSON(statusCode, ErrorResponse{Code: code, Message: message, Detail: detail})
}

// Paginated 分页响应
func Paginated(c *gin.Context, data interface{}, pagination PaginationInfo) {
	c.JSON(http.StatusOK, PaginatedResponse{
		Code:       0,
		Message:    "success",
		Data:       data,
		Pagination: pagination,
	})
}
