package util

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// MustParseUint 将字符串转换为无符号整数，解析失败时返回 0
func MustParseUint(s string) uint {
	id, _ := strconv.ParseUint(s, 10, 32)
	return uint(id)
}

// ParamUint 读取路径参数，非法或为 0 时返回 false
func ParamUint(c *gin.Context, name string) (uint, bool) {
	id := MustParseUint(c.Param(name))
	return id, id != 0
}

// Pagination 读取 page/pageSize 并限制范围
func Pagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = DefaultPage
	}
	size, err := strconv.Atoi(c.DefaultQuery("pageSize", strconv.Itoa(DefaultPageSize)))
	if err != nil || size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

func Offset(page, size int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * size
}
