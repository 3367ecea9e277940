package query

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

const maxLimit = 200

// Pagination is cursor-based: After is the row ID the previous page ended at.
type Pagination struct {
	Limit *int
	After *uint
	Order string
}

func GetPaginationFromQuery(reqCtx *gin.Context) (*Pagination, error) {
	limitStr := reqCtx.DefaultQuery("limit", "20")
	order := reqCtx.DefaultQuery("order", "asc")
	afterStr := reqCtx.Query("after")

	var limit *int

	if limitStr != "" {
		limitInt, err := strconv.Atoi(limitStr)
		if err != nil || limitInt < 1 || limitInt > maxLimit {
			return nil, fmt.Errorf("invalid limit number")
		}
		limit = &limitInt
	}

	var after *uint
	if afterStr != "" {
		afterInt, err := strconv.ParseUint(afterStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid after cursor")
		}
		afterUint := uint(afterInt)
		after = &afterUint
	}

	if order != "asc" && order != "desc" {
		return nil, fmt.Errorf("invalid order")
	}

	return &Pagination{
		Limit: limit,
		After: after,
		Order: order,
	}, nil
}
