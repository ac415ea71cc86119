package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/janus/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `?ordering=field,-other`; a leading "-" sorts descending.
// Unknown fields are dropped by the repositories.
func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// paramID reads the `:id` path param; anything but a positive int is a 404.
func paramID(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil || id < 1 {
		return 0, errHttpNotFound
	}
	return id, nil
}

// queryBool reads an optional boolean query param.
func queryBool(ctx echo.Context, name string) *bool {
	b, err := strconv.ParseBool(ctx.QueryParam(name))
	if err != nil {
		return nil
	}
	return &b
}

// hasQueryParam tells whether name is present, even without a value.
func hasQueryParam(ctx echo.Context, name string) bool {
	_, ok := ctx.QueryParams()[name]
	return ok
}

type (
	SuccessResponse struct {
		Success string `json:"success"`
	}

	// FlashResponse carries the object of an admin operation and its messages.
	FlashResponse struct {
		Object   interface{}    `json:"object,omitempty"`
		Messages []core.Message `json:"messages"`
	}

	IDsRequest struct {
		IDs []int `json:"ids"`
	}
)

func flash(obj interface{}, level, msg string) FlashResponse {
	return FlashResponse{Object: obj, Messages: []core.Message{{Level: level, Message: msg}}}
}
