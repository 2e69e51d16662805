package echoapi

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/somesha/core"
)

const orderingParam = "ordering"

// Ordering binds `?ordering=name,-created_at`; a leading "-" orders descending.
type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context, allowed ...string) {
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
	if len(allowed) > 0 {
		ord.Orderings = core.AllowedOrderings(ord.Orderings, allowed...)
	}
}

func boolParam(ctx echo.Context, name string) *bool {
	switch strings.ToLower(ctx.QueryParam(name)) {
	case "true", "1":
		v := true
		return &v
	case "false", "0":
		v := false
		return &v
	}
	return nil
}

// dateParam parses RFC 3339 timestamps or plain dates; anything else is ignored.
func dateParam(ctx echo.Context, name string) time.Time {
	val := ctx.QueryParam(name)
	if val == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse("2006-01-02", val); err == nil {
		return t
	}
	return time.Time{}
}

type (
	SuccessResponse struct {
		Success string `json:"success"`
	}

	IDsRequest struct {
		IDs []string `query:"id"`
	}
)
