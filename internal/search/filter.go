package search

import (
	"fmt"
	"strconv"
	"strings"
)

// FilterParams are the structured filters accepted alongside a search query
type FilterParams struct {
	Type     string
	MinPrice *float64
	MaxPrice *float64
	MinArea  *float64
	MaxArea  *float64
	MinRooms *int
	City     string
}

// Expression builds the Meilisearch filter string, or "" when no filter is set
func (p FilterParams) Expression() string {
	var filters []string

	if p.Type != "" {
		filters = append(filters, fmt.Sprintf("type = %s", quote(p.Type)))
	}
	if p.MinPrice != nil {
		filters = append(filters, "price >= "+formatFloat(*p.MinPrice))
	}
	if p.MaxPrice != nil {
		filters = append(filters, "price <= "+formatFloat(*p.MaxPrice))
	}
	if p.MinArea != nil {
		filters = append(filters, "area >= "+formatFloat(*p.MinArea))
	}
	if p.MaxArea != nil {
		filters = append(filters, "area <= "+formatFloat(*p.MaxArea))
	}
	if p.MinRooms != nil {
		filters = append(filters, fmt.Sprintf("rooms >= %d", *p.MinRooms))
	}
	if p.City != "" {
		filters = append(filters, fmt.Sprintf("city = %s", quote(p.City)))
	}

	return strings.Join(filters, " AND ")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// quote wraps a value in double quotes, escaping embedded quotes and backslashes
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
