package utils

import (
	"net/url"
	"strconv"
	"strings"

	"fieldops-system/pkg/types"
)

// ParseFilterFromQuery разбирает query-параметры вида
// ?filter[status]=paused&sort[created_at]=desc&limit=10&offset=0.
func ParseFilterFromQuery(query url.Values) types.Filter {
	filter := types.Filter{
		Search: query.Get("search"),
		Sort:   make(map[string]string),
		Filter: make(map[string]interface{}),
		Limit:  20,
		Offset: 0,
	}

	for key, values := range query {
		if len(values) == 0 {
			continue
		}
		if strings.HasPrefix(key, "filter[") && strings.HasSuffix(key, "]") {
			field := key[len("filter[") : len(key)-1]
			filter.Filter[field] = values[0]
		}
		if strings.HasPrefix(key, "sort[") && strings.HasSuffix(key, "]") {
			field := key[len("sort[") : len(key)-1]
			filter.Sort[field] = values[0]
		}
	}

	if limit, err := strconv.Atoi(query.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(query.Get("offset")); err == nil && offset >= 0 {
		filter.Offset = offset
	}
	if filter.Limit > 0 {
		filter.Page = filter.Offset/filter.Limit + 1
	}
	filter.WithPagination, _ = strconv.ParseBool(query.Get("withPagination"))

	return filter
}
