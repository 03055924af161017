package sort

import (
	"pvv/api/models/constants"
	"strings"
)

const (
	Undefined  constants.SortDirection = ""
	Ascending  constants.SortDirection = "asc"
	Descending constants.SortDirection = "desc"
)

func IsKnownSortDirection(text string) bool {
	return CastToSortDirection(text) != Undefined
}

func CastToSortDirection(text string) constants.SortDirection {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "asc", "ascending":
		return Ascending
	case "desc", "descending":
		return Descending
	default:
		return Undefined
	}
}
