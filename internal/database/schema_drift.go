package database

import (
	"regexp"
	"strings"
)

var (
	postgresMissingColumn = regexp.MustCompile(`column "?([A-Za-z0-9_]+)"?(?: of relation "?[A-Za-z0-9_]+"?)? does not exist`)
	sqliteMissingColumn   = regexp.MustCompile(`has no column named ([A-Za-z0-9_]+)`)
)

// IsMissingColumnError reports whether err says that column is absent from the target table.
// An empty column matches any missing column.
func IsMissingColumnError(err error, column string) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	for _, pattern := range []*regexp.Regexp{postgresMissingColumn, sqliteMissingColumn} {
		for _, match := range pattern.FindAllStringSubmatch(message, -1) {
			if column == "" || strings.EqualFold(match[1], column) {
				return true
			}
		}
	}
	return false
}
