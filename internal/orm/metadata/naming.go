package metadata

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-openapi/inflect"
)

// ToColumnName converts an attribute name to its default snake_case column
func ToColumnName(attr string) string {
	return inflect.Underscore(attr)
}

// entityNameFromFile derives an entity name from a descriptor file name:
// "blog_post.yml" -> "BlogPost"
func entityNameFromFile(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.TrimSuffix(base, ".orm")
	return inflect.Camelize(base)
}

// DefaultJoinColumn returns the foreign-key column name referencing table
func DefaultJoinColumn(table string) string {
	return table + "_id"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
