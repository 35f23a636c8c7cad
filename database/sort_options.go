package database

const (
	SortDate = "date"
	SortSize = "size"
	SortName = "name"
)

const DefaultSortKey = SortDate

// IsValidSortKey checks if a string is a valid sort key constant
func IsValidSortKey(key string) bool {
	switch key {
	case SortDate, SortSize, SortName:
		return true
	default:
		return false
	}
}
