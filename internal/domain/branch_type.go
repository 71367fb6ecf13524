package domain

// BranchType is one of the four fixed relationship categories. Typing is
// purely descriptive; traversal treats all four identically.
type BranchType string

const (
	BranchConstructive BranchType = "constructive"
	BranchCritique     BranchType = "critique"
	BranchAuthor       BranchType = "author"
	BranchWildcard     BranchType = "wildcard"
)

// BranchTypes returns the full fixed set, in canonical order.
func BranchTypes() []BranchType {
	return []BranchType{BranchConstructive, BranchCritique, BranchAuthor, BranchWildcard}
}

func ValidBranchType(t BranchType) bool {
	switch t {
	case BranchConstructive, BranchCritique, BranchAuthor, BranchWildcard:
		return true
	}
	return false
}
