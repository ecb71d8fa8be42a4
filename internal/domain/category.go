package domain

// CategoryNode is one node of the nested subtree returned by the
// storefront's queryChildren endpoint. The shape is externally defined.
type CategoryNode struct {
	GroupingID string         `json:"groupingId"`
	Title      string         `json:"title"`
	Level      int            `json:"level"`
	Image      string         `json:"image,omitempty"`
	Children   []CategoryNode `json:"children,omitempty"`
}

// Category is a flattened node of the persisted category hierarchy.
// ParentID is nil for roots (level 1). SortOrder is meaningful only
// among siblings, not globally.
type Category struct {
	ID        string  `json:"id"`
	ParentID  *string `json:"parent_id"`
	Name      string  `json:"name"`
	Level     int     `json:"level"`
	ImageURL  *string `json:"image_url"`
	SortOrder int     `json:"sort_order"`
}

// CategoryTreeNode is a category with its children attached, as served
// by the categories/tree endpoint.
type CategoryTreeNode struct {
	Category
	Children []*CategoryTreeNode `json:"children"`
}
