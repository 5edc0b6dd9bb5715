package model

type Tag struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description,omitempty"`
}

type TagInput struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description,omitempty"`
}

type TagPatch struct {
	Color       *string `json:"color,omitempty"`
	Description *string `json:"description,omitempty"`
}
