package models

type Item struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description,omitempty"`
	SortOrder   int64  `yaml:"sort_order" json:"sort_order"`
	IsActive    bool   `yaml:"is_active" json:"is_active"`
}
