package catalog

type ListItemsQuery struct {
	Limit  int `query:"limit" json:"limit,omitempty" default:"25" validate:"min=1,max=100"`
	Offset int `query:"offset" json:"offset,omitempty" validate:"min=0"`
}

type ListIssuesQuery struct {
	Type       []string `query:"type" json:"type,omitempty" validate:"dive,oneof=duplicate missing_metadata"`
	FileID     *int     `query:"file_id" json:"file_id,omitempty"`
	Unresolved bool     `query:"unresolved" json:"unresolved,omitempty"`
}
