package changes

type ListChangesQuery struct {
	Status []string `query:"status" json:"status,omitempty" validate:"dive,oneof=pending applied error"`
	FileID *int     `query:"file_id" json:"file_id,omitempty" validate:"omitempty,min=1"`
}

type CreateChangeBody struct {
	FileID      int     `json:"file_id" validate:"required,min=1"`
	Type        string  `json:"type" validate:"required,oneof=rename delete metadata_edit"`
	ToPath      *string `json:"to_path,omitempty" validate:"required_if=Type rename"`
	Reason      *string `json:"reason,omitempty"`
	Title       *string `json:"title,omitempty"`
	Author      *string `json:"author,omitempty"`
	Description *string `json:"description,omitempty"`
	ISBN        *string `json:"isbn,omitempty"`
}

type RemoveChangesQuery struct {
	ID []int `query:"id" json:"id,omitempty" validate:"dive,min=1"`
}

type ResolveDuplicatesBody struct {
	KeepFileID int   `json:"keep_file_id" validate:"required,min=1"`
	FileIDs    []int `json:"file_ids" validate:"required,min=1,dive,min=1"`
}
