package organizer

type PlanBody struct {
	Mode        string `json:"mode" validate:"omitempty,oneof=move copy reference"`
	LibraryRoot string `json:"library_root" validate:"omitempty,min=1"`
	Template    string `json:"template" validate:"omitempty,min=1"`
}

type CreateChangesBody struct {
	Plan *Plan `json:"plan" validate:"required"`
}

type UpdateSettingsBody struct {
	LibraryRoot *string `json:"library_root,omitempty"`
	Mode        *string `json:"mode,omitempty" validate:"omitempty,oneof=move copy reference"`
	Template    *string `json:"template,omitempty" validate:"omitempty,min=1"`
}
