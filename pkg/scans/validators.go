package scans

type ListSessionsQuery struct {
	Limit  int      `query:"limit" json:"limit,omitempty" default:"10" validate:"min=1,max=100"`
	Offset int      `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Status []string `query:"status" json:"status,omitempty" validate:"dive,oneof=running success failed"`
}

type ListEntriesQuery struct {
	Action []string `query:"action" json:"action,omitempty" validate:"dive,oneof=added updated moved unchanged missing"`
}
