package dto

type AnalyzeForm struct {
	TargetRole string `form:"target_role" validate:"omitempty,max=120"`
	Location   string `form:"location" validate:"omitempty,max=120"`
}

type SkillGapRequest struct {
	ResumeText string `json:"resume_text" validate:"required,min=50"`
	TargetRole string `json:"target_role" validate:"required,max=120"`
}

type JobSearchQuery struct {
	Query    string `query:"q" validate:"required,max=200"`
	Location string `query:"location" validate:"omitempty,max=120"`
}

type PaginationQuery struct {
	Page     int `query:"page" validate:"omitempty,min=1"`
	PageSize int `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// Normalize fills in the first page and the default page size.
func (q *PaginationQuery) Normalize() {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 20
	}
}
