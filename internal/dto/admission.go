package dto

// AdmissionListQuery carries list filters bound from the query string.
type AdmissionListQuery struct {
	Status string `form:"status" validate:"omitempty,oneof=PENDING CONFIRMED REJECTED"`
	Search string `form:"search"`
	Page   int    `form:"page" validate:"omitempty,min=1"`
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=100"`
}

// AdmissionExportQuery selects the export format and filters.
type AdmissionExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
	Status string `form:"status" validate:"omitempty,oneof=PENDING CONFIRMED REJECTED"`
	Search string `form:"search"`
}

// CreateAdmissionRequest opens a manual admission awaiting review.
type CreateAdmissionRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	CourseID  string `json:"courseId" validate:"required"`
	Notes     string `json:"notes" validate:"omitempty,max=2000"`
}

// ConfirmAdmissionRequest approves a pending admission.
type ConfirmAdmissionRequest struct {
	ReviewerID string `json:"reviewerId"`
	Notes      string `json:"notes" validate:"omitempty,max=2000"`
}

// RejectAdmissionRequest declines a pending admission.
type RejectAdmissionRequest struct {
	ReviewerID      string `json:"reviewerId"`
	RejectionReason string `json:"rejectionReason"`
	Notes           string `json:"notes" validate:"omitempty,max=2000"`
}
