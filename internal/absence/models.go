package absence

import "time"

// Absence statuses.
const (
	StatusPending     = "pending"
	StatusJustified   = "justified"
	StatusUnjustified = "unjustified"
)

// Justification review outcomes.
const (
	ReviewPending  = "pending"
	ReviewApproved = "approved"
	ReviewRejected = "rejected"
)

// Record is one logged instance of a student missing a scheduled session.
type Record struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	GroupName   string    `json:"group_name"`
	Date        time.Time `json:"date"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	Hours       float64   `json:"hours"`
	Subject     string    `json:"subject"`
	TeacherName string    `json:"teacher_name"`
	Notes       string    `json:"notes"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// StudentSummary aggregates a student's absence load.
type StudentSummary struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	GroupName         string  `json:"group_name"`
	TotalAbsenceHours float64 `json:"total_absence_hours"`
}

// Justification is a student-submitted explanation for an absence,
// optionally backed by an uploaded document.
type Justification struct {
	ID          string    `json:"id"`
	AbsenceID   string    `json:"absence_id"`
	StudentName string    `json:"student_name"`
	Date        time.Time `json:"date"`
	Hours       float64   `json:"hours"`
	Reason      string    `json:"reason"`
	FileName    string    `json:"file_name"`
	FileType    string    `json:"file_type"`
	FileURL     string    `json:"file_url"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ListFilter narrows absence queries.
type ListFilter struct {
	StudentID string
	Group     string
	Status    string
	Limit     int
	Offset    int
}
