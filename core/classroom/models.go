package classroom

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

type Class struct {
	ID               int64     `json:"id"`
	TeacherAccountID int64     `json:"teacher_id"`
	Name             string    `json:"name"`
	CreatedAt        time.Time `json:"created_at"`
}

type NewClass struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	return validate.Struct(nc)
}

type Student struct {
	AccountID   int64  `json:"account_id"`
	StudentCode string `json:"student_code"`
	ClassID     int64  `json:"class_id,omitempty"`
	Grade       int    `json:"grade,omitempty"`
}

type AssignStudent struct {
	StudentCode string `json:"student_code" validate:"required,len=7"`
}

func (as *AssignStudent) Validate(validate *validator.Validate) error {
	as.StudentCode = core.CleanString(as.StudentCode)
	return validate.Struct(as)
}

type Post struct {
	ID             int64     `json:"id"`
	ClassID        int64     `json:"class_id"`
	AuthorID       int64     `json:"author_id"`
	Content        string    `json:"content"`
	AttachmentPath string    `json:"attachment_path,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type NewPost struct {
	Content string `json:"content" form:"content" validate:"required,max=2000"`
}

func (np *NewPost) Validate(validate *validator.Validate) error {
	np.Content = core.CleanString(np.Content)
	return validate.Struct(np)
}

type Assignment struct {
	ID          int64     `json:"id"`
	ClassID     int64     `json:"class_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type NewAssignment struct {
	Title       string `json:"title" validate:"required,max=250"`
	Description string `json:"description" validate:"required,max=2000"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	return validate.Struct(na)
}

// Submission is the latest file a student handed in for an Assignment.
type Submission struct {
	ID               int64     `json:"id"`
	AssignmentID     int64     `json:"assignment_id"`
	StudentAccountID int64     `json:"student_id"`
	FilePath         string    `json:"file_path"`
	FileType         string    `json:"file_type"`
	SubmittedAt      time.Time `json:"submitted_at"`
}
