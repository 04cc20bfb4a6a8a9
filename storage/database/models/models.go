// Package models declares the database rows and the settable field sets the crud façade writes them with.
package models

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/storage/database/crud"
)

// Message statuses
const (
	MessageSent      = "sent"
	MessageDelivered = "delivered"
	MessageRead      = "read"
)

// Constraint names mapped to domain errors.
const (
	AccountsUsernameKey      = "accounts_username_key"
	AccountsEmailKey         = "accounts_email_key"
	StudentsStudentCodeKey   = "students_student_code_key"
	SubscriptionsAccountKey  = "subscriptions_account_program_key"
	MessagesReceiverFKey     = "messages_receiver_id_fkey"
	PostsClassFKey           = "posts_class_id_fkey"
	SubscriptionsProgramFKey = "subscriptions_program_id_fkey"
	AssignmentsClassFKey     = "assignments_class_id_fkey"
	SubmissionsAssignFKey    = "submissions_assignment_id_fkey"
)

type Account struct {
	ID           int64       `db:"id"`
	Username     string      `db:"username"`
	Email        string      `db:"email"`
	PasswordHash []byte      `db:"password_hash"`
	Role         string      `db:"role"`
	IsOfficial   bool        `db:"is_official"`
	TOTPSecret   null.String `db:"totp_secret"`
	TOTPEnabled  bool        `db:"totp_enabled"`
	CreatedAt    time.Time   `db:"created_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func (Account) TableName() string { return "accounts" }

type AccountFields struct {
	Username     null.String  `db:"username"`
	Email        null.String  `db:"email"`
	PasswordHash null.Bytes   `db:"password_hash"`
	Role         null.String  `db:"role"`
	IsOfficial   null.Bool    `db:"is_official"`
	TOTPSecret   *null.String `db:"totp_secret"` // &null.String{} clears it
	TOTPEnabled  null.Bool    `db:"totp_enabled"`
	LastLogin    null.Time    `db:"last_login"`
}

func (f AccountFields) Assignments() []crud.Assignment { return crud.Assign(f) }

type School struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	Location     string    `db:"location"`
	ContactEmail string    `db:"contact_email"`
	CreatedAt    time.Time `db:"created_at"`
}

func (School) TableName() string { return "schools" }

type SchoolFields struct {
	Name         null.String `db:"name"`
	Location     null.String `db:"location"`
	ContactEmail null.String `db:"contact_email"`
}

func (f SchoolFields) Assignments() []crud.Assignment { return crud.Assign(f) }

type Student struct {
	ID          int64       `db:"id"`
	AccountID   int64       `db:"account_id"`
	SchoolID    null.Int64  `db:"school_id"`
	ClassID     null.Int64  `db:"class_id"`
	Grade       null.Int    `db:"grade"`
	StudentCode null.String `db:"student_code"`
}

func (Student) TableName() string { return "students" }

type StudentFields struct {
	AccountID   null.Int64  `db:"account_id"`
	SchoolID    null.Int64  `db:"school_id"`
	ClassID     *null.Int64 `db:"class_id"`
	Grade       null.Int    `db:"grade"`
	StudentCode null.String `db:"student_code"`
}

func (f StudentFields) Assignments() []crud.Assignment { return crud.Assign(f) }

type Teacher struct {
	ID        int64      `db:"id"`
	AccountID int64      `db:"account_id"`
	SchoolID  null.Int64 `db:"school_id"`
}

func (Teacher) TableName() string { return "teachers" }

type TeacherFields struct {
	AccountID null.Int64 `db:"account_id"`
	SchoolID  null.Int64 `db:"school_id"`
}

func (f TeacherFields) Assignments() []crud.Assignment { return crud.Assign(f) }

type CommunityMember struct {
	ID          int64  `db:"id"`
	AccountID   int64  `db:"account_id"`
	DisplayName string `db:"display_name"`
}

func (CommunityMember) TableName() string { return "community_members" }

type CommunityMemberFields struct {
	AccountID   null.Int64  `db:"account_id"`
	DisplayName null.String `db:"display_name"`
}

func (f CommunityMemberFields) Assignments() []crud.Assignment { return crud.Assign(f) }

type Message struct {
	ID         int64     `db:"id"`
	SenderID   int64     `db:"sender_id"`
	ReceiverID int64     `db:"receiver_id"`
	Content    string    `db:"content"`
	Status     string    `db:"status"`
	SentAt     time.Time `db:"sent_at"`
}

func (Message) TableName() string { return "messages" }

type MessageFields struct {
	SenderID   null.Int64  `db:"sender_id"`
	ReceiverID null.Int64  `db:"receiver_id"`
	Content    null.String `db:"content"`
	Status     null.String `db:"status"`
}

func (f MessageFields) Assignments() []crud.Assignment { return crud.Assign(f) }

type LibraryContent struct {
	ID        int64       `db:"id"`
	OwnerID   int64       `db:"owner_id"`
	Title     string      `db:"title"`
	FilePath  null.String `db:"file_path"`
	FileType  null.String `db:"file_type"`
	CreatedAt time.Time   `db:"created_at"`
}

func (LibraryContent) TableName() string { return "library_contents" }

type LibraryContentFields struct {
	OwnerID  null.Int64  `db:"owner_id"`
	Title    null.String `db:"title"`
	FilePath null.String `db:"file_path"`
	FileType null.String `db:"file_type"`
}

func (f LibraryContentFields) Assignments() []crud.Assignment { return crud.Assign(f) }

type Program struct {
	ID        int64     `db:"id"`
	CreatorID int64     `db:"creator_id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

func (Program) TableName() string { return "programs" }

type ProgramFields struct {
	CreatorID null.Int64  `db:"creator_id"`
	Name      null.String `db:"name"`
}

func (f ProgramFields) Assignments() []crud.Assignment { return crud.Assign(f) }

type Subscription struct {
	ID           int64     `db:"id"`
	AccountID    int64     `db:"account_id"`
	ProgramID    int64     `db:"program_id"`
	SubscribedAt time.Time `db:"subscribed_at"`
}

func (Subscription) TableName() string { return "subscriptions" }

type SubscriptionFields struct {
	AccountID null.Int64 `db:"account_id"`
	ProgramID null.Int64 `db:"program_id"`
}

func (f SubscriptionFields) Assignments() []crud.Assignment { return crud.Assign(f) }

type Class struct {
	ID        int64     `db:"id"`
	TeacherID int64     `db:"teacher_id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

func (Class) TableName() string { return "classes" }

type ClassFields struct {
	TeacherID null.Int64  `db:"teacher_id"`
	Name      null.String `db:"name"`
}

func (f ClassFields) Assignments() []crud.Assignment { return crud.Assign(f) }

type Post struct {
	ID             int64       `db:"id"`
	ClassID        int64       `db:"class_id"`
	AuthorID       int64       `db:"author_id"`
	Content        string      `db:"content"`
	AttachmentPath null.String `db:"attachment_path"`
	CreatedAt      time.Time   `db:"created_at"`
}

func (Post) TableName() string { return "posts" }

type PostFields struct {
	ClassID        null.Int64  `db:"class_id"`
	AuthorID       null.Int64  `db:"author_id"`
	Content        null.String `db:"content"`
	AttachmentPath null.String `db:"attachment_path"`
}

func (f PostFields) Assignments() []crud.Assignment { return crud.Assign(f) }

type Assignment struct {
	ID          int64     `db:"id"`
	ClassID     int64     `db:"class_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

func (Assignment) TableName() string { return "assignments" }

type AssignmentFields struct {
	ClassID     null.Int64  `db:"class_id"`
	Title       null.String `db:"title"`
	Description null.String `db:"description"`
}

func (f AssignmentFields) Assignments() []crud.Assignment { return crud.Assign(f) }

// Submission is the file a student handed in for an assignment, one per student & assignment.
type Submission struct {
	ID           int64     `db:"id"`
	AssignmentID int64     `db:"assignment_id"`
	StudentID    int64     `db:"student_id"` // students.id
	FilePath     string    `db:"file_path"`
	FileType     string    `db:"file_type"`
	SubmittedAt  time.Time `db:"submitted_at"`
}

func (Submission) TableName() string { return "submissions" }

type SubmissionFields struct {
	AssignmentID null.Int64  `db:"assignment_id"`
	StudentID    null.Int64  `db:"student_id"`
	FilePath     null.String `db:"file_path"`
	FileType     null.String `db:"file_type"`
	SubmittedAt  null.Time   `db:"submitted_at"`
}

func (f SubmissionFields) Assignments() []crud.Assignment { return crud.Assign(f) }
