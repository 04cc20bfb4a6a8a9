package community

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

// Message statuses
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

type Message struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	Content    string    `json:"content"`
	Status     string    `json:"status"`
	SentAt     time.Time `json:"sent_at"`
}

type NewMessage struct {
	ReceiverID int64  `json:"receiver_id" validate:"required,min=1"`
	Content    string `json:"content" validate:"required,max=500"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Content = core.CleanString(nm.Content)
	return validate.Struct(nm)
}

type LibraryContent struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	Title     string    `json:"title"`
	FilePath  string    `json:"file_path,omitempty"`
	FileType  string    `json:"file_type,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type NewLibraryContent struct {
	Title string `json:"title" form:"title" validate:"required,max=250"`
}

func (nc *NewLibraryContent) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	return validate.Struct(nc)
}

// LibraryFilter selects library contents; zero fields are ignored.
type LibraryFilter struct {
	Title   string `query:"title"` // case-insensitive substring
	OwnerID int64  `query:"owner_id"`
}

func (f *LibraryFilter) Clean() {
	f.Title = strings.TrimSpace(f.Title)
}

type Program struct {
	ID        int64     `json:"id"`
	CreatorID int64     `json:"creator_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type NewProgram struct {
	Name string `json:"name" validate:"required,max=250"`
}

func (np *NewProgram) Validate(validate *validator.Validate) error {
	np.Name = core.CleanString(np.Name)
	return validate.Struct(np)
}

type Subscription struct {
	ID           int64     `json:"id"`
	AccountID    int64     `json:"account_id"`
	ProgramID    int64     `json:"program_id"`
	SubscribedAt time.Time `json:"subscribed_at"`
}
