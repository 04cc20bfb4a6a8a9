package community

import (
	"context"
	"fmt"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
)

var (
	// errors
	ErrNotFound          = errors.New("not found")
	ErrUnknownReceiver   = errors.New("receiver does not exist")
	ErrSelfMessage       = errors.New("cannot send a message to yourself")
	ErrAlreadySubscribed = errors.New("already subscribed to this program")
	ErrNotSubscribed     = errors.New("not subscribed to this program")
)

type (
	// Repository persists community records; each write is a single atomic create or delete.
	Repository interface {
		// SendMessage returns ErrUnknownReceiver when receiverID does not exist.
		SendMessage(ctx context.Context, senderID, receiverID int64, content string) (Message, error)
		// Messages returns the messages sent or received by accountID, newest first.
		Messages(ctx context.Context, accountID int64) ([]Message, error)

		PublishLibraryContent(ctx context.Context, ownerID int64, title string, file *core.StoredFile) (LibraryContent, error)
		GetLibraryContent(ctx context.Context, id int64) (LibraryContent, error)
		SearchLibrary(ctx context.Context, filter LibraryFilter) ([]LibraryContent, error)
		DeleteLibraryContent(ctx context.Context, id int64) error

		CreateProgram(ctx context.Context, creatorID int64, name string) (Program, error)
		GetProgram(ctx context.Context, id int64) (Program, error)
		Programs(ctx context.Context) ([]Program, error)
		// SubscribeToProgram returns ErrAlreadySubscribed for an existing (account, program) pair.
		SubscribeToProgram(ctx context.Context, accountID, programID int64) (Subscription, error)
		Unsubscribe(ctx context.Context, accountID, programID int64) error
	}

	Service interface {
		SendMessage(ctx context.Context, sender account.Account, nm NewMessage) (Message, error)
		Messages(ctx context.Context, acc account.Account) ([]Message, error)

		Publish(ctx context.Context, owner account.Account, nc NewLibraryContent, upload *core.Upload) (LibraryContent, error)
		SearchLibrary(ctx context.Context, filter LibraryFilter) ([]LibraryContent, error)
		RemoveLibraryContent(ctx context.Context, owner account.Account, id int64) error

		CreateProgram(ctx context.Context, creator account.Account, np NewProgram) (Program, error)
		Programs(ctx context.Context) ([]Program, error)
		Subscribe(ctx context.Context, acc account.Account, programID int64) (Subscription, error)
		Unsubscribe(ctx context.Context, acc account.Account, programID int64) error
	}

	service struct {
		repo   Repository
		files  core.FileStore
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, files core.FileStore, logger core.Logger) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(files, "files"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &service{repo: repo, files: files, logger: logger}
}

func (svc *service) SendMessage(ctx context.Context, sender account.Account, nm NewMessage) (Message, error) {
	if nm.ReceiverID == sender.ID {
		return Message{}, core.NewFieldValidationError("receiver_id", ErrSelfMessage)
	}
	msg, err := svc.repo.SendMessage(ctx, sender.ID, nm.ReceiverID, nm.Content)
	if err != nil {
		if errors.Cause(err) == ErrUnknownReceiver {
			return Message{}, core.NewFieldValidationError("receiver_id", ErrUnknownReceiver)
		}
		return Message{}, errors.Wrap(err, "sending message")
	}
	return msg, nil
}

func (svc *service) Messages(ctx context.Context, acc account.Account) ([]Message, error) {
	return svc.repo.Messages(ctx, acc.ID)
}

func (svc *service) Publish(ctx context.Context, owner account.Account, nc NewLibraryContent, upload *core.Upload) (LibraryContent, error) {
	var stored *core.StoredFile
	if upload != nil {
		file, err := svc.files.Save(*upload)
		if err != nil {
			if err == core.ErrFileTypeNotAllowed || err == core.ErrFileTooLarge {
				return LibraryContent{}, core.NewFieldValidationError("file", err)
			}
			return LibraryContent{}, errors.Wrap(err, "saving upload")
		}
		stored = &file
	}

	content, err := svc.repo.PublishLibraryContent(ctx, owner.ID, nc.Title, stored)
	if err != nil {
		if stored != nil {
			svc.removeFile(stored.Path)
		}
		return LibraryContent{}, errors.Wrap(err, "publishing library content")
	}
	return content, nil
}

func (svc *service) SearchLibrary(ctx context.Context, filter LibraryFilter) ([]LibraryContent, error) {
	filter.Clean()
	return svc.repo.SearchLibrary(ctx, filter)
}

// RemoveLibraryContent deletes the record, then its file. Only the owner may remove it.
func (svc *service) RemoveLibraryContent(ctx context.Context, owner account.Account, id int64) error {
	content, err := svc.repo.GetLibraryContent(ctx, id)
	if err != nil {
		return err
	}
	if content.OwnerID != owner.ID {
		return core.ErrPermissionDenied
	}
	if err = svc.repo.DeleteLibraryContent(ctx, id); err != nil {
		return err
	}
	if content.FilePath != "" {
		svc.removeFile(content.FilePath)
	}
	return nil
}

func (svc *service) removeFile(path string) {
	if err := svc.files.Remove(path); err != nil {
		svc.logger.Error(fmt.Sprintf("removing file %s", path), err)
	}
}

func (svc *service) CreateProgram(ctx context.Context, creator account.Account, np NewProgram) (Program, error) {
	return svc.repo.CreateProgram(ctx, creator.ID, np.Name)
}

func (svc *service) Programs(ctx context.Context) ([]Program, error) {
	return svc.repo.Programs(ctx)
}

func (svc *service) Subscribe(ctx context.Context, acc account.Account, programID int64) (Subscription, error) {
	if _, err := svc.repo.GetProgram(ctx, programID); err != nil {
		return Subscription{}, err
	}
	sub, err := svc.repo.SubscribeToProgram(ctx, acc.ID, programID)
	if err != nil {
		if errors.Cause(err) == ErrAlreadySubscribed {
			return Subscription{}, core.NewValidationError(ErrAlreadySubscribed)
		}
		return Subscription{}, errors.Wrap(err, "subscribing to program")
	}
	return sub, nil
}

func (svc *service) Unsubscribe(ctx context.Context, acc account.Account, programID int64) error {
	return svc.repo.Unsubscribe(ctx, acc.ID, programID)
}
