package sqlxrepos

import (
	"context"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/community"
	"github.com/trezcool/darasa/storage/database/crud"
	"github.com/trezcool/darasa/storage/database/models"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type communityRepository struct {
	db            *crud.Facade
	messages      messageTable
	library       libraryTable
	programs      programTable
	subscriptions subTable
}

var _ community.Repository = (*communityRepository)(nil) // interface compliance check

func NewCommunityRepository(db *sqlx.DB) community.Repository {
	f := crud.New(db)
	return &communityRepository{
		db:            f,
		messages:      messagesOf(f),
		library:       libraryOf(f),
		programs:      programsOf(f),
		subscriptions: subscriptionsOf(f),
	}
}

// trapErr maps façade errors to community errors.
func (repo communityRepository) trapErr(err error, msg string) error {
	switch {
	case errors.Is(err, crud.ErrNotFound):
		return community.ErrNotFound
	case crud.IsForeignKeyViolation(err, models.MessagesReceiverFKey):
		return community.ErrUnknownReceiver
	case crud.IsForeignKeyViolation(err, models.SubscriptionsProgramFKey):
		return community.ErrNotFound
	case crud.IsUniqueViolation(err, models.SubscriptionsAccountKey):
		return community.ErrAlreadySubscribed
	}
	return errors.Wrap(err, msg)
}

func unboilMessage(m models.Message) community.Message {
	return community.Message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		Status:     m.Status,
		SentAt:     m.SentAt,
	}
}

func unboilLibraryContent(c models.LibraryContent) community.LibraryContent {
	return community.LibraryContent{
		ID:        c.ID,
		OwnerID:   c.OwnerID,
		Title:     c.Title,
		FilePath:  c.FilePath.String,
		FileType:  c.FileType.String,
		CreatedAt: c.CreatedAt,
	}
}

func unboilProgram(p models.Program) community.Program {
	return community.Program{ID: p.ID, CreatorID: p.CreatorID, Name: p.Name, CreatedAt: p.CreatedAt}
}

func (repo communityRepository) SendMessage(ctx context.Context, senderID, receiverID int64, content string) (community.Message, error) {
	msg, err := repo.messages.Create(ctx, models.MessageFields{
		SenderID:   null.Int64From(senderID),
		ReceiverID: null.Int64From(receiverID),
		Content:    null.StringFrom(content),
		Status:     null.StringFrom(models.MessageSent),
	})
	if err != nil {
		return community.Message{}, repo.trapErr(err, "sending message")
	}
	return unboilMessage(*msg), nil
}

func (repo communityRepository) Messages(ctx context.Context, accountID int64) ([]community.Message, error) {
	var rows []models.Message
	query := `SELECT * FROM "messages" WHERE "sender_id"=$1 OR "receiver_id"=$1 ORDER BY "sent_at" DESC, "id" DESC`
	if err := repo.db.Select(ctx, &rows, query, accountID); err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}

	msgs := make([]community.Message, 0, len(rows))
	for _, m := range rows {
		msgs = append(msgs, unboilMessage(m))
	}
	return msgs, nil
}

func (repo communityRepository) PublishLibraryContent(ctx context.Context, ownerID int64, title string, file *core.StoredFile) (community.LibraryContent, error) {
	fields := models.LibraryContentFields{OwnerID: null.Int64From(ownerID), Title: null.StringFrom(title)}
	if file != nil {
		fields.FilePath = null.StringFrom(file.Path)
		fields.FileType = null.StringFrom(file.Type)
	}
	content, err := repo.library.Create(ctx, fields)
	if err != nil {
		return community.LibraryContent{}, repo.trapErr(err, "publishing library content")
	}
	return unboilLibraryContent(*content), nil
}

func (repo communityRepository) GetLibraryContent(ctx context.Context, id int64) (community.LibraryContent, error) {
	content, err := repo.library.Get(ctx, id)
	if err != nil {
		return community.LibraryContent{}, repo.trapErr(err, "getting library content")
	}
	return unboilLibraryContent(*content), nil
}

func (repo communityRepository) SearchLibrary(ctx context.Context, filter community.LibraryFilter) ([]community.LibraryContent, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Title != "" {
		args = append(args, "%"+likeEscaper.Replace(filter.Title)+"%")
		conds = append(conds, `"title" ILIKE $`+strconv.Itoa(len(args)))
	}
	if filter.OwnerID != 0 {
		args = append(args, filter.OwnerID)
		conds = append(conds, `"owner_id"=$`+strconv.Itoa(len(args)))
	}

	query := `SELECT * FROM "library_contents"`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY "id" ASC`

	var rows []models.LibraryContent
	if err := repo.db.Select(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "searching library")
	}
	contents := make([]community.LibraryContent, 0, len(rows))
	for _, c := range rows {
		contents = append(contents, unboilLibraryContent(c))
	}
	return contents, nil
}

func (repo communityRepository) DeleteLibraryContent(ctx context.Context, id int64) error {
	if err := repo.library.Delete(ctx, id); err != nil {
		return repo.trapErr(err, "deleting library content")
	}
	return nil
}

func (repo communityRepository) CreateProgram(ctx context.Context, creatorID int64, name string) (community.Program, error) {
	prog, err := repo.programs.Create(ctx, models.ProgramFields{
		CreatorID: null.Int64From(creatorID),
		Name:      null.StringFrom(name),
	})
	if err != nil {
		return community.Program{}, repo.trapErr(err, "creating program")
	}
	return unboilProgram(*prog), nil
}

func (repo communityRepository) GetProgram(ctx context.Context, id int64) (community.Program, error) {
	prog, err := repo.programs.Get(ctx, id)
	if err != nil {
		return community.Program{}, repo.trapErr(err, "getting program")
	}
	return unboilProgram(*prog), nil
}

func (repo communityRepository) Programs(ctx context.Context) ([]community.Program, error) {
	rows, err := repo.programs.Read(ctx, models.ProgramFields{}, core.DBOrdering{Field: "name", Ascending: true})
	if err != nil {
		return nil, errors.Wrap(err, "querying programs")
	}
	progs := make([]community.Program, 0, len(rows))
	for _, p := range rows {
		progs = append(progs, unboilProgram(p))
	}
	return progs, nil
}

func (repo communityRepository) SubscribeToProgram(ctx context.Context, accountID, programID int64) (community.Subscription, error) {
	sub, err := repo.subscriptions.Create(ctx, models.SubscriptionFields{
		AccountID: null.Int64From(accountID),
		ProgramID: null.Int64From(programID),
	})
	if err != nil {
		return community.Subscription{}, repo.trapErr(err, "subscribing to program")
	}
	return community.Subscription{
		ID:           sub.ID,
		AccountID:    sub.AccountID,
		ProgramID:    sub.ProgramID,
		SubscribedAt: sub.SubscribedAt,
	}, nil
}

func (repo communityRepository) Unsubscribe(ctx context.Context, accountID, programID int64) error {
	err := repo.db.Transaction(ctx, func(tf *crud.Facade) error {
		subs := subscriptionsOf(tf)
		sub, err := subs.First(ctx, models.SubscriptionFields{
			AccountID: null.Int64From(accountID),
			ProgramID: null.Int64From(programID),
		})
		if err != nil {
			return err
		}
		return subs.Delete(ctx, sub.ID)
	})
	if err != nil {
		if errors.Is(err, crud.ErrNotFound) {
			return community.ErrNotSubscribed
		}
		return errors.Wrap(err, "unsubscribing from program")
	}
	return nil
}
