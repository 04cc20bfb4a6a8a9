package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/community"
)

type communityRepository struct {
	db       *communityTables
	accounts *accountTable
}

var _ community.Repository = (*communityRepository)(nil)

func NewCommunityRepository(db *DB) community.Repository {
	return &communityRepository{db: db.community, accounts: db.account}
}

func (repo *communityRepository) accountExists(id int64) bool {
	repo.accounts.RLock()
	defer repo.accounts.RUnlock()
	_, ok := repo.accounts.table[id]
	return ok
}

func (repo *communityRepository) nextPK() int64 {
	repo.db.pkCount++
	return repo.db.pkCount
}

func (repo *communityRepository) SendMessage(_ context.Context, senderID, receiverID int64, content string) (community.Message, error) {
	if !repo.accountExists(receiverID) {
		return community.Message{}, community.ErrUnknownReceiver
	}

	repo.db.Lock()
	defer repo.db.Unlock()

	msg := community.Message{
		ID:         repo.nextPK(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Status:     community.StatusSent,
		SentAt:     nowFunc().UTC(),
	}
	repo.db.messages[msg.ID] = &msg
	return msg, nil
}

func (repo *communityRepository) Messages(_ context.Context, accountID int64) ([]community.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	msgs := make([]community.Message, 0)
	for _, msg := range repo.db.messages {
		if msg.SenderID == accountID || msg.ReceiverID == accountID {
			msgs = append(msgs, *msg)
		}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID > msgs[j].ID })
	return msgs, nil
}

func (repo *communityRepository) PublishLibraryContent(_ context.Context, ownerID int64, title string, file *core.StoredFile) (community.LibraryContent, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	content := community.LibraryContent{
		ID:        repo.nextPK(),
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: nowFunc().UTC(),
	}
	if file != nil {
		content.FilePath = file.Path
		content.FileType = file.Type
	}
	repo.db.library[content.ID] = &content
	return content, nil
}

func (repo *communityRepository) GetLibraryContent(_ context.Context, id int64) (community.LibraryContent, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if content, ok := repo.db.library[id]; ok {
		return *content, nil
	}
	return community.LibraryContent{}, community.ErrNotFound
}

func (repo *communityRepository) SearchLibrary(_ context.Context, filter community.LibraryFilter) ([]community.LibraryContent, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	title := strings.ToLower(filter.Title)
	contents := make([]community.LibraryContent, 0)
	for _, c := range repo.db.library {
		if filter.OwnerID != 0 && c.OwnerID != filter.OwnerID {
			continue
		}
		if title != "" && !strings.Contains(strings.ToLower(c.Title), title) {
			continue
		}
		contents = append(contents, *c)
	}
	sort.Slice(contents, func(i, j int) bool { return contents[i].ID < contents[j].ID })
	return contents, nil
}

func (repo *communityRepository) DeleteLibraryContent(_ context.Context, id int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.library[id]; !ok {
		return community.ErrNotFound
	}
	delete(repo.db.library, id)
	return nil
}

func (repo *communityRepository) CreateProgram(_ context.Context, creatorID int64, name string) (community.Program, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	prog := community.Program{ID: repo.nextPK(), CreatorID: creatorID, Name: name, CreatedAt: nowFunc().UTC()}
	repo.db.programs[prog.ID] = &prog
	return prog, nil
}

func (repo *communityRepository) GetProgram(_ context.Context, id int64) (community.Program, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if prog, ok := repo.db.programs[id]; ok {
		return *prog, nil
	}
	return community.Program{}, community.ErrNotFound
}

func (repo *communityRepository) Programs(_ context.Context) ([]community.Program, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	progs := make([]community.Program, 0, len(repo.db.programs))
	for _, p := range repo.db.programs {
		progs = append(progs, *p)
	}
	sort.Slice(progs, func(i, j int) bool { return progs[i].Name < progs[j].Name })
	return progs, nil
}

func (repo *communityRepository) SubscribeToProgram(_ context.Context, accountID, programID int64) (community.Subscription, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.programs[programID]; !ok {
		return community.Subscription{}, community.ErrNotFound
	}
	for _, sub := range repo.db.subscriptions {
		if sub.AccountID == accountID && sub.ProgramID == programID {
			return community.Subscription{}, community.ErrAlreadySubscribed
		}
	}
	sub := community.Subscription{
		ID:           repo.nextPK(),
		AccountID:    accountID,
		ProgramID:    programID,
		SubscribedAt: nowFunc().UTC(),
	}
	repo.db.subscriptions[sub.ID] = &sub
	return sub, nil
}

func (repo *communityRepository) Unsubscribe(_ context.Context, accountID, programID int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, sub := range repo.db.subscriptions {
		if sub.AccountID == accountID && sub.ProgramID == programID {
			delete(repo.db.subscriptions, id)
			return nil
		}
	}
	return community.ErrNotSubscribed
}
