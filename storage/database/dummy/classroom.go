package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
	"github.com/trezcool/darasa/core/classroom"
)

type classroomRepository struct {
	db       *classroomTables
	accounts *accountTable
}

var _ classroom.Repository = (*classroomRepository)(nil)

func NewClassroomRepository(db *DB) classroom.Repository {
	return &classroomRepository{db: db.classroom, accounts: db.account}
}

func (repo *classroomRepository) nextPK() int64 {
	repo.db.pkCount++
	return repo.db.pkCount
}

// student returns the student profile of an account; the caller holds the classroom lock.
func (repo *classroomRepository) student(accountID int64) (classroom.Student, bool) {
	repo.accounts.RLock()
	defer repo.accounts.RUnlock()

	acc, ok := repo.accounts.table[accountID]
	if !ok || acc.Role != account.RoleStudent {
		return classroom.Student{}, false
	}
	profile := repo.accounts.profiles[accountID]
	student := classroom.Student{AccountID: accountID, StudentCode: profile.StudentCode, Grade: profile.Grade}
	if s, ok := repo.db.students[accountID]; ok {
		student.ClassID = s.ClassID
	}
	return student, true
}

func (repo *classroomRepository) CreateClass(_ context.Context, teacherAccountID int64, name string) (classroom.Class, error) {
	repo.accounts.RLock()
	acc, ok := repo.accounts.table[teacherAccountID]
	repo.accounts.RUnlock()
	if !ok || acc.Role != account.RoleTeacher {
		return classroom.Class{}, classroom.ErrNoTeacherRecord
	}

	repo.db.Lock()
	defer repo.db.Unlock()

	class := classroom.Class{
		ID:               repo.nextPK(),
		TeacherAccountID: teacherAccountID,
		Name:             name,
		CreatedAt:        nowFunc().UTC(),
	}
	repo.db.classes[class.ID] = &class
	return class, nil
}

func (repo *classroomRepository) GetClass(_ context.Context, id int64) (classroom.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if class, ok := repo.db.classes[id]; ok {
		return *class, nil
	}
	return classroom.Class{}, classroom.ErrNotFound
}

func (repo *classroomRepository) ClassesByTeacher(_ context.Context, teacherAccountID int64) ([]classroom.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	classes := make([]classroom.Class, 0)
	for _, c := range repo.db.classes {
		if c.TeacherAccountID == teacherAccountID {
			classes = append(classes, *c)
		}
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })
	return classes, nil
}

func (repo *classroomRepository) RenameClass(_ context.Context, id int64, name string) (classroom.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	class, ok := repo.db.classes[id]
	if !ok {
		return classroom.Class{}, classroom.ErrNotFound
	}
	class.Name = name
	return *class, nil
}

func (repo *classroomRepository) DeleteClass(_ context.Context, id int64) ([]string, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.classes[id]; !ok {
		return nil, classroom.ErrNotFound
	}

	var attachments []string
	for pid, post := range repo.db.posts {
		if post.ClassID == id {
			if post.AttachmentPath != "" {
				attachments = append(attachments, post.AttachmentPath)
			}
			delete(repo.db.posts, pid)
		}
	}
	for aid, a := range repo.db.assignments {
		if a.ClassID != id {
			continue
		}
		for sid, sub := range repo.db.submissions {
			if sub.AssignmentID == aid {
				attachments = append(attachments, sub.FilePath)
				delete(repo.db.submissions, sid)
			}
		}
		delete(repo.db.assignments, aid)
	}
	for aid, s := range repo.db.students {
		if s.ClassID == id {
			delete(repo.db.students, aid)
		}
	}
	delete(repo.db.classes, id)
	return attachments, nil
}

func (repo *classroomRepository) GetStudent(_ context.Context, accountID int64) (classroom.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if student, ok := repo.student(accountID); ok {
		return student, nil
	}
	return classroom.Student{}, classroom.ErrNotFound
}

func (repo *classroomRepository) AssignStudent(_ context.Context, classID int64, studentCode string) (classroom.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.classes[classID]; !ok {
		return classroom.Student{}, classroom.ErrNotFound
	}

	repo.accounts.RLock()
	var accountID int64
	for id, p := range repo.accounts.profiles {
		if p.StudentCode == studentCode && repo.accounts.table[id].Role == account.RoleStudent {
			accountID = id
			break
		}
	}
	repo.accounts.RUnlock()
	if accountID == 0 {
		return classroom.Student{}, classroom.ErrUnknownStudent
	}

	repo.db.students[accountID] = &classroom.Student{AccountID: accountID, ClassID: classID}
	student, _ := repo.student(accountID)
	return student, nil
}

func (repo *classroomRepository) CreatePost(_ context.Context, classID, authorID int64, content string, attachment *core.StoredFile) (classroom.Post, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.classes[classID]; !ok {
		return classroom.Post{}, classroom.ErrNotFound
	}
	post := classroom.Post{
		ID:        repo.nextPK(),
		ClassID:   classID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: nowFunc().UTC(),
	}
	if attachment != nil {
		post.AttachmentPath = attachment.Path
	}
	repo.db.posts[post.ID] = &post
	return post, nil
}

func (repo *classroomRepository) GetPost(_ context.Context, id int64) (classroom.Post, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if post, ok := repo.db.posts[id]; ok {
		return *post, nil
	}
	return classroom.Post{}, classroom.ErrNotFound
}

func (repo *classroomRepository) Posts(_ context.Context, classID int64) ([]classroom.Post, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	posts := make([]classroom.Post, 0)
	for _, p := range repo.db.posts {
		if p.ClassID == classID {
			posts = append(posts, *p)
		}
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID > posts[j].ID })
	return posts, nil
}

func (repo *classroomRepository) DeletePost(_ context.Context, id int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.posts[id]; !ok {
		return classroom.ErrNotFound
	}
	delete(repo.db.posts, id)
	return nil
}

func (repo *classroomRepository) CreateAssignment(_ context.Context, classID int64, na classroom.NewAssignment) (classroom.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.classes[classID]; !ok {
		return classroom.Assignment{}, classroom.ErrNotFound
	}
	assignment := classroom.Assignment{
		ID:          repo.nextPK(),
		ClassID:     classID,
		Title:       na.Title,
		Description: na.Description,
		CreatedAt:   nowFunc().UTC(),
	}
	repo.db.assignments[assignment.ID] = &assignment
	return assignment, nil
}

func (repo *classroomRepository) GetAssignment(_ context.Context, id int64) (classroom.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.assignments[id]; ok {
		return *a, nil
	}
	return classroom.Assignment{}, classroom.ErrNotFound
}

func (repo *classroomRepository) Assignments(_ context.Context, classID int64) ([]classroom.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	assignments := make([]classroom.Assignment, 0)
	for _, a := range repo.db.assignments {
		if a.ClassID == classID {
			assignments = append(assignments, *a)
		}
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].ID > assignments[j].ID })
	return assignments, nil
}

func (repo *classroomRepository) Submit(_ context.Context, assignmentID, studentAccountID int64, file core.StoredFile) (classroom.Submission, string, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.student(studentAccountID); !ok {
		return classroom.Submission{}, "", classroom.ErrUnknownStudent
	}
	if _, ok := repo.db.assignments[assignmentID]; !ok {
		return classroom.Submission{}, "", classroom.ErrNotFound
	}

	for _, sub := range repo.db.submissions {
		if sub.AssignmentID == assignmentID && sub.StudentAccountID == studentAccountID {
			replaced := sub.FilePath
			sub.FilePath = file.Path
			sub.FileType = file.Type
			sub.SubmittedAt = nowFunc().UTC()
			return *sub, replaced, nil
		}
	}
	sub := classroom.Submission{
		ID:               repo.nextPK(),
		AssignmentID:     assignmentID,
		StudentAccountID: studentAccountID,
		FilePath:         file.Path,
		FileType:         file.Type,
		SubmittedAt:      nowFunc().UTC(),
	}
	repo.db.submissions[sub.ID] = &sub
	return sub, "", nil
}

func (repo *classroomRepository) Submissions(_ context.Context, assignmentID int64) ([]classroom.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subs := make([]classroom.Submission, 0)
	for _, s := range repo.db.submissions {
		if s.AssignmentID == assignmentID {
			subs = append(subs, *s)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}
