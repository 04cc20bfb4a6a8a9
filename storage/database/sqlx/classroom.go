package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/storage/database/crud"
	"github.com/trezcool/darasa/storage/database/models"
)

const (
	classSelect = `SELECT c."id", t."account_id" AS "teacher_account_id", c."name", c."created_at"
FROM "classes" c JOIN "teachers" t ON t."id"=c."teacher_id"`

	submissionSelect = `SELECT s."id", s."assignment_id", st."account_id" AS "student_account_id", s."file_path", s."file_type", s."submitted_at"
FROM "submissions" s JOIN "students" st ON st."id"=s."student_id"`

	classSubmissionFiles = `SELECT s."file_path" FROM "submissions" s
JOIN "assignments" a ON a."id"=s."assignment_id" WHERE a."class_id"=$1`
)

// classRow is a class with the account ID of its teacher.
type classRow struct {
	ID               int64     `db:"id"`
	TeacherAccountID int64     `db:"teacher_account_id"`
	Name             string    `db:"name"`
	CreatedAt        time.Time `db:"created_at"`
}

// submissionRow is a submission with the account ID of its student.
type submissionRow struct {
	ID               int64     `db:"id"`
	AssignmentID     int64     `db:"assignment_id"`
	StudentAccountID int64     `db:"student_account_id"`
	FilePath         string    `db:"file_path"`
	FileType         string    `db:"file_type"`
	SubmittedAt      time.Time `db:"submitted_at"`
}

type classroomRepository struct {
	db          *crud.Facade
	classes     classTable
	students    studentTable
	teachers    teacherTable
	posts       postTable
	assignments assignTable
}

var _ classroom.Repository = (*classroomRepository)(nil) // interface compliance check

func NewClassroomRepository(db *sqlx.DB) classroom.Repository {
	f := crud.New(db)
	return &classroomRepository{
		db:          f,
		classes:     classesOf(f),
		students:    studentsOf(f),
		teachers:    teachersOf(f),
		posts:       postsOf(f),
		assignments: assignmentsOf(f),
	}
}

// trapErr maps façade errors to classroom errors.
func (repo classroomRepository) trapErr(err error, msg string) error {
	if errors.Is(err, crud.ErrNotFound) ||
		crud.IsForeignKeyViolation(err, models.PostsClassFKey) ||
		crud.IsForeignKeyViolation(err, models.AssignmentsClassFKey) ||
		crud.IsForeignKeyViolation(err, models.SubmissionsAssignFKey) {
		return classroom.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func unboilClass(c classRow) classroom.Class {
	return classroom.Class{ID: c.ID, TeacherAccountID: c.TeacherAccountID, Name: c.Name, CreatedAt: c.CreatedAt}
}

func unboilStudent(s *models.Student) classroom.Student {
	return classroom.Student{
		AccountID:   s.AccountID,
		StudentCode: s.StudentCode.String,
		ClassID:     s.ClassID.Int64,
		Grade:       s.Grade.Int,
	}
}

func unboilPost(p models.Post) classroom.Post {
	return classroom.Post{
		ID:             p.ID,
		ClassID:        p.ClassID,
		AuthorID:       p.AuthorID,
		Content:        p.Content,
		AttachmentPath: p.AttachmentPath.String,
		CreatedAt:      p.CreatedAt,
	}
}

func unboilAssignment(a models.Assignment) classroom.Assignment {
	return classroom.Assignment{
		ID:          a.ID,
		ClassID:     a.ClassID,
		Title:       a.Title,
		Description: a.Description,
		CreatedAt:   a.CreatedAt,
	}
}

func unboilSubmission(s submissionRow) classroom.Submission {
	return classroom.Submission{
		ID:               s.ID,
		AssignmentID:     s.AssignmentID,
		StudentAccountID: s.StudentAccountID,
		FilePath:         s.FilePath,
		FileType:         s.FileType,
		SubmittedAt:      s.SubmittedAt,
	}
}

func (repo classroomRepository) selectClasses(ctx context.Context, where string, args ...interface{}) ([]classroom.Class, error) {
	var rows []classRow
	if err := repo.db.Select(ctx, &rows, classSelect+" WHERE "+where+` ORDER BY c."name" ASC`, args...); err != nil {
		return nil, err
	}
	classes := make([]classroom.Class, 0, len(rows))
	for _, c := range rows {
		classes = append(classes, unboilClass(c))
	}
	return classes, nil
}

func (repo classroomRepository) CreateClass(ctx context.Context, teacherAccountID int64, name string) (classroom.Class, error) {
	var created classroom.Class
	err := repo.db.Transaction(ctx, func(tf *crud.Facade) error {
		teacher, err := teachersOf(tf).First(ctx, models.TeacherFields{AccountID: null.Int64From(teacherAccountID)})
		if err != nil {
			if errors.Is(err, crud.ErrNotFound) {
				return classroom.ErrNoTeacherRecord
			}
			return err
		}
		class, err := classesOf(tf).Create(ctx, models.ClassFields{
			TeacherID: null.Int64From(teacher.ID),
			Name:      null.StringFrom(name),
		})
		if err != nil {
			return err
		}
		created = classroom.Class{ID: class.ID, TeacherAccountID: teacherAccountID, Name: class.Name, CreatedAt: class.CreatedAt}
		return nil
	})
	if err != nil {
		if errors.Cause(err) == classroom.ErrNoTeacherRecord {
			return classroom.Class{}, classroom.ErrNoTeacherRecord
		}
		return classroom.Class{}, errors.Wrap(err, "creating class")
	}
	return created, nil
}

func (repo classroomRepository) GetClass(ctx context.Context, id int64) (classroom.Class, error) {
	classes, err := repo.selectClasses(ctx, `c."id"=$1`, id)
	if err != nil {
		return classroom.Class{}, errors.Wrap(err, "getting class")
	}
	if len(classes) == 0 {
		return classroom.Class{}, classroom.ErrNotFound
	}
	return classes[0], nil
}

func (repo classroomRepository) ClassesByTeacher(ctx context.Context, teacherAccountID int64) ([]classroom.Class, error) {
	classes, err := repo.selectClasses(ctx, `t."account_id"=$1`, teacherAccountID)
	if err != nil {
		return nil, errors.Wrap(err, "querying teacher classes")
	}
	return classes, nil
}

func (repo classroomRepository) RenameClass(ctx context.Context, id int64, name string) (classroom.Class, error) {
	if _, err := repo.classes.Update(ctx, id, models.ClassFields{Name: null.StringFrom(name)}); err != nil {
		return classroom.Class{}, repo.trapErr(err, "renaming class")
	}
	return repo.GetClass(ctx, id)
}

// DeleteClass relies on the schema: posts, assignments & submissions are deleted and students unassigned
// (ON DELETE CASCADE / SET NULL).
func (repo classroomRepository) DeleteClass(ctx context.Context, id int64) ([]string, error) {
	var attachments []string
	err := repo.db.Transaction(ctx, func(tf *crud.Facade) error {
		posts, err := postsOf(tf).Read(ctx, models.PostFields{ClassID: null.Int64From(id)})
		if err != nil {
			return err
		}
		for _, p := range posts {
			if p.AttachmentPath.Valid && p.AttachmentPath.String != "" {
				attachments = append(attachments, p.AttachmentPath.String)
			}
		}

		var submitted []string
		if err = tf.Select(ctx, &submitted, classSubmissionFiles, id); err != nil {
			return err
		}
		attachments = append(attachments, submitted...)
		return classesOf(tf).Delete(ctx, id)
	})
	if err != nil {
		return nil, repo.trapErr(err, "deleting class")
	}
	return attachments, nil
}

func (repo classroomRepository) GetStudent(ctx context.Context, accountID int64) (classroom.Student, error) {
	student, err := repo.students.First(ctx, models.StudentFields{AccountID: null.Int64From(accountID)})
	if err != nil {
		return classroom.Student{}, repo.trapErr(err, "getting student")
	}
	return unboilStudent(student), nil
}

func (repo classroomRepository) AssignStudent(ctx context.Context, classID int64, studentCode string) (classroom.Student, error) {
	var assigned *models.Student
	err := repo.db.Transaction(ctx, func(tf *crud.Facade) error {
		if _, err := classesOf(tf).Get(ctx, classID); err != nil {
			return err
		}
		students := studentsOf(tf)
		student, err := students.First(ctx, models.StudentFields{StudentCode: null.StringFrom(studentCode)})
		if err != nil {
			if errors.Is(err, crud.ErrNotFound) {
				return classroom.ErrUnknownStudent
			}
			return err
		}
		cid := null.Int64From(classID)
		assigned, err = students.Update(ctx, student.ID, models.StudentFields{ClassID: &cid})
		return err
	})
	if err != nil {
		if errors.Cause(err) == classroom.ErrUnknownStudent {
			return classroom.Student{}, classroom.ErrUnknownStudent
		}
		return classroom.Student{}, repo.trapErr(err, "assigning student")
	}
	return unboilStudent(assigned), nil
}

func (repo classroomRepository) CreatePost(ctx context.Context, classID, authorID int64, content string, attachment *core.StoredFile) (classroom.Post, error) {
	fields := models.PostFields{
		ClassID:  null.Int64From(classID),
		AuthorID: null.Int64From(authorID),
		Content:  null.StringFrom(content),
	}
	if attachment != nil {
		fields.AttachmentPath = null.StringFrom(attachment.Path)
	}
	post, err := repo.posts.Create(ctx, fields)
	if err != nil {
		return classroom.Post{}, repo.trapErr(err, "creating post")
	}
	return unboilPost(*post), nil
}

func (repo classroomRepository) GetPost(ctx context.Context, id int64) (classroom.Post, error) {
	post, err := repo.posts.Get(ctx, id)
	if err != nil {
		return classroom.Post{}, repo.trapErr(err, "getting post")
	}
	return unboilPost(*post), nil
}

func (repo classroomRepository) Posts(ctx context.Context, classID int64) ([]classroom.Post, error) {
	rows, err := repo.posts.Read(ctx, models.PostFields{ClassID: null.Int64From(classID)}, core.DBOrdering{Field: "id"})
	if err != nil {
		return nil, errors.Wrap(err, "querying posts")
	}
	posts := make([]classroom.Post, 0, len(rows))
	for _, p := range rows {
		posts = append(posts, unboilPost(p))
	}
	return posts, nil
}

func (repo classroomRepository) DeletePost(ctx context.Context, id int64) error {
	if err := repo.posts.Delete(ctx, id); err != nil {
		return repo.trapErr(err, "deleting post")
	}
	return nil
}

func (repo classroomRepository) CreateAssignment(ctx context.Context, classID int64, na classroom.NewAssignment) (classroom.Assignment, error) {
	assignment, err := repo.assignments.Create(ctx, models.AssignmentFields{
		ClassID:     null.Int64From(classID),
		Title:       null.StringFrom(na.Title),
		Description: null.StringFrom(na.Description),
	})
	if err != nil {
		return classroom.Assignment{}, repo.trapErr(err, "creating assignment")
	}
	return unboilAssignment(*assignment), nil
}

func (repo classroomRepository) GetAssignment(ctx context.Context, id int64) (classroom.Assignment, error) {
	assignment, err := repo.assignments.Get(ctx, id)
	if err != nil {
		return classroom.Assignment{}, repo.trapErr(err, "getting assignment")
	}
	return unboilAssignment(*assignment), nil
}

func (repo classroomRepository) Assignments(ctx context.Context, classID int64) ([]classroom.Assignment, error) {
	rows, err := repo.assignments.Read(ctx, models.AssignmentFields{ClassID: null.Int64From(classID)}, core.DBOrdering{Field: "id"})
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	assignments := make([]classroom.Assignment, 0, len(rows))
	for _, a := range rows {
		assignments = append(assignments, unboilAssignment(a))
	}
	return assignments, nil
}

func (repo classroomRepository) Submit(ctx context.Context, assignmentID, studentAccountID int64, file core.StoredFile) (classroom.Submission, string, error) {
	var (
		saved    *models.Submission
		replaced string
	)
	err := repo.db.Transaction(ctx, func(tf *crud.Facade) error {
		student, err := studentsOf(tf).First(ctx, models.StudentFields{AccountID: null.Int64From(studentAccountID)})
		if err != nil {
			if errors.Is(err, crud.ErrNotFound) {
				return classroom.ErrUnknownStudent
			}
			return err
		}

		submissions := submissionsOf(tf)
		fields := models.SubmissionFields{
			AssignmentID: null.Int64From(assignmentID),
			StudentID:    null.Int64From(student.ID),
		}
		previous, err := submissions.First(ctx, fields)
		switch {
		case err == nil:
			replaced = previous.FilePath
			saved, err = submissions.Update(ctx, previous.ID, models.SubmissionFields{
				FilePath:    null.StringFrom(file.Path),
				FileType:    null.StringFrom(file.Type),
				SubmittedAt: null.TimeFrom(time.Now().UTC()),
			})
		case errors.Is(err, crud.ErrNotFound):
			fields.FilePath = null.StringFrom(file.Path)
			fields.FileType = null.StringFrom(file.Type)
			saved, err = submissions.Create(ctx, fields)
		}
		return err
	})
	if err != nil {
		if errors.Cause(err) == classroom.ErrUnknownStudent {
			return classroom.Submission{}, "", classroom.ErrUnknownStudent
		}
		return classroom.Submission{}, "", repo.trapErr(err, "saving submission")
	}

	return classroom.Submission{
		ID:               saved.ID,
		AssignmentID:     saved.AssignmentID,
		StudentAccountID: studentAccountID,
		FilePath:         saved.FilePath,
		FileType:         saved.FileType,
		SubmittedAt:      saved.SubmittedAt,
	}, replaced, nil
}

func (repo classroomRepository) Submissions(ctx context.Context, assignmentID int64) ([]classroom.Submission, error) {
	var rows []submissionRow
	query := submissionSelect + ` WHERE s."assignment_id"=$1 ORDER BY s."submitted_at" ASC, s."id" ASC`
	if err := repo.db.Select(ctx, &rows, query, assignmentID); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subs := make([]classroom.Submission, 0, len(rows))
	for _, s := range rows {
		subs = append(subs, unboilSubmission(s))
	}
	return subs, nil
}
