package classroom

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
	ErrNotFound        = errors.New("not found")
	ErrUnknownStudent  = errors.New("no student with this code")
	ErrNoTeacherRecord = errors.New("teacher profile not found")
	ErrFileRequired    = errors.New("a file is required")
)

type (
	Repository interface {
		// CreateClass returns ErrNoTeacherRecord when the account has no teacher profile.
		CreateClass(ctx context.Context, teacherAccountID int64, name string) (Class, error)
		GetClass(ctx context.Context, id int64) (Class, error)
		ClassesByTeacher(ctx context.Context, teacherAccountID int64) ([]Class, error)
		RenameClass(ctx context.Context, id int64, name string) (Class, error)
		// DeleteClass deletes the class with its posts, assignments & submissions and unassigns its students,
		// atomically. It returns the paths of the files attached to what was deleted.
		DeleteClass(ctx context.Context, id int64) ([]string, error)

		GetStudent(ctx context.Context, accountID int64) (Student, error)
		// AssignStudent returns ErrUnknownStudent when no student has studentCode.
		AssignStudent(ctx context.Context, classID int64, studentCode string) (Student, error)

		CreatePost(ctx context.Context, classID, authorID int64, content string, attachment *core.StoredFile) (Post, error)
		GetPost(ctx context.Context, id int64) (Post, error)
		// Posts returns the posts of a class, newest first.
		Posts(ctx context.Context, classID int64) ([]Post, error)
		DeletePost(ctx context.Context, id int64) error

		CreateAssignment(ctx context.Context, classID int64, na NewAssignment) (Assignment, error)
		GetAssignment(ctx context.Context, id int64) (Assignment, error)
		// Assignments returns the assignments of a class, newest first.
		Assignments(ctx context.Context, classID int64) ([]Assignment, error)
		// Submit records file as the submission of a student, replacing the previous one whose path is returned.
		// It returns ErrUnknownStudent when the account has no student profile.
		Submit(ctx context.Context, assignmentID, studentAccountID int64, file core.StoredFile) (Submission, string, error)
		// Submissions returns the submissions of an assignment, oldest first.
		Submissions(ctx context.Context, assignmentID int64) ([]Submission, error)
	}

	Service interface {
		CreateClass(ctx context.Context, teacher account.Account, nc NewClass) (Class, error)
		// Classes returns the classes taught by a teacher, or the class of a student.
		Classes(ctx context.Context, acc account.Account) ([]Class, error)
		RenameClass(ctx context.Context, teacher account.Account, id int64, nc NewClass) (Class, error)
		DeleteClass(ctx context.Context, teacher account.Account, id int64) error
		AssignStudent(ctx context.Context, teacher account.Account, classID int64, as AssignStudent) (Student, error)

		Post(ctx context.Context, author account.Account, classID int64, np NewPost, upload *core.Upload) (Post, error)
		Posts(ctx context.Context, acc account.Account, classID int64) ([]Post, error)
		DeletePost(ctx context.Context, acc account.Account, classID, postID int64) error

		CreateAssignment(ctx context.Context, teacher account.Account, classID int64, na NewAssignment) (Assignment, error)
		Assignments(ctx context.Context, acc account.Account, classID int64) ([]Assignment, error)
		// Submit hands in (or replaces) the work of a student of the class.
		Submit(ctx context.Context, student account.Account, classID, assignmentID int64, upload *core.Upload) (Submission, error)
		// Submissions returns every submission to the class teacher, and their own one to a student.
		Submissions(ctx context.Context, acc account.Account, classID, assignmentID int64) ([]Submission, error)
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

// ownClass returns the class if it is taught by acc.
func (svc *service) ownClass(ctx context.Context, acc account.Account, id int64) (Class, error) {
	if !acc.IsTeacher() {
		return Class{}, core.ErrPermissionDenied
	}
	class, err := svc.repo.GetClass(ctx, id)
	if err != nil {
		return Class{}, err
	}
	if class.TeacherAccountID != acc.ID {
		return Class{}, core.ErrPermissionDenied
	}
	return class, nil
}

// memberClass returns the class if acc teaches it or is assigned to it.
func (svc *service) memberClass(ctx context.Context, acc account.Account, id int64) (Class, error) {
	class, err := svc.repo.GetClass(ctx, id)
	if err != nil {
		return Class{}, err
	}
	switch {
	case acc.IsTeacher() && class.TeacherAccountID == acc.ID:
		return class, nil
	case acc.IsStudent():
		student, err := svc.repo.GetStudent(ctx, acc.ID)
		if err != nil && errors.Cause(err) != ErrNotFound {
			return Class{}, errors.Wrap(err, "finding student")
		}
		if err == nil && student.ClassID == class.ID {
			return class, nil
		}
	}
	return Class{}, core.ErrPermissionDenied
}

func (svc *service) CreateClass(ctx context.Context, teacher account.Account, nc NewClass) (Class, error) {
	if !teacher.IsTeacher() {
		return Class{}, core.ErrPermissionDenied
	}
	return svc.repo.CreateClass(ctx, teacher.ID, nc.Name)
}

func (svc *service) Classes(ctx context.Context, acc account.Account) ([]Class, error) {
	switch acc.Role {
	case account.RoleTeacher:
		return svc.repo.ClassesByTeacher(ctx, acc.ID)
	case account.RoleStudent:
		classes := make([]Class, 0, 1)
		student, err := svc.repo.GetStudent(ctx, acc.ID)
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				return classes, nil
			}
			return nil, errors.Wrap(err, "finding student")
		}
		if student.ClassID == 0 {
			return classes, nil
		}
		class, err := svc.repo.GetClass(ctx, student.ClassID)
		if err != nil {
			return nil, errors.Wrap(err, "finding student class")
		}
		return append(classes, class), nil
	default:
		return nil, core.ErrPermissionDenied
	}
}

func (svc *service) RenameClass(ctx context.Context, teacher account.Account, id int64, nc NewClass) (Class, error) {
	if _, err := svc.ownClass(ctx, teacher, id); err != nil {
		return Class{}, err
	}
	return svc.repo.RenameClass(ctx, id, nc.Name)
}

func (svc *service) DeleteClass(ctx context.Context, teacher account.Account, id int64) error {
	if _, err := svc.ownClass(ctx, teacher, id); err != nil {
		return err
	}
	attachments, err := svc.repo.DeleteClass(ctx, id)
	if err != nil {
		return err
	}
	for _, path := range attachments {
		svc.removeFile(path)
	}
	return nil
}

func (svc *service) AssignStudent(ctx context.Context, teacher account.Account, classID int64, as AssignStudent) (Student, error) {
	if _, err := svc.ownClass(ctx, teacher, classID); err != nil {
		return Student{}, err
	}
	student, err := svc.repo.AssignStudent(ctx, classID, as.StudentCode)
	if err != nil {
		if errors.Cause(err) == ErrUnknownStudent {
			return Student{}, core.NewFieldValidationError("student_code", ErrUnknownStudent)
		}
		return Student{}, err
	}
	return student, nil
}

func (svc *service) Post(ctx context.Context, author account.Account, classID int64, np NewPost, upload *core.Upload) (Post, error) {
	if _, err := svc.memberClass(ctx, author, classID); err != nil {
		return Post{}, err
	}

	var stored *core.StoredFile
	if upload != nil {
		file, err := svc.files.Save(*upload)
		if err != nil {
			if err == core.ErrFileTypeNotAllowed || err == core.ErrFileTooLarge {
				return Post{}, core.NewFieldValidationError("attachment", err)
			}
			return Post{}, errors.Wrap(err, "saving attachment")
		}
		stored = &file
	}

	post, err := svc.repo.CreatePost(ctx, classID, author.ID, np.Content, stored)
	if err != nil {
		if stored != nil {
			svc.removeFile(stored.Path)
		}
		return Post{}, errors.Wrap(err, "creating post")
	}
	return post, nil
}

func (svc *service) Posts(ctx context.Context, acc account.Account, classID int64) ([]Post, error) {
	if _, err := svc.memberClass(ctx, acc, classID); err != nil {
		return nil, err
	}
	return svc.repo.Posts(ctx, classID)
}

// DeletePost lets the author or the class teacher delete a post.
func (svc *service) DeletePost(ctx context.Context, acc account.Account, classID, postID int64) error {
	class, err := svc.memberClass(ctx, acc, classID)
	if err != nil {
		return err
	}
	post, err := svc.repo.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.ClassID != classID {
		return ErrNotFound
	}
	if post.AuthorID != acc.ID && class.TeacherAccountID != acc.ID {
		return core.ErrPermissionDenied
	}

	if err = svc.repo.DeletePost(ctx, postID); err != nil {
		return err
	}
	if post.AttachmentPath != "" {
		svc.removeFile(post.AttachmentPath)
	}
	return nil
}

func (svc *service) CreateAssignment(ctx context.Context, teacher account.Account, classID int64, na NewAssignment) (Assignment, error) {
	if _, err := svc.ownClass(ctx, teacher, classID); err != nil {
		return Assignment{}, err
	}
	return svc.repo.CreateAssignment(ctx, classID, na)
}

func (svc *service) Assignments(ctx context.Context, acc account.Account, classID int64) ([]Assignment, error) {
	if _, err := svc.memberClass(ctx, acc, classID); err != nil {
		return nil, err
	}
	return svc.repo.Assignments(ctx, classID)
}

// classAssignment returns the assignment if it belongs to classID.
func (svc *service) classAssignment(ctx context.Context, classID, id int64) (Assignment, error) {
	assignment, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if assignment.ClassID != classID {
		return Assignment{}, ErrNotFound
	}
	return assignment, nil
}

func (svc *service) Submit(ctx context.Context, student account.Account, classID, assignmentID int64, upload *core.Upload) (Submission, error) {
	if !student.IsStudent() {
		return Submission{}, core.ErrPermissionDenied
	}
	if _, err := svc.memberClass(ctx, student, classID); err != nil {
		return Submission{}, err
	}
	if _, err := svc.classAssignment(ctx, classID, assignmentID); err != nil {
		return Submission{}, err
	}
	if upload == nil {
		return Submission{}, core.NewFieldValidationError("file", ErrFileRequired)
	}

	file, err := svc.files.Save(*upload)
	if err != nil {
		if err == core.ErrFileTypeNotAllowed || err == core.ErrFileTooLarge {
			return Submission{}, core.NewFieldValidationError("file", err)
		}
		return Submission{}, errors.Wrap(err, "saving submission")
	}

	sub, replaced, err := svc.repo.Submit(ctx, assignmentID, student.ID, file)
	if err != nil {
		svc.removeFile(file.Path)
		return Submission{}, errors.Wrap(err, "submitting assignment")
	}
	if replaced != "" && replaced != file.Path {
		svc.removeFile(replaced)
	}
	return sub, nil
}

func (svc *service) Submissions(ctx context.Context, acc account.Account, classID, assignmentID int64) ([]Submission, error) {
	class, err := svc.memberClass(ctx, acc, classID)
	if err != nil {
		return nil, err
	}
	if _, err = svc.classAssignment(ctx, classID, assignmentID); err != nil {
		return nil, err
	}

	subs, err := svc.repo.Submissions(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if class.TeacherAccountID == acc.ID {
		return subs, nil
	}
	own := make([]Submission, 0, 1)
	for _, s := range subs {
		if s.StudentAccountID == acc.ID {
			own = append(own, s)
		}
	}
	return own, nil
}

func (svc *service) removeFile(path string) {
	if err := svc.files.Remove(path); err != nil {
		svc.logger.Error(fmt.Sprintf("removing file %s", path), err)
	}
}
