package sqlxrepos

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/storage/database/crud"
	"github.com/trezcool/darasa/storage/database/models"
	"github.com/trezcool/darasa/tests"
)

func createStudentAccount(t *testing.T, repo account.Repository, uname, code string) account.Account {
	t.Helper()
	acc := account.Account{Username: uname, Email: uname + "@x.com", Role: account.RoleStudent}
	require.NoError(t, acc.SetPassword("pwd"))
	acc, err := repo.Create(context.Background(), acc, account.Profile{StudentCode: code, Grade: 2})
	require.NoError(t, err)
	return acc
}

func count[E crud.Entity, F crud.Settable](t *testing.T, table crud.Table[E, F], filter F) int64 {
	t.Helper()
	n, err := table.Count(context.Background(), filter)
	require.NoError(t, err)
	return n
}

func TestPostgres_Facade(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	f := crud.New(db)
	accRepo := NewAccountRepository(db)

	alice := testutil.CreateAccount(t, accRepo, account.RoleCommunity, "alice", "alice@x.com", "pwd")
	bob := testutil.CreateAccount(t, accRepo, account.RoleCommunity, "bob", "bob@x.com", "pwd")

	t.Run("create then read returns the created row", func(t *testing.T) {
		messages := messagesOf(f)
		msg, err := messages.Create(ctx, models.MessageFields{
			SenderID:   null.Int64From(alice.ID),
			ReceiverID: null.Int64From(bob.ID),
			Content:    null.StringFrom("hello"),
		})
		require.NoError(t, err)
		assert.Equal(t, models.MessageSent, msg.Status)

		read, err := messages.Read(ctx, models.MessageFields{SenderID: null.Int64From(alice.ID)})
		require.NoError(t, err)
		require.Len(t, read, 1)
		assert.True(t, msg.SentAt.Equal(read[0].SentAt))
		read[0].SentAt = msg.SentAt
		assert.Equal(t, *msg, read[0])
	})

	t.Run("failed creates leave no row behind", func(t *testing.T) {
		accounts, students := accountsOf(f), studentsOf(f)
		accountsBefore := count(t, accounts, models.AccountFields{})
		studentsBefore := count(t, students, models.StudentFields{})

		dup := account.Account{Username: "alice2", Email: "alice@x.com", Role: account.RoleCommunity, PasswordHash: []byte("x")}
		_, err := accRepo.Create(ctx, dup, account.Profile{})
		assert.Equal(t, account.ErrEmailExists, err)

		createStudentAccount(t, accRepo, "carol", "ABC1234")
		dave := account.Account{Username: "dave", Email: "dave@x.com", Role: account.RoleStudent, PasswordHash: []byte("x")}
		_, err = accRepo.Create(ctx, dave, account.Profile{StudentCode: "ABC1234"})
		assert.Equal(t, account.ErrStudentCodeExists, err)

		assert.Equal(t, accountsBefore+1, count(t, accounts, models.AccountFields{}))
		assert.Equal(t, studentsBefore+1, count(t, students, models.StudentFields{}))
		assert.Zero(t, count(t, accounts, models.AccountFields{Username: null.StringFrom("dave")}))

		messages := messagesOf(f)
		messagesBefore := count(t, messages, models.MessageFields{})
		_, err = messages.Create(ctx, models.MessageFields{
			SenderID:   null.Int64From(alice.ID),
			ReceiverID: null.Int64From(999999),
			Content:    null.StringFrom("hello?"),
		})
		assert.ErrorIs(t, err, crud.ErrConstraint)
		assert.True(t, crud.IsForeignKeyViolation(err, models.MessagesReceiverFKey))
		assert.Equal(t, messagesBefore, count(t, messages, models.MessageFields{}))
	})

	t.Run("second delete is not found", func(t *testing.T) {
		programs := programsOf(f)
		p, err := programs.Create(ctx, models.ProgramFields{CreatorID: null.Int64From(alice.ID), Name: null.StringFrom("Chess")})
		require.NoError(t, err)

		require.NoError(t, programs.Delete(ctx, p.ID))
		assert.ErrorIs(t, programs.Delete(ctx, p.ID), crud.ErrNotFound)
		_, err = programs.Update(ctx, p.ID, models.ProgramFields{Name: null.StringFrom("Go")})
		assert.ErrorIs(t, err, crud.ErrNotFound)

		gone := testutil.CreateAccount(t, accRepo, account.RoleCommunity, "gone", "gone@x.com", "pwd")
		require.NoError(t, accRepo.Delete(ctx, gone.ID))
		assert.Equal(t, account.ErrNotFound, accRepo.Delete(ctx, gone.ID))
	})

	t.Run("second factor secret & flag change together", func(t *testing.T) {
		accounts := accountsOf(f)
		assertCheckViolation := func(t *testing.T, fields models.AccountFields) {
			_, err := accounts.Update(ctx, alice.ID, fields)
			var cErr *crud.ConstraintError
			require.ErrorAs(t, err, &cErr)
			assert.Equal(t, "check_violation", cErr.Kind)
			assert.Equal(t, "accounts_second_factor_check", cErr.Constraint)
		}
		secret := null.StringFrom("SECRET")
		assertCheckViolation(t, models.AccountFields{TOTPEnabled: null.BoolFrom(true)})
		assertCheckViolation(t, models.AccountFields{TOTPSecret: &secret})

		require.NoError(t, accRepo.EnableSecondFactor(ctx, alice.ID, "SECRET"))
		acc, err := accRepo.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.True(t, acc.TwoFactorEnabled)
		assert.Equal(t, "SECRET", acc.TOTPSecret)

		noSecret := models.AccountFields{TOTPSecret: &null.String{}}
		assert.Equal(t, count(t, accounts, models.AccountFields{})-1, count(t, accounts, noSecret))

		require.NoError(t, accRepo.DisableSecondFactor(ctx, alice.ID))
		acc, err = accRepo.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.False(t, acc.TwoFactorEnabled)
		assert.Empty(t, acc.TOTPSecret)
		assert.Equal(t, count(t, accounts, models.AccountFields{}), count(t, accounts, noSecret))
	})
}

func TestPostgres_Cascades(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	f := crud.New(db)
	accRepo := NewAccountRepository(db)
	commRepo := NewCommunityRepository(db)
	classRepo := NewClassroomRepository(db)

	teacher := testutil.CreateAccount(t, accRepo, account.RoleTeacher, "teacher", "teacher@x.com", "pwd")
	member := testutil.CreateAccount(t, accRepo, account.RoleCommunity, "member", "member@x.com", "pwd")
	student := createStudentAccount(t, accRepo, "student", "STU0001")

	newClassWork := func(t *testing.T, name string) (classroom.Class, classroom.Assignment) {
		t.Helper()
		class, err := classRepo.CreateClass(ctx, teacher.ID, name)
		require.NoError(t, err)
		_, err = classRepo.AssignStudent(ctx, class.ID, "STU0001")
		require.NoError(t, err)
		a, err := classRepo.CreateAssignment(ctx, class.ID, classroom.NewAssignment{Title: "Homework", Description: "Exercise 1"})
		require.NoError(t, err)
		return class, a
	}

	t.Run("deleting a class", func(t *testing.T) {
		class, a := newClassWork(t, "Maths")
		_, err := classRepo.CreatePost(ctx, class.ID, teacher.ID, "Welcome", &core.StoredFile{Path: "welcome.pdf", Type: "pdf"})
		require.NoError(t, err)

		_, replaced, err := classRepo.Submit(ctx, a.ID, student.ID, core.StoredFile{Path: "v1.txt", Type: "txt"})
		require.NoError(t, err)
		assert.Empty(t, replaced)
		_, replaced, err = classRepo.Submit(ctx, a.ID, student.ID, core.StoredFile{Path: "v2.txt", Type: "txt"})
		require.NoError(t, err)
		assert.Equal(t, "v1.txt", replaced)

		subs, err := classRepo.Submissions(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, student.ID, subs[0].StudentAccountID)
		assert.Equal(t, "v2.txt", subs[0].FilePath)

		files, err := classRepo.DeleteClass(ctx, class.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"welcome.pdf", "v2.txt"}, files)

		assert.Zero(t, count(t, postsOf(f), models.PostFields{ClassID: null.Int64From(class.ID)}))
		assert.Zero(t, count(t, assignmentsOf(f), models.AssignmentFields{ClassID: null.Int64From(class.ID)}))
		assert.Zero(t, count(t, submissionsOf(f), models.SubmissionFields{AssignmentID: null.Int64From(a.ID)}))

		unassigned, err := studentsOf(f).Read(ctx, models.StudentFields{ClassID: &null.Int64{}})
		require.NoError(t, err)
		require.Len(t, unassigned, 1)
		assert.Equal(t, student.ID, unassigned[0].AccountID)
	})

	t.Run("deleting an account", func(t *testing.T) {
		class, a := newClassWork(t, "Physics")
		_, _, err := classRepo.Submit(ctx, a.ID, student.ID, core.StoredFile{Path: "answers.txt", Type: "txt"})
		require.NoError(t, err)

		_, err = commRepo.SendMessage(ctx, member.ID, student.ID, "hello")
		require.NoError(t, err)
		program, err := commRepo.CreateProgram(ctx, member.ID, "Chess")
		require.NoError(t, err)
		_, err = commRepo.SubscribeToProgram(ctx, student.ID, program.ID)
		require.NoError(t, err)

		require.NoError(t, accRepo.Delete(ctx, student.ID))

		id := null.Int64From(student.ID)
		assert.Zero(t, count(t, studentsOf(f), models.StudentFields{AccountID: id}))
		assert.Zero(t, count(t, messagesOf(f), models.MessageFields{ReceiverID: id}))
		assert.Zero(t, count(t, subscriptionsOf(f), models.SubscriptionFields{AccountID: id}))
		assert.Zero(t, count(t, submissionsOf(f), models.SubmissionFields{AssignmentID: null.Int64From(a.ID)}))

		_, err = classRepo.GetClass(ctx, class.ID)
		assert.NoError(t, err)
		_, err = commRepo.GetProgram(ctx, program.ID)
		assert.NoError(t, err)
	})
}
