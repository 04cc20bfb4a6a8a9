// Package sqlxrepos implements the domain repositories on Postgres, through the crud façade.
package sqlxrepos

import (
	"github.com/trezcool/darasa/storage/database/crud"
	"github.com/trezcool/darasa/storage/database/models"
)

type (
	accountTable = crud.Table[models.Account, models.AccountFields]
	studentTable = crud.Table[models.Student, models.StudentFields]
	teacherTable = crud.Table[models.Teacher, models.TeacherFields]
	memberTable  = crud.Table[models.CommunityMember, models.CommunityMemberFields]
	messageTable = crud.Table[models.Message, models.MessageFields]
	libraryTable = crud.Table[models.LibraryContent, models.LibraryContentFields]
	programTable = crud.Table[models.Program, models.ProgramFields]
	subTable     = crud.Table[models.Subscription, models.SubscriptionFields]
	classTable   = crud.Table[models.Class, models.ClassFields]
	postTable    = crud.Table[models.Post, models.PostFields]
	assignTable  = crud.Table[models.Assignment, models.AssignmentFields]
	submitTable  = crud.Table[models.Submission, models.SubmissionFields]
	schoolTable  = crud.Table[models.School, models.SchoolFields]
)

func accountsOf(f *crud.Facade) accountTable {
	return crud.NewTable[models.Account, models.AccountFields](f)
}

func studentsOf(f *crud.Facade) studentTable {
	return crud.NewTable[models.Student, models.StudentFields](f)
}

func teachersOf(f *crud.Facade) teacherTable {
	return crud.NewTable[models.Teacher, models.TeacherFields](f)
}

func membersOf(f *crud.Facade) memberTable {
	return crud.NewTable[models.CommunityMember, models.CommunityMemberFields](f)
}

func messagesOf(f *crud.Facade) messageTable {
	return crud.NewTable[models.Message, models.MessageFields](f)
}

func libraryOf(f *crud.Facade) libraryTable {
	return crud.NewTable[models.LibraryContent, models.LibraryContentFields](f)
}

func programsOf(f *crud.Facade) programTable {
	return crud.NewTable[models.Program, models.ProgramFields](f)
}

func subscriptionsOf(f *crud.Facade) subTable {
	return crud.NewTable[models.Subscription, models.SubscriptionFields](f)
}

func classesOf(f *crud.Facade) classTable {
	return crud.NewTable[models.Class, models.ClassFields](f)
}

func postsOf(f *crud.Facade) postTable {
	return crud.NewTable[models.Post, models.PostFields](f)
}

func assignmentsOf(f *crud.Facade) assignTable {
	return crud.NewTable[models.Assignment, models.AssignmentFields](f)
}

func submissionsOf(f *crud.Facade) submitTable {
	return crud.NewTable[models.Submission, models.SubmissionFields](f)
}

func schoolsOf(f *crud.Facade) schoolTable {
	return crud.NewTable[models.School, models.SchoolFields](f)
}
