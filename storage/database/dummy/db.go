// Package dummydb is an in-memory storage backend, used by tests and for local runs without Postgres/Redis.
package dummydb

import (
	"sync"
	"time"

	"github.com/trezcool/darasa/core/account"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/community"
	"github.com/trezcool/darasa/core/school"
)

type (
	DB struct {
		account   *accountTable
		pending   *pendingTable
		community *communityTables
		classroom *classroomTables
		school    *schoolTable
	}

	accountTable struct {
		sync.RWMutex
		pkCount  int64
		table    map[int64]*account.Account
		profiles map[int64]account.Profile
	}

	pendingEntry struct {
		login     account.PendingLogin
		secret    string
		expiresAt time.Time
	}

	communityTables struct {
		sync.RWMutex
		pkCount       int64
		messages      map[int64]*community.Message
		library       map[int64]*community.LibraryContent
		programs      map[int64]*community.Program
		subscriptions map[int64]*community.Subscription
	}

	classroomTables struct {
		sync.RWMutex
		pkCount     int64
		classes     map[int64]*classroom.Class
		students    map[int64]*classroom.Student // by account ID
		posts       map[int64]*classroom.Post
		assignments map[int64]*classroom.Assignment
		submissions map[int64]*classroom.Submission
	}

	schoolTable struct {
		sync.RWMutex
		pkCount int64
		table   map[int64]*school.School
	}

	pendingTable struct {
		sync.Mutex
		logins      map[string]pendingEntry
		enrollments map[int64]pendingEntry
	}
)

var nowFunc = time.Now // mockable

func Open() *DB {
	return &DB{
		account: &accountTable{
			table:    make(map[int64]*account.Account),
			profiles: make(map[int64]account.Profile),
		},
		pending: &pendingTable{
			logins:      make(map[string]pendingEntry),
			enrollments: make(map[int64]pendingEntry),
		},
		community: &communityTables{
			messages:      make(map[int64]*community.Message),
			library:       make(map[int64]*community.LibraryContent),
			programs:      make(map[int64]*community.Program),
			subscriptions: make(map[int64]*community.Subscription),
		},
		classroom: &classroomTables{
			classes:     make(map[int64]*classroom.Class),
			students:    make(map[int64]*classroom.Student),
			posts:       make(map[int64]*classroom.Post),
			assignments: make(map[int64]*classroom.Assignment),
			submissions: make(map[int64]*classroom.Submission),
		},
		school: &schoolTable{table: make(map[int64]*school.School)},
	}
}
