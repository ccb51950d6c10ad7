package testutil

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/bangkihwa/studylink/core"
	"github.com/bangkihwa/studylink/core/assessment"
	"github.com/bangkihwa/studylink/core/membership"
	"github.com/bangkihwa/studylink/core/user"
	logsvc "github.com/bangkihwa/studylink/services/logger"
	"github.com/bangkihwa/studylink/storage/database"
	inmemdb "github.com/bangkihwa/studylink/storage/database/inmem"
)

// Academy is the fixed +09:00 zone the fixtures run in.
var Academy = time.FixedZone("academy", 9*60*60)

// NewLogger returns a logger that discards output and never reports to rollbar.
func NewLogger() core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), &core.Config{Env: "TEST"})
}

// RecordingLogger keeps logged messages for assertions.
type RecordingLogger struct {
	mu       sync.Mutex
	messages []string
}

var _ core.Logger = (*RecordingLogger)(nil)

func (l *RecordingLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, level+": "+msg)
}

func (l *RecordingLogger) Debug(msg string, _ ...interface{}) { l.record("DEBUG", msg) }
func (l *RecordingLogger) Info(msg string, _ ...interface{})  { l.record("INFO", msg) }
func (l *RecordingLogger) Warn(msg string, _ ...interface{})  { l.record("WARN", msg) }
func (l *RecordingLogger) Error(msg string, _ ...interface{}) { l.record("ERROR", msg) }
func (l *RecordingLogger) Fatal(msg string, _ ...interface{}) { l.record("FATAL", msg) }

func (l *RecordingLogger) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

// Notification is one recorded Notifier call.
type Notification struct {
	Kind         string // "graded" or "published"
	SubmissionID int64
	StudentID    int64
	TestID       int64
	Score        null.Float64
}

// RecordingNotifier records calls for assertions.
type RecordingNotifier struct {
	mu    sync.Mutex
	calls []Notification
}

var _ assessment.Notifier = (*RecordingNotifier)(nil)

func (n *RecordingNotifier) record(kind string, sub assessment.Submission, t assessment.Test) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, Notification{
		Kind:         kind,
		SubmissionID: sub.ID,
		StudentID:    sub.StudentID,
		TestID:       t.ID,
		Score:        sub.Score,
	})
}

func (n *RecordingNotifier) TestGraded(_ context.Context, sub assessment.Submission, t assessment.Test) {
	n.record("graded", sub, t)
}

func (n *RecordingNotifier) ResultPublished(_ context.Context, sub assessment.Submission, t assessment.Test) {
	n.record("published", sub, t)
}

func (n *RecordingNotifier) Calls() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.calls...)
}

// Env is an assessment service over a fresh in-memory store.
type Env struct {
	DB       *inmemdb.DB
	Users    user.Repository
	Tests    assessment.TestRepository
	Courses  assessment.CourseRepository
	Events   assessment.EventRepository
	Notifier *RecordingNotifier
	Logger   *RecordingLogger
	Svc      *assessment.Service
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	env := &Env{
		DB:       db,
		Users:    inmemdb.NewUserRepository(db),
		Tests:    inmemdb.NewTestRepository(db),
		Courses:  inmemdb.NewCourseRepository(db),
		Events:   inmemdb.NewEventRepository(db),
		Notifier: new(RecordingNotifier),
		Logger:   new(RecordingLogger),
	}
	env.Svc = assessment.NewService(assessment.Deps{
		Tests:       env.Tests,
		Questions:   inmemdb.NewQuestionRepository(db),
		Submissions: inmemdb.NewSubmissionRepository(db),
		Courses:     env.Courses,
		Events:      env.Events,
		Members:     membership.NewResolver(inmemdb.NewRosterBackend(db), inmemdb.NewLegacyBackend(db)),
		Notifier:    env.Notifier,
		Logger:      env.Logger,
		Location:    Academy,
	})
	return env
}

func CreateUser(t *testing.T, repo user.Repository, name, email string, roles []string, createdAt ...time.Time) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr, err := repo.CreateUser(context.Background(), user.User{
		Name:      name,
		Email:     email,
		Roles:     roles,
		IsActive:  true,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func (env *Env) Admin(t *testing.T) user.User {
	return CreateUser(t, env.Users, "Admin", "admin@test.kr", []string{user.RoleAdminOwner})
}

func (env *Env) Teacher(t *testing.T, name string) user.User {
	return CreateUser(t, env.Users, name, name+"@test.kr", []string{user.RoleTeacher})
}

func (env *Env) Student(t *testing.T, name string) user.User {
	return CreateUser(t, env.Users, name, name+"@test.kr", []string{user.RoleStudent})
}

func (env *Env) Class(teacher user.User, name string) assessment.Class {
	return env.DB.CreateClass(assessment.Class{Name: name, TeacherID: teacher.ID})
}

func (env *Env) Course(teacher user.User, cls assessment.Class, title string, published bool) assessment.Course {
	c := assessment.Course{TeacherID: teacher.ID, Title: title, IsPublished: published}
	if cls.ID != 0 {
		c.ClassID = null.Int64From(cls.ID)
	}
	return env.DB.CreateCourse(c)
}

// CreateTest creates a test in cls due on due (YYYY-MM-DD).
func (env *Env) CreateTest(t *testing.T, owner user.User, cls assessment.Class, title, due string, publish bool) assessment.Test {
	t.Helper()

	test, err := env.Svc.CreateTest(context.Background(), owner, assessment.NewTest{
		Title:   title,
		ClassID: cls.ID,
		DueDate: due,
		Publish: publish,
	})
	if err != nil {
		t.Fatalf("CreateTest() failed: %v", err)
	}
	return test
}

// AddQuestion adds a question of type qt with the given JSON payload.
func (env *Env) AddQuestion(t *testing.T, owner user.User, testID int64, qt assessment.QuestionType, payload string, points float64) assessment.Question {
	t.Helper()

	q, err := env.Svc.CreateQuestion(context.Background(), owner, testID, assessment.NewQuestion{
		Type:         string(qt),
		QuestionText: "Question " + string(qt),
		Payload:      []byte(payload),
		Points:       &points,
	})
	if err != nil {
		t.Fatalf("CreateQuestion() failed: %v", err)
	}
	return q
}

// OpenSQLite opens a migrated, throwaway sqlite database.
func OpenSQLite(t *testing.T) *sqlx.DB {
	t.Helper()

	conf := *core.Conf
	conf.Database.Engine = database.EngineSQLite
	conf.Database.Path = ":memory:"

	db, err := database.Open(&conf)
	if err != nil {
		t.Fatalf("database.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("database.Migrate() failed: %v", err)
	}
	return db
}
