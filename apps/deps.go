package apps

import (
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/bangkihwa/studylink/core"
	"github.com/bangkihwa/studylink/core/assessment"
	"github.com/bangkihwa/studylink/core/membership"
	"github.com/bangkihwa/studylink/core/user"
	emailsvc "github.com/bangkihwa/studylink/services/email"
	notifsvc "github.com/bangkihwa/studylink/services/notification"
	"github.com/bangkihwa/studylink/storage/database"
	inmemdb "github.com/bangkihwa/studylink/storage/database/inmem"
	sqlxrepos "github.com/bangkihwa/studylink/storage/database/sqlx"
)

// Stores groups the repositories of the configured engine.
type Stores struct {
	Engine      string
	SQL         *sqlx.DB // nil for the memory engine
	Users       user.Repository
	Tests       assessment.TestRepository
	Questions   assessment.QuestionRepository
	Submissions assessment.SubmissionRepository
	Courses     assessment.CourseRepository
	Events      assessment.EventRepository
	Members     *membership.Resolver
}

func (s Stores) Close() error {
	if s.SQL == nil {
		return nil
	}
	return s.SQL.Close()
}

// OpenStores opens the configured engine. SQL databases are created if missing and migrated
// when migrate is set.
func OpenStores(conf *core.Config, migrate bool) (Stores, error) {
	engine := conf.Database.Engine
	if engine == database.EngineMemory {
		db, err := inmemdb.Open()
		if err != nil {
			return Stores{}, errors.Wrap(err, "opening in-memory store")
		}
		return Stores{
			Engine:      engine,
			Users:       inmemdb.NewUserRepository(db),
			Tests:       inmemdb.NewTestRepository(db),
			Questions:   inmemdb.NewQuestionRepository(db),
			Submissions: inmemdb.NewSubmissionRepository(db),
			Courses:     inmemdb.NewCourseRepository(db),
			Events:      inmemdb.NewEventRepository(db),
			Members:     membership.NewResolver(inmemdb.NewRosterBackend(db), inmemdb.NewLegacyBackend(db)),
		}, nil
	}
	if !database.IsSQL(engine) {
		return Stores{}, errors.Errorf("unsupported database engine %q", engine)
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return Stores{}, errors.Wrap(err, "creating database")
	}
	db, err := database.Open(conf)
	if err != nil {
		return Stores{}, err
	}
	if migrate {
		if err := database.Migrate(db); err != nil {
			_ = db.Close()
			return Stores{}, err
		}
	}
	return Stores{
		Engine:      engine,
		SQL:         db,
		Users:       sqlxrepos.NewUserRepository(db),
		Tests:       sqlxrepos.NewTestRepository(db),
		Questions:   sqlxrepos.NewQuestionRepository(db),
		Submissions: sqlxrepos.NewSubmissionRepository(db),
		Courses:     sqlxrepos.NewCourseRepository(db),
		Events:      sqlxrepos.NewEventRepository(db),
		Members:     membership.NewResolver(sqlxrepos.NewRosterBackend(db), sqlxrepos.NewLegacyBackend(db)),
	}, nil
}

// NewMailService prints emails in debug mode and sends them through sendgrid otherwise.
func NewMailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(logger)
	}
	return emailsvc.NewSendgridService(logger)
}

// NewAssessmentService wires the assessment service over stores, emailing students through mailSvc.
func NewAssessmentService(conf *core.Config, stores Stores, mailSvc core.EmailService, logger core.Logger) *assessment.Service {
	return assessment.NewService(assessment.Deps{
		Tests:       stores.Tests,
		Questions:   stores.Questions,
		Submissions: stores.Submissions,
		Courses:     stores.Courses,
		Events:      stores.Events,
		Members:     stores.Members,
		Notifier:    notifsvc.NewEmailNotifier(stores.Users, mailSvc, logger),
		Logger:      logger,
		Location:    conf.AcademyLocation(),
	})
}

// PrintConfig writes the non-secret settings the app starts with.
func PrintConfig(w io.Writer, conf *core.Config) {
	_, _ = fmt.Fprintf(w, "env=%s build=%s debug=%t engine=%s academy=%s scheduler=%t(%s)\n",
		conf.Env, conf.Build, conf.Debug, conf.Database.Engine, conf.Academy.UTCOffset,
		conf.Scheduler.Enabled, conf.Scheduler.Spec)
}
