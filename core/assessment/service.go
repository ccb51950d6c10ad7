package assessment

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/bangkihwa/studylink/core"
	"github.com/bangkihwa/studylink/core/user"
)

var NowFunc = time.Now // mockable

type (
	// Deps are the collaborators of a Service.
	Deps struct {
		Tests       TestRepository
		Questions   QuestionRepository
		Submissions SubmissionRepository
		Courses     CourseRepository
		Events      EventRepository
		Members     MembershipOracle
		Notifier    Notifier
		Logger      core.Logger
		// Location is the academy's fixed-offset zone; defaults to core.Conf.AcademyLocation().
		Location *time.Location
	}

	Service struct {
		tests       TestRepository
		questions   QuestionRepository
		submissions SubmissionRepository
		courses     CourseRepository
		events      EventRepository
		members     MembershipOracle
		notifier    Notifier
		logger      core.Logger
		loc         *time.Location
	}
)

// NewService panics when a collaborator is missing.
func NewService(deps Deps) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Tests, "Tests"),
		vala.IsNotNil(deps.Questions, "Questions"),
		vala.IsNotNil(deps.Submissions, "Submissions"),
		vala.IsNotNil(deps.Courses, "Courses"),
		vala.IsNotNil(deps.Events, "Events"),
		vala.IsNotNil(deps.Members, "Members"),
		vala.IsNotNil(deps.Notifier, "Notifier"),
		vala.IsNotNil(deps.Logger, "Logger"),
	).CheckAndPanic()

	loc := deps.Location
	if loc == nil {
		loc = core.Conf.AcademyLocation()
	}
	return &Service{
		tests:       deps.Tests,
		questions:   deps.Questions,
		submissions: deps.Submissions,
		courses:     deps.Courses,
		events:      deps.Events,
		members:     deps.Members,
		notifier:    deps.Notifier,
		logger:      deps.Logger,
		loc:         loc,
	}
}

// Location returns the academy's fixed-offset zone.
func (svc *Service) Location() *time.Location {
	return svc.loc
}

func (svc *Service) now() time.Time {
	return NowFunc().UTC()
}

// canManage reports whether usr may author or grade t: admins, or the teacher owning it.
func canManage(usr user.User, t Test) bool {
	if usr.IsAdmin() {
		return true
	}
	return usr.IsTeacher() && t.OwnerID == usr.ID
}

// getManagedTest loads a test the actor may manage.
func (svc *Service) getManagedTest(ctx context.Context, usr user.User, id int64) (Test, error) {
	t, err := svc.tests.GetTestByID(ctx, id)
	if err != nil {
		return Test{}, errors.Wrap(err, "getting test")
	}
	if !canManage(usr, t) {
		return Test{}, ErrForbidden
	}
	return t, nil
}
