package notifsvc

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"

	"github.com/kat-co/vala"

	"github.com/bangkihwa/studylink/core"
	"github.com/bangkihwa/studylink/core/assessment"
	"github.com/bangkihwa/studylink/core/user"
)

const (
	tmplTestGraded      = "test_graded"
	tmplResultPublished = "result_published"
)

type gradingEmailData struct {
	StudentName string
	TestTitle   string
	HasScore    bool
	Score       string
	TotalScore  int
}

// EmailNotifier emails students about their graded and published results.
// Delivery failures are logged, never returned.
type EmailNotifier struct {
	users  user.Repository
	mail   core.EmailService
	logger core.Logger
}

var _ assessment.Notifier = (*EmailNotifier)(nil) // interface compliance check

func NewEmailNotifier(users user.Repository, mailSvc core.EmailService, logger core.Logger) *EmailNotifier {
	vala.BeginValidation().Validate(
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()
	return &EmailNotifier{users: users, mail: mailSvc, logger: logger}
}

func (n *EmailNotifier) TestGraded(ctx context.Context, sub assessment.Submission, t assessment.Test) {
	n.notify(ctx, sub, t, tmplTestGraded, "Your test has been graded")
}

func (n *EmailNotifier) ResultPublished(ctx context.Context, sub assessment.Submission, t assessment.Test) {
	n.notify(ctx, sub, t, tmplResultPublished, "Your test result is available")
}

func (n *EmailNotifier) notify(ctx context.Context, sub assessment.Submission, t assessment.Test, tmpl, subject string) {
	student, err := n.users.GetUserByID(ctx, sub.StudentID)
	if err != nil {
		n.logger.Error(fmt.Sprintf("notifying student %d: %v", sub.StudentID, err), err)
		return
	}
	if student.Email == "" || !student.IsActive {
		return
	}

	data := gradingEmailData{
		StudentName: student.Name,
		TestTitle:   t.Title,
		TotalScore:  t.TotalScore,
	}
	if sub.Score.Valid {
		data.HasScore = true
		data.Score = strconv.FormatFloat(sub.Score.Float64, 'f', -1, 64)
	}
	n.mail.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: data,
	})
}
