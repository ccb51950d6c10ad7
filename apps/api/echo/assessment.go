package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/bangkihwa/studylink/core/assessment"
	"github.com/bangkihwa/studylink/core/user"
)

type assessmentApi struct {
	svc   *assessment.Service
	users user.Repository
}

func registerAssessmentAPI(g *echo.Group, users user.Repository, svc *assessment.Service) {
	api := assessmentApi{svc: svc, users: users}
	staff := staffMiddleware(users)
	student := studentMiddleware(users)

	tg := g.Group("/tests")
	tg.POST("", api.createTest, staff)
	tg.GET("", api.queryTests, staff)
	tg.GET("/:id", api.retrieveTest, staff)
	tg.PUT("/:id", api.updateTest, staff)
	tg.DELETE("/:id", api.destroyTest, staff)
	tg.POST("/:id/publish", api.publishTest, staff)
	tg.GET("/:id/students", api.availableStudents, staff)

	// questions
	tg.GET("/:id/questions", api.queryQuestions, staff)
	tg.POST("/:id/questions", api.createQuestion, staff)
	tg.PUT("/:id/questions/order", api.reorderQuestions, staff)
	qg := g.Group("/questions", staff)
	qg.PUT("/:id", api.updateQuestion)
	qg.DELETE("/:id", api.destroyQuestion)

	// attempts & submissions
	tg.GET("/:id/attempt", api.prepareAttempt, student)
	tg.POST("/:id/submissions", api.submitTest, student)
	tg.GET("/:id/submissions", api.querySubmissions, staff)
	tg.GET("/:id/result", api.retrieveResult)
	sg := g.Group("/submissions", staff)
	sg.PUT("/:id/grade", api.gradeSubmission)
	sg.POST("/:id/publish", api.publishSubmission)

	// students
	g.GET("/students/me/tests", api.availableTests, student)
	g.GET("/courses/:id/progress", api.courseProgress, student)

	g.GET("/calendar/deadlines", api.deadlines)
}

// Tests

func (api *assessmentApi) createTest(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data assessment.NewTest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTest")
	}

	t, err := api.svc.CreateTest(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating test")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *assessmentApi) queryTests(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	tests, err := api.svc.QueryTests(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying tests")
	}
	if tests == nil {
		tests = []assessment.TestSummary{}
	}
	return ctx.JSON(http.StatusOK, tests)
}

func (api *assessmentApi) retrieveTest(ctx echo.Context) error {
	usr, id, err := api.userAndID(ctx)
	if err != nil {
		return err
	}
	detail, err := api.svc.GetTest(ctx.Request().Context(), usr, id)
	if err != nil {
		return errors.Wrap(err, "getting test")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *assessmentApi) updateTest(ctx echo.Context) error {
	usr, id, err := api.userAndID(ctx)
	if err != nil {
		return err
	}
	var data assessment.UpdateTest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTest")
	}

	t, err := api.svc.UpdateTest(ctx.Request().Context(), usr, id, data)
	if err != nil {
		return errors.Wrap(err, "updating test")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *assessmentApi) destroyTest(ctx echo.Context) error {
	usr, id, err := api.userAndID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteTest(ctx.Request().Context(), usr, id); err != nil {
		return errors.Wrap(err, "deleting test")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *assessmentApi) publishTest(ctx echo.Context) error {
	usr, id, err := api.userAndID(ctx)
	if err != nil {
		return err
	}
	var data PublishRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PublishRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	t, err := api.svc.Publish(ctx.Request().Context(), usr, id, *data.Published)
	if err != nil {
		return errors.Wrap(err, "publishing test")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *assessmentApi) availableStudents(ctx echo.Context) error {
	usr, id, err := api.userAndID(ctx)
	if err != nil {
		return err
	}
	// only those managing the test may list its students
	if _, err := api.svc.GetTest(ctx.Request().Context(), usr, id); err != nil {
		return errors.Wrap(err, "getting test")
	}

	ids, err := api.svc.AvailableStudents(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "resolving available students")
	}
	students := []user.User{}
	if len(ids) > 0 {
		if students, err = api.users.QueryUsersByID(ctx.Request().Context(), ids...); err != nil {
			return errors.Wrap(err, "querying students")
		}
	}
	return ctx.JSON(http.StatusOK, students)
}

// Questions

func (api *assessmentApi) queryQuestions(ctx echo.Context) error {
	usr, id, err := api.userAndID(ctx)
	if err != nil {
		return err
	}
	questions, err := api.svc.QueryQuestions(ctx.Request().Context(), usr, id)
	if err != nil {
		return errors.Wrap(err, "querying questions")
	}
	if questions == nil {
		questions = []assessment.Question{}
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (api *assessmentApi) createQuestion(ctx echo.Context) error {
	usr, id, err := api.userAndID(ctx)
	if err != nil {
		return err
	}
	var data assessment.NewQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}

	q, err := api.svc.CreateQuestion(ctx.Request().Context(), usr, id, data)
	if err != nil {
		return errors.Wrap(err, "creating question")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *assessmentApi) reorderQuestions(ctx echo.Context) error {
	usr, id, err := api.userAndID(ctx)
	if err != nil {
		return err
	}
	var data ReorderRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReorderRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	questions, err := api.svc.ReorderQuestions(ctx.Request().Context(), usr, id, data.QuestionIDs)
	if err != nil {
		return errors.Wrap(err, "reordering questions")
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (api *assessmentApi) updateQuestion(ctx echo.Context) error {
	usr, id, err := api.userAndID(ctx)
	if err != nil {
		return err
	}
	var data assessment.UpdateQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuestion")
	}

	q, err := api.svc.UpdateQuestion(ctx.Request().Context(), usr, id, data)
	if err != nil {
		return errors.Wrap(err, "updating question")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *assessmentApi) destroyQuestion(ctx echo.Context) error {
	usr, id, err := api.userAndID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteQuestion(ctx.Request().Context(), usr, id); err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Attempts & submissions

func (api *assessmentApi) prepareAttempt(ctx echo.Context) error {
	usr, id, err := api.userAndID(ctx)
	if err != nil {
		return err
	}
	attempt, err := api.svc.PrepareAttempt(ctx.Request().Context(), usr, id)
	if err != nil {
		return errors.Wrap(err, "preparing attempt")
	}
	return ctx.JSON(http.StatusOK, attempt)
}

func (api *assessmentApi) submitTest(ctx echo.Context) error {
	usr, id, err := api.userAndID(ctx)
	if err != nil {
		return err
	}
	var data SubmitRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitRequest")
	}

	sub, err := api.svc.SubmitTest(ctx.Request().Context(), usr, id, data.Answers)
	if err != nil {
		return errors.Wrap(err, "submitting test")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *assessmentApi) querySubmissions(ctx echo.Context) error {
	usr, id, err := api.userAndID(ctx)
	if err != nil {
		return err
	}
	subs, err := api.svc.QuerySubmissions(ctx.Request().Context(), usr, id)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []assessment.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *assessmentApi) retrieveResult(ctx echo.Context) error {
	usr, id, err := api.userAndID(ctx)
	if err != nil {
		return err
	}
	studentID, err := int64Query(ctx, "student_id")
	if err != nil {
		return err
	}

	sub, err := api.svc.GetSubmissionResult(ctx.Request().Context(), usr, id, studentID)
	if err != nil {
		return errors.Wrap(err, "getting submission result")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *assessmentApi) gradeSubmission(ctx echo.Context) error {
	usr, id, err := api.userAndID(ctx)
	if err != nil {
		return err
	}
	var data assessment.GradeSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeSubmission")
	}

	sub, err := api.svc.GradeSubmission(ctx.Request().Context(), usr, id, data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *assessmentApi) publishSubmission(ctx echo.Context) error {
	usr, id, err := api.userAndID(ctx)
	if err != nil {
		return err
	}
	var data PublishRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PublishRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sub, err := api.svc.PublishSubmission(ctx.Request().Context(), usr, id, *data.Published)
	if err != nil {
		return errors.Wrap(err, "publishing submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

// Students

func (api *assessmentApi) availableTests(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	tests, err := api.svc.ListAvailable(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing available tests")
	}
	if tests == nil {
		tests = []assessment.AvailableTest{}
	}
	return ctx.JSON(http.StatusOK, tests)
}

func (api *assessmentApi) courseProgress(ctx echo.Context) error {
	usr, id, err := api.userAndID(ctx)
	if err != nil {
		return err
	}
	progress, err := api.svc.CourseProgress(ctx.Request().Context(), usr.ID, id)
	if err != nil {
		return errors.Wrap(err, "getting course progress")
	}
	return ctx.JSON(http.StatusOK, progress)
}

// Calendar

func (api *assessmentApi) deadlines(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var rng DateRange
	if err := rng.Bind(ctx); err != nil {
		return err
	}

	events, err := api.svc.ListDeadlines(ctx.Request().Context(), usr, rng.From, rng.To)
	if err != nil {
		return errors.Wrap(err, "listing deadlines")
	}
	return ctx.JSON(http.StatusOK, events)
}

func (api *assessmentApi) userAndID(ctx echo.Context) (user.User, int64, error) {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return user.User{}, 0, errors.Wrap(err, "getting context user")
	}
	id, err := idParam(ctx, "id")
	if err != nil {
		return user.User{}, 0, err
	}
	return usr, id, nil
}
