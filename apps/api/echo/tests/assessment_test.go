package tests

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bangkihwa/studylink/core/assessment"
	"github.com/bangkihwa/studylink/core/user"
	"github.com/bangkihwa/studylink/tests"
)

const farDue = "2099-12-31"

type fixture struct {
	env     *testutil.Env
	teacher user.User
	other   user.User
	student user.User
	cls     assessment.Class
}

func newFixture(t *testing.T, env *testutil.Env) fixture {
	f := fixture{
		env:     env,
		teacher: env.Teacher(t, "kim"),
		other:   env.Teacher(t, "park"),
		student: env.Student(t, "lee"),
	}
	f.cls = env.Class(f.teacher, "Math A")
	env.DB.EnrollInClass(f.cls.ID, f.student.ID)
	return f
}

func Test_assessmentApi_access(t *testing.T) {
	env, app := setup(t)
	f := newFixture(t, env)
	ctx := context.Background()

	test := env.CreateTest(t, f.teacher, f.cls, "Quiz 1", farDue, true)
	detail, err := env.Svc.GetTest(ctx, f.teacher, test.ID)
	require.NoError(t, err)
	summaries, err := env.Svc.QueryTests(ctx, f.teacher)
	require.NoError(t, err)
	available, err := env.Svc.ListAvailable(ctx, f.student.ID)
	require.NoError(t, err)

	teacherToken := getToken(t, f.teacher)
	studentToken := getToken(t, f.student)
	testPath := fmt.Sprintf("/v1/tests/%d", test.ID)

	runHTTPTests(t, app, []httpTest{
		{name: "Auth required", path: "/v1/tests", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "Unknown user", path: "/v1/tests", token: getToken(t, user.User{ID: 999, Roles: []string{user.RoleTeacher}}),
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, httpErr{Error: "user not authenticated"}),
		},
		{
			name: "Staff required", path: "/v1/tests", token: studentToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Query", path: "/v1/tests", token: teacherToken, wantCode: http.StatusOK, wantData: marshalObj(t, summaries)},
		{name: "Retrieve", path: testPath, token: teacherToken, wantCode: http.StatusOK, wantData: marshalObj(t, detail)},
		{
			name: "Retrieve (bad id)", path: "/v1/tests/abc", token: teacherToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "Retrieve (unknown)", path: "/v1/tests/999", token: teacherToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "test not found"}),
		},
		{
			name: "Retrieve (not owner)", path: testPath, token: getToken(t, f.other),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "insufficient permissions for this test"}),
		},
		{
			name: "Available tests", path: "/v1/students/me/tests", token: studentToken,
			wantCode: http.StatusOK, wantData: marshalObj(t, available),
		},
		{
			name: "Available tests (students only)", path: "/v1/students/me/tests", token: teacherToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Available students", path: testPath + "/students", token: teacherToken,
			wantCode: http.StatusOK, wantData: marshalObj(t, []user.User{f.student}),
		},
	})
}

func Test_assessmentApi_createTest(t *testing.T) {
	env, app := setup(t)
	f := newFixture(t, env)
	teacherToken := getToken(t, f.teacher)

	t.Run("Created", func(t *testing.T) {
		body := marshalObj(t, assessment.NewTest{Title: "  Midterm ", ClassID: f.cls.ID, DueDate: farDue})
		req, rec := newAuthRequest(http.MethodPost, "/v1/tests", teacherToken, body)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var got assessment.Test
		unmarshalObj(t, rec.Body.Bytes(), &got)
		assert.NotZero(t, got.ID)
		assert.Equal(t, "Midterm", got.Title)
		assert.Equal(t, f.teacher.ID, got.OwnerID)
		assert.Equal(t, f.cls.ID, got.ClassID.Int64)
		assert.False(t, got.IsPublished)
	})

	runHTTPTests(t, app, []httpTest{
		{
			name: "Title required", method: http.MethodPost, path: "/v1/tests", token: teacherToken,
			body:     marshalObj(t, assessment.NewTest{ClassID: f.cls.ID, DueDate: farDue}),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"title": "this field is required"}),
		},
		{
			name: "Other teacher's class", method: http.MethodPost, path: "/v1/tests", token: getToken(t, f.other),
			body:     marshalObj(t, assessment.NewTest{Title: "Nope", ClassID: f.cls.ID, DueDate: farDue}),
			wantCode: http.StatusForbidden,
		},
		{
			name: "Students cannot author", method: http.MethodPost, path: "/v1/tests", token: getToken(t, f.student),
			body:     marshalObj(t, assessment.NewTest{Title: "Nope", ClassID: f.cls.ID, DueDate: farDue}),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
	})
}

func Test_assessmentApi_publishTest(t *testing.T) {
	env, app := setup(t)
	f := newFixture(t, env)
	test := env.CreateTest(t, f.teacher, f.cls, "Quiz", farDue, false)
	path := fmt.Sprintf("/v1/tests/%d/publish", test.ID)
	token := getToken(t, f.teacher)

	runHTTPTests(t, app, []httpTest{
		{
			name: "published required", method: http.MethodPost, path: path, token: token, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"published": "this field is required"}),
		},
		{name: "Publish", method: http.MethodPost, path: path, token: token, body: []byte(`{"published":true}`), wantCode: http.StatusOK},
	})

	detail, err := env.Svc.GetTest(context.Background(), f.teacher, test.ID)
	require.NoError(t, err)
	assert.True(t, detail.IsPublished)

	req, rec := newAuthRequest(http.MethodGet, "/v1/calendar/deadlines?from=2099-12-01&to=2099-12-31", getToken(t, f.student))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var events []assessment.DeadlineEvent
	unmarshalObj(t, rec.Body.Bytes(), &events)
	if assert.Len(t, events, 1) {
		assert.Equal(t, test.ID, events[0].TestID)
	}
}

func Test_assessmentApi_questions(t *testing.T) {
	env, app := setup(t)
	f := newFixture(t, env)
	test := env.CreateTest(t, f.teacher, f.cls, "Quiz", farDue, false)
	q1 := env.AddQuestion(t, f.teacher, test.ID, assessment.TypeBinary, `{"correct_answer":"O"}`, 10)
	q2 := env.AddQuestion(t, f.teacher, test.ID, assessment.TypeShortAnswer, `{"correct_answer":"Seoul"}`, 10)
	token := getToken(t, f.teacher)
	questionsPath := fmt.Sprintf("/v1/tests/%d/questions", test.ID)

	t.Run("Create", func(t *testing.T) {
		body := []byte(`{"type":"multiple_choice","question_text":"Pick","payload":{"options":["a","b"],"correct_option":1}}`)
		req, rec := newAuthRequest(http.MethodPost, questionsPath, token, body)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var got struct {
			ID         int64  `json:"id"`
			Type       string `json:"type"`
			OrderIndex int    `json:"order_index"`
		}
		unmarshalObj(t, rec.Body.Bytes(), &got)
		assert.Equal(t, string(assessment.TypeMultipleChoice), got.Type)
		assert.Equal(t, 2, got.OrderIndex)

		// q3 goes first
		body = marshalObj(t, map[string][]int64{"question_ids": {got.ID, q2.ID, q1.ID}})
		req, rec = newAuthRequest(http.MethodPut, questionsPath+"/order", token, body)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		questions, err := env.Svc.QueryQuestions(context.Background(), f.teacher, test.ID)
		require.NoError(t, err)
		require.Len(t, questions, 3)
		assert.Equal(t, []int64{got.ID, q2.ID, q1.ID}, []int64{questions[0].ID, questions[1].ID, questions[2].ID})
	})

	runHTTPTests(t, app, []httpTest{
		{
			name: "Unknown type", method: http.MethodPost, path: questionsPath, token: token,
			body: []byte(`{"type":"oral","question_text":"Speak"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "Reorder (missing id)", method: http.MethodPut, path: questionsPath + "/order", token: token,
			body: marshalObj(t, map[string][]int64{"question_ids": {q1.ID}}), wantCode: http.StatusBadRequest,
		},
		{
			name: "Update (not owner)", method: http.MethodPut, path: fmt.Sprintf("/v1/questions/%d", q1.ID),
			token: getToken(t, f.other), body: []byte(`{"points":5}`), wantCode: http.StatusForbidden,
		},
		{
			name: "Update", method: http.MethodPut, path: fmt.Sprintf("/v1/questions/%d", q1.ID),
			token: token, body: []byte(`{"points":5}`), wantCode: http.StatusOK,
		},
		{name: "Delete", method: http.MethodDelete, path: fmt.Sprintf("/v1/questions/%d", q2.ID), token: token, wantCode: http.StatusNoContent},
		{
			name: "Delete (gone)", method: http.MethodDelete, path: fmt.Sprintf("/v1/questions/%d", q2.ID), token: token,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "question not found"}),
		},
	})
}

func Test_assessmentApi_attemptAndGrading(t *testing.T) {
	env, app := setup(t)
	f := newFixture(t, env)
	test := env.CreateTest(t, f.teacher, f.cls, "Quiz", farDue, true)
	q1 := env.AddQuestion(t, f.teacher, test.ID, assessment.TypeBinary, `{"correct_answer":"SECRET-O"}`, 10)
	q2 := env.AddQuestion(t, f.teacher, test.ID, assessment.TypeEssay, `{"model_answer":"SECRET-MODEL"}`, 20)
	studentToken := getToken(t, f.student)
	teacherToken := getToken(t, f.teacher)
	testPath := fmt.Sprintf("/v1/tests/%d", test.ID)

	// attempt
	req, rec := newAuthRequest(http.MethodGet, testPath+"/attempt", studentToken)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "SECRET")
	var attempt assessment.Attempt
	unmarshalObj(t, rec.Body.Bytes(), &attempt)
	assert.Len(t, attempt.Questions, 2)
	assert.True(t, attempt.ClosesAt.Valid)

	// submit
	body := []byte(fmt.Sprintf(`{"answers":{"%d":"secret-o","%d":"My essay"}}`, q1.ID, q2.ID))
	req, rec = newAuthRequest(http.MethodPost, testPath+"/submissions", studentToken, body)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sub assessment.Submission
	unmarshalObj(t, rec.Body.Bytes(), &sub)
	assert.False(t, sub.IsGraded)

	runHTTPTests(t, app, []httpTest{
		{
			name: "Submit twice", method: http.MethodPost, path: testPath + "/submissions", token: studentToken, body: body,
			wantCode: http.StatusConflict, wantData: marshalObj(t, httpErr{Error: "test already submitted"}),
		},
		{
			name: "Teachers cannot submit", method: http.MethodPost, path: testPath + "/submissions", token: teacherToken, body: body,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Result pending", path: testPath + "/result", token: studentToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "result is not published yet"}),
		},
		{
			name: "Other student's result", path: fmt.Sprintf("%s/result?student_id=%d", testPath, f.student.ID+100), token: studentToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "students can only view their own results"}),
		},
		{
			name: "Bad student_id", path: testPath + "/result?student_id=x", token: teacherToken,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"student_id": "must be an integer"}),
		},
		{
			name: "Publish ungraded", method: http.MethodPost, path: fmt.Sprintf("/v1/submissions/%d/publish", sub.ID),
			token: teacherToken, body: []byte(`{"published":true}`), wantCode: http.StatusBadRequest,
		},
	})

	// list submissions
	req, rec = newAuthRequest(http.MethodGet, testPath+"/submissions", teacherToken)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var subs []assessment.Submission
	unmarshalObj(t, rec.Body.Bytes(), &subs)
	require.Len(t, subs, 1)
	assert.Equal(t, sub.ID, subs[0].ID)

	// grade & publish
	body = []byte(fmt.Sprintf(`{"outcomes":[{"question_id":%d,"awarded_points":15}],"feedback":"Good","publish":true}`, q2.ID))
	req, rec = newAuthRequest(http.MethodPut, fmt.Sprintf("/v1/submissions/%d/grade", sub.ID), teacherToken, body)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req, rec = newAuthRequest(http.MethodGet, testPath+"/result", studentToken)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshalObj(t, rec.Body.Bytes(), &sub)
	assert.True(t, sub.IsGraded)
	assert.True(t, sub.IsPublished)
	if assert.True(t, sub.Score.Valid) {
		assert.Equal(t, 25.0, sub.Score.Float64)
	}
	assert.Equal(t, "Good", sub.Feedback.String)

	calls := env.Notifier.Calls()
	if assert.NotEmpty(t, calls) {
		assert.Equal(t, sub.ID, calls[len(calls)-1].SubmissionID)
	}
}

func Test_assessmentApi_deadlines(t *testing.T) {
	env, app := setup(t)
	f := newFixture(t, env)
	token := getToken(t, f.teacher)

	runHTTPTests(t, app, []httpTest{
		{
			name: "Missing range", path: "/v1/calendar/deadlines", token: token, wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"from": "must be a YYYY-MM-DD date", "to": "must be a YYYY-MM-DD date"}),
		},
		{
			name: "Reversed range", path: "/v1/calendar/deadlines?from=2026-02-01&to=2026-01-01", token: token,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"from": "invalid date range"}),
		},
		{name: "Empty", path: "/v1/calendar/deadlines?from=2026-01-01&to=2026-01-31", token: token, wantCode: http.StatusOK, wantData: []byte(`[]`)},
	})
}

func Test_home(t *testing.T) {
	_, app := setup(t)
	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Welcome to"))
}
