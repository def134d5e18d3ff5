package http

import (
	"context"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-quiz/internal/quiz"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
	"github.com/mind-engage/mindengage-quiz/internal/review"
	"github.com/mind-engage/mindengage-quiz/internal/submission"
	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
	"github.com/mind-engage/mindengage-quiz/internal/users"
)

type TestStore interface {
	PutTest(ctx context.Context, d quiz.Definition) error
	GetTest(ctx context.Context, id string) (quiz.Test, error)
	QuestionsForTest(ctx context.Context, testID string) ([]quiz.Question, error)
	CanUserAccessTest(ctx context.Context, testID, userID string) (bool, error)
	TestsByCreator(ctx context.Context, userID string) ([]quiz.Test, error)
}

type Submissions interface {
	GetOrCreateSubmission(ctx context.Context, testID, userID string) (submission.Submission, bool, error)
	SaveAnswer(ctx context.Context, submissionID, questionID string, in submission.AnswerInput) ([]submission.Answer, error)
	SubmitSubmission(ctx context.Context, submissionID string) (submission.Submission, error)
	CanUserAccessSubmission(ctx context.Context, submissionID, userID string) (bool, error)
	GetSubmission(ctx context.Context, submissionID string) (submission.WithAnswers, error)
	SubmissionsByUser(ctx context.Context, userID string) ([]submission.WithTestInfo, error)
}

type Grading interface {
	GradeAnswer(ctx context.Context, answerID string, isCorrect bool, gradedBy string) (submission.Answer, error)
	RecalculateSubmissionScore(ctx context.Context, submissionID string) (submission.Submission, error)
	SubmissionsNeedingGrading(ctx context.Context, teacherID string) ([]review.SubmissionForGrading, error)
	GradedSubmissions(ctx context.Context, teacherID string) ([]review.GradedSubmission, error)
	SubmissionForGrading(ctx context.Context, submissionID string) (review.SubmissionGradingDetails, error)
	CanUserGradeSubmission(ctx context.Context, submissionID, userID string) (bool, error)
	CanUserGradeAnswer(ctx context.Context, answerID, userID string) (bool, error)
}

type Accounts interface {
	Create(ctx context.Context, username, name, password string) (users.User, error)
	Get(ctx context.Context, id string) (users.User, error)
	PrimaryRole(ctx context.Context, userID string) (string, error)
	SetRole(ctx context.Context, userID, role string) (users.RoleAssignment, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	Upsert(ctx context.Context, accounts []users.Account) (inserted, updated int, err error)
}

type EventFeed interface {
	Since(ctx context.Context, after int64, limit int) ([]syncx.Event, error)
}

// Deps is everything the quiz API needs.
type Deps struct {
	Tests       TestStore
	Submissions Submissions
	Grading     Grading
	Accounts    Accounts
	Events      EventFeed
}

// MountQuiz registers the authenticated quiz API on r. The caller installs
// authentication so that subject and role are in the request context.
func MountQuiz(r chi.Router, d Deps) {
	r.Get("/me", MeHandler(d.Accounts))
	r.With(rbac.Require("user:set_role")).Post("/me/role", SetRoleHandler(d.Accounts))
	r.With(rbac.Require("user:change_password")).Post("/me/password", ChangePasswordHandler(d.Accounts))
	r.With(rbac.Require("users:bulk_upsert")).Post("/users/bulk", BulkUpsertUsersHandler(d.Accounts))

	r.With(rbac.Require("test:create")).Post("/tests", ImportTestHandler(d.Tests))
	r.With(rbac.Require("test:create")).Get("/tests", ListMyTestsHandler(d.Tests))
	r.With(rbac.Require("test:view")).Get("/tests/{testID}", GetTestHandler(d.Tests))

	r.Route("/submissions", func(sr chi.Router) {
		sr.With(rbac.Require("submission:start")).Post("/", StartSubmissionHandler(d.Submissions))
		sr.With(rbac.Require("submission:view-own")).Get("/", ListMySubmissionsHandler(d.Submissions))
		sr.With(rbac.Require("submission:view-own")).Get("/{submissionID}", GetSubmissionHandler(d.Submissions))
		sr.With(rbac.Require("submission:save")).Put("/{submissionID}/answers/{questionID}", SaveAnswerHandler(d.Submissions))
		sr.With(rbac.Require("submission:submit")).Post("/{submissionID}/submit", SubmitSubmissionHandler(d.Submissions))
	})

	r.Route("/grading", func(gr chi.Router) {
		gr.With(rbac.Require("grading:view")).Get("/submissions", ListGradingHandler(d.Grading))
		gr.With(rbac.Require("grading:view")).Get("/submissions/{submissionID}", GetGradingHandler(d.Grading))
		gr.With(rbac.Require("grading:grade")).Post("/answers/{answerID}", GradeAnswerHandler(d.Grading))
		gr.With(rbac.Require("grading:grade")).Post("/submissions/{submissionID}/recalculate", RecalculateHandler(d.Grading))
	})

	r.With(rbac.Require("events:read")).Get("/events", EventsHandler(d.Events))
}
