// Package dashboard holds the role-specific view models: what a student or a teacher
// sees once logged in, and the actions they take from there.
package dashboard

import (
	"context"

	"github.com/trezcool/perception/core"
	"github.com/trezcool/perception/core/evaluation"
)

// Notices
const (
	LoadFailedMsg      = "Failed to load dashboard data."
	SubmittedMsg       = "Answer submitted successfully! The AI is evaluating it now."
	SubmitFailedMsg    = "Failed to submit answer."
	FetchSetsFailedMsg = "Failed to fetch question sets."
	CreatedMsg         = "New question set created!"
	CreateFailedMsg    = "Failed to create question set."
	LoadSubsFailedMsg  = "Failed to load submissions."
	FinalizedMsg       = "Score finalized!"
	FinalizeFailedMsg  = "Failed to finalize score."
	EvaluateFailedMsg  = "Failed to evaluate answer."
)

type StudentAPI interface {
	AvailableQuestionSets(ctx context.Context) ([]evaluation.QuestionSet, error)
	MySubmissions(ctx context.Context) ([]evaluation.Submission, error)
	SubmitAnswer(ctx context.Context, ns evaluation.NewSubmission) (evaluation.Submission, error)
}

type TeacherAPI interface {
	CreatedQuestionSets(ctx context.Context) ([]evaluation.QuestionSet, error)
	CreateQuestionSet(ctx context.Context, nqs evaluation.NewQuestionSet) (evaluation.QuestionSet, error)
	QuestionSetSubmissions(ctx context.Context, setID core.ID) ([]evaluation.Submission, error)
	FinalizeSubmission(ctx context.Context, subID core.ID, upd evaluation.ScoreUpdate) (evaluation.Submission, error)
	Evaluate(ctx context.Context, sample evaluation.Sample) (evaluation.Result, error)
}
