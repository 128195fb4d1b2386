package backend

import (
	"context"
	"net/url"

	"github.com/sendgrid/rest"

	"github.com/trezcool/perception/core"
	"github.com/trezcool/perception/core/evaluation"
)

// CreatedQuestionSets lists the question sets created by the teacher.
func (c *Client) CreatedQuestionSets(ctx context.Context) ([]evaluation.QuestionSet, error) {
	sets := make([]evaluation.QuestionSet, 0)
	err := c.do(ctx, rest.Get, "/api/teacher/question-sets", nil, &sets)
	return sets, err
}

func (c *Client) CreateQuestionSet(ctx context.Context, nqs evaluation.NewQuestionSet) (evaluation.QuestionSet, error) {
	if nqs.AssignedUsernames == nil {
		nqs.AssignedUsernames = []string{}
	}
	var qs evaluation.QuestionSet
	err := c.do(ctx, rest.Post, "/api/teacher/question-sets", nqs, &qs)
	return qs, err
}

// QuestionSetSubmissions lists the submissions to one of the teacher's question sets.
func (c *Client) QuestionSetSubmissions(ctx context.Context, setID core.ID) ([]evaluation.Submission, error) {
	subs := make([]evaluation.Submission, 0)
	path := "/api/teacher/question-sets/" + url.PathEscape(setID.String()) + "/submissions"
	err := c.do(ctx, rest.Get, path, nil, &subs)
	return subs, err
}

// FinalizeSubmission sets the teacher's final score of a submission.
func (c *Client) FinalizeSubmission(ctx context.Context, subID core.ID, upd evaluation.ScoreUpdate) (evaluation.Submission, error) {
	var sub evaluation.Submission
	path := "/api/teacher/submissions/" + url.PathEscape(subID.String()) + "/finalize"
	err := c.do(ctx, rest.Put, path, upd, &sub)
	return sub, err
}

// Evaluate has the AI score a sample answer against a model answer (teachers only).
func (c *Client) Evaluate(ctx context.Context, sample evaluation.Sample) (evaluation.Result, error) {
	var res evaluation.Result
	err := c.do(ctx, rest.Post, "/api/evaluate", sample, &res)
	return res, err
}
