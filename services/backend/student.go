package backend

import (
	"context"

	"github.com/sendgrid/rest"

	"github.com/trezcool/perception/core/evaluation"
)

// AvailableQuestionSets lists the question sets the student can still answer.
func (c *Client) AvailableQuestionSets(ctx context.Context) ([]evaluation.QuestionSet, error) {
	sets := make([]evaluation.QuestionSet, 0)
	err := c.do(ctx, rest.Get, "/api/student/question-sets", nil, &sets)
	return sets, err
}

// MySubmissions lists the student's own submissions, with their scores.
func (c *Client) MySubmissions(ctx context.Context) ([]evaluation.Submission, error) {
	subs := make([]evaluation.Submission, 0)
	err := c.do(ctx, rest.Get, "/api/student/submissions", nil, &subs)
	return subs, err
}

// SubmitAnswer posts an answer; the backend scores it before responding.
func (c *Client) SubmitAnswer(ctx context.Context, ns evaluation.NewSubmission) (evaluation.Submission, error) {
	var sub evaluation.Submission
	err := c.do(ctx, rest.Post, "/api/student/submissions", ns, &sub)
	return sub, err
}
