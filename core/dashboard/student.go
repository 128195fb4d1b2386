package dashboard

import (
	"context"
	"sync"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/perception/core/evaluation"
)

// StudentView is what the student dashboard renders.
type StudentView struct {
	Available   []evaluation.QuestionSet
	Submissions []evaluation.Submission
	Loaded      bool
}

// Student is the student dashboard.
type Student struct {
	api        StudentAPI
	validate   *validator.Validate
	translator ut.Translator

	mu   sync.RWMutex
	view StudentView
}

func NewStudent(api StudentAPI, validate *validator.Validate, translator ut.Translator) *Student {
	return &Student{api: api, validate: validate, translator: translator}
}

func (d *Student) View() StudentView {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.view
}

// Refresh fetches the available question sets and the student's submissions concurrently.
// The view is only replaced when both succeed.
func (d *Student) Refresh(ctx context.Context) error {
	var (
		sets []evaluation.QuestionSet
		subs []evaluation.Submission
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		sets, err = d.api.AvailableQuestionSets(gctx)
		return errors.Wrap(err, "fetching available question sets")
	})
	g.Go(func() (err error) {
		subs, err = d.api.MySubmissions(gctx)
		return errors.Wrap(err, "fetching submissions")
	})
	if err := g.Wait(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.view = StudentView{Available: sets, Submissions: subs, Loaded: true}
	return nil
}

// SubmitAnswer validates and posts the answer, then refreshes the whole dashboard.
func (d *Student) SubmitAnswer(ctx context.Context, form evaluation.AnswerForm) (evaluation.Submission, error) {
	if err := form.Validate(d.validate, d.translator); err != nil {
		return evaluation.Submission{}, err
	}

	sub, err := d.api.SubmitAnswer(ctx, form.ToNewSubmission())
	if err != nil {
		return evaluation.Submission{}, errors.Wrap(err, "submitting answer")
	}
	return sub, d.Refresh(ctx)
}
