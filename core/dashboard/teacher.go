package dashboard

import (
	"context"
	"sync"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/perception/core"
	"github.com/trezcool/perception/core/evaluation"
)

// TeacherView is what the teacher dashboard renders.
// Submissions only ever belong to the open question set.
type TeacherView struct {
	Sets        []evaluation.QuestionSet
	Loaded      bool
	OpenSetID   core.ID
	OpenSet     *evaluation.QuestionSet
	Submissions []evaluation.Submission
}

func (v TeacherView) IsOpen() bool { return !v.OpenSetID.IsZero() }

// Teacher is the teacher dashboard.
type Teacher struct {
	api        TeacherAPI
	validate   *validator.Validate
	translator ut.Translator

	mu     sync.RWMutex
	sets   []evaluation.QuestionSet
	loaded bool
	openID core.ID
	subs   []evaluation.Submission
}

func NewTeacher(api TeacherAPI, validate *validator.Validate, translator ut.Translator) *Teacher {
	return &Teacher{api: api, validate: validate, translator: translator}
}

func (d *Teacher) View() TeacherView {
	d.mu.RLock()
	defer d.mu.RUnlock()

	view := TeacherView{Sets: d.sets, Loaded: d.loaded, OpenSetID: d.openID}
	if !d.openID.IsZero() {
		view.Submissions = d.subs
		for i := range d.sets {
			if d.sets[i].ID == d.openID {
				qs := d.sets[i]
				view.OpenSet = &qs
				break
			}
		}
	}
	return view
}

// Refresh fetches the question sets created by the teacher.
func (d *Teacher) Refresh(ctx context.Context) error {
	sets, err := d.api.CreatedQuestionSets(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching question sets")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.sets = sets
	d.loaded = true
	return nil
}

// CreateQuestionSet validates and posts a new question set, then refreshes the list.
func (d *Teacher) CreateQuestionSet(ctx context.Context, form evaluation.QuestionSetForm) (evaluation.QuestionSet, error) {
	if err := form.Validate(d.validate, d.translator); err != nil {
		return evaluation.QuestionSet{}, err
	}

	qs, err := d.api.CreateQuestionSet(ctx, form.ToNewQuestionSet())
	if err != nil {
		return evaluation.QuestionSet{}, errors.Wrap(err, "creating question set")
	}
	return qs, d.Refresh(ctx)
}

// Open opens the detail view of a question set and fetches its submissions.
// They are fetched again on every Open.
func (d *Teacher) Open(ctx context.Context, setID core.ID) error {
	d.mu.Lock()
	d.openID = setID
	d.subs = nil
	d.mu.Unlock()

	return d.fetchSubmissions(ctx, setID)
}

// Close closes the detail view.
func (d *Teacher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openID = ""
	d.subs = nil
}

// Finalize sets the final score of a submission from the teacher's input, which must be
// an integer in [0, 10]: nothing is sent otherwise. The open submissions are fetched again.
func (d *Teacher) Finalize(ctx context.Context, subID core.ID, scoreInput string) (evaluation.Submission, error) {
	upd, err := evaluation.NewScoreUpdate(scoreInput)
	if err != nil {
		return evaluation.Submission{}, err
	}

	sub, err := d.api.FinalizeSubmission(ctx, subID, upd)
	if err != nil {
		return evaluation.Submission{}, errors.Wrap(err, "finalizing submission")
	}

	d.mu.RLock()
	openID := d.openID
	d.mu.RUnlock()
	if openID.IsZero() {
		return sub, nil
	}
	return sub, d.fetchSubmissions(ctx, openID)
}

// Evaluate has the AI score a sample answer, outside of any question set.
func (d *Teacher) Evaluate(ctx context.Context, sample evaluation.Sample) (evaluation.Result, error) {
	if err := sample.Validate(d.validate, d.translator); err != nil {
		return evaluation.Result{}, err
	}
	res, err := d.api.Evaluate(ctx, sample)
	return res, errors.Wrap(err, "evaluating sample")
}

func (d *Teacher) fetchSubmissions(ctx context.Context, setID core.ID) error {
	subs, err := d.api.QuestionSetSubmissions(ctx, setID)
	if err != nil {
		return errors.Wrap(err, "fetching submissions")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openID == setID { // still open
		d.subs = subs
	}
	return nil
}
