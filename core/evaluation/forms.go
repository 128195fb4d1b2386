package evaluation

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/perception/core"
)

const assigneesSep = ","

var (
	errScoreText = fmt.Sprintf("score must be an integer between %d and %d", MinScore, MaxScore)

	// ErrInvalidScore is the notice for a score input out of [MinScore, MaxScore].
	ErrInvalidScore = errors.Errorf("Please enter a valid score between %d and %d.", MinScore, MaxScore)
)

// AnswerForm is a student's answer to a question set, as typed.
type AnswerForm struct {
	QuestionSetID string `form:"question_set_id" json:"question_set_id" validate:"required,notblank"`
	Answer        string `form:"answer" json:"answer" validate:"required,min=10"`
}

func (f *AnswerForm) Validate(validate *validator.Validate, translator ut.Translator) error {
	f.QuestionSetID = core.CleanString(f.QuestionSetID)
	f.Answer = core.CleanString(f.Answer)
	return core.ValidateStruct(validate, translator, f)
}

func (f AnswerForm) ToNewSubmission() NewSubmission {
	return NewSubmission{QuestionSetID: core.ID(f.QuestionSetID), Answer: f.Answer}
}

// QuestionSetForm is a teacher's new question set, as typed.
// Assignees is a comma separated list of student usernames.
type QuestionSetForm struct {
	Title       string `form:"title" json:"title" validate:"required,min=3,max=100"`
	Question    string `form:"question" json:"question" validate:"required,min=10"`
	ModelAnswer string `form:"model_answer" json:"model_answer" validate:"required,min=10"`
	Assignees   string `form:"assigned_usernames" json:"assigned_usernames"`
}

func (f *QuestionSetForm) Validate(validate *validator.Validate, translator ut.Translator) error {
	f.Title = core.CleanString(f.Title)
	f.Question = core.CleanString(f.Question)
	f.ModelAnswer = core.CleanString(f.ModelAnswer)
	return core.ValidateStruct(validate, translator, f)
}

func (f QuestionSetForm) ToNewQuestionSet() NewQuestionSet {
	return NewQuestionSet{
		Title:             f.Title,
		Question:          f.Question,
		ModelAnswer:       f.ModelAnswer,
		AssignedUsernames: ParseAssignees(f.Assignees),
	}
}

// ParseAssignees splits a comma separated username input into trimmed, non-empty usernames.
// An empty result means the set is public.
func ParseAssignees(input string) []string {
	return core.SplitList(input, assigneesSep)
}

// ParseScore parses a teacher's score input: an integer in [MinScore, MaxScore].
func ParseScore(input string) (int, error) {
	score, err := strconv.Atoi(core.CleanString(input))
	if err != nil || score < MinScore || score > MaxScore {
		return 0, core.NewValidationError(ErrInvalidScore, core.FieldError{Field: "final_score", Error: errScoreText})
	}
	return score, nil
}

// NewScoreUpdate parses the score input into a finalize payload.
func NewScoreUpdate(input string) (ScoreUpdate, error) {
	score, err := ParseScore(input)
	if err != nil {
		return ScoreUpdate{}, err
	}
	return ScoreUpdate{FinalScore: &score}, nil
}

func (s *Sample) Validate(validate *validator.Validate, translator ut.Translator) error {
	s.ModelAnswer = core.CleanString(s.ModelAnswer)
	s.StudentAnswer = core.CleanString(s.StudentAnswer)
	return core.ValidateStruct(validate, translator, s)
}
