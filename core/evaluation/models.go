package evaluation

import (
	"github.com/trezcool/perception/core"
	"github.com/trezcool/perception/core/user"
)

// Score bounds, inclusive.
const (
	MinScore = 0
	MaxScore = 10
)

// QuestionSet is a teacher-authored prompt plus the model answer used to guide scoring.
// ModelAnswer and AssignedStudents are only served to the set's creator.
type QuestionSet struct {
	ID               core.ID     `json:"id"`
	Title            string      `json:"title"`
	Question         string      `json:"question"`
	ModelAnswer      string      `json:"model_answer,omitempty"`
	Creator          user.User   `json:"creator"`
	AssignedStudents []user.User `json:"assigned_students,omitempty"`
}

// IsPublic reports whether the set is open to every student.
func (qs QuestionSet) IsPublic() bool { return len(qs.AssignedStudents) == 0 }

// Submission is a student's answer plus its AI and teacher scores.
// Students get QuestionSet populated, teachers get Student.
type Submission struct {
	ID            core.ID      `json:"id"`
	QuestionSet   *QuestionSet `json:"question_set,omitempty"`
	Student       *user.User   `json:"student,omitempty"`
	StudentAnswer string       `json:"student_answer"`
	AIScore       int          `json:"ai_score"`
	AIFeedback    string       `json:"ai_feedback"`
	FinalScore    *int         `json:"final_score"`
}

func (s Submission) IsFinalized() bool { return s.FinalScore != nil }

// NewSubmission is the payload posted by a student answering a question set.
type NewSubmission struct {
	QuestionSetID core.ID `json:"question_set_id"`
	Answer        string  `json:"answer"`
}

// NewQuestionSet is the payload posted by a teacher creating a question set.
// An empty AssignedUsernames makes the set public.
type NewQuestionSet struct {
	Title             string   `json:"title"`
	Question          string   `json:"question"`
	ModelAnswer       string   `json:"model_answer"`
	AssignedUsernames []string `json:"assigned_usernames"`
}

// ScoreUpdate is the payload finalizing a submission.
type ScoreUpdate struct {
	FinalScore *int `json:"final_score" validate:"required,min=0,max=10"`
}

// Sample is a model answer / student answer pair scored outside any question set.
type Sample struct {
	ModelAnswer   string `form:"model_answer" json:"model_answer" validate:"required,notblank"`
	StudentAnswer string `form:"student_answer" json:"student_answer" validate:"required,notblank"`
}

// Result is the AI evaluation of a Sample.
type Result struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}
