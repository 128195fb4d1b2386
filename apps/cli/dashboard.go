package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"

	"github.com/trezcool/perception/core"
	"github.com/trezcool/perception/core/dashboard"
	"github.com/trezcool/perception/core/evaluation"
	"github.com/trezcool/perception/core/user"
)

func (cli *commandLine) newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
}

func finalScore(sub evaluation.Submission) string {
	if !sub.IsFinalized() {
		return "pending"
	}
	return strconv.Itoa(*sub.FinalScore)
}

func assignees(qs evaluation.QuestionSet) string {
	if qs.IsPublic() {
		return "everyone"
	}
	names := make([]string, 0, len(qs.AssignedStudents))
	for _, usr := range qs.AssignedStudents {
		names = append(names, usr.Username)
	}
	return strings.Join(names, ", ")
}

func (cli *commandLine) listSets() error {
	usr, err := cli.requireSession()
	if err != nil {
		return err
	}

	tw := cli.newTable()
	if usr.IsTeacher() {
		d := dashboard.NewTeacher(cli.client, cli.validate, cli.translator)
		if err := d.Refresh(cli.ctx); err != nil {
			return failure(err, dashboard.FetchSetsFailedMsg)
		}
		fmt.Fprintln(tw, "ID\tTITLE\tASSIGNED TO")
		for _, qs := range d.View().Sets {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", qs.ID, qs.Title, assignees(qs))
		}
		return tw.Flush()
	}

	d := dashboard.NewStudent(cli.client, cli.validate, cli.translator)
	if err := d.Refresh(cli.ctx); err != nil {
		return failure(err, dashboard.LoadFailedMsg)
	}
	fmt.Fprintln(tw, "ID\tTITLE\tBY\tQUESTION")
	for _, qs := range d.View().Available {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", qs.ID, qs.Title, qs.Creator.Username, qs.Question)
	}
	return tw.Flush()
}

func (cli *commandLine) listSubmissions(setID string) error {
	usr, err := cli.requireSession()
	if err != nil {
		return err
	}

	if usr.IsTeacher() {
		if setID == "" {
			return errors.New("a question set is required: submissions -set ID")
		}
		d := dashboard.NewTeacher(cli.client, cli.validate, cli.translator)
		if err := d.Open(cli.ctx, core.ID(setID)); err != nil {
			return failure(err, dashboard.LoadSubsFailedMsg)
		}
		return cli.printSetSubmissions(d.View().Submissions)
	}

	d := dashboard.NewStudent(cli.client, cli.validate, cli.translator)
	if err := d.Refresh(cli.ctx); err != nil {
		return failure(err, dashboard.LoadFailedMsg)
	}
	tw := cli.newTable()
	fmt.Fprintln(tw, "ID\tQUESTION SET\tAI SCORE\tFINAL SCORE\tAI FEEDBACK")
	for _, sub := range d.View().Submissions {
		var title string
		if sub.QuestionSet != nil {
			title = sub.QuestionSet.Title
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", sub.ID, title, sub.AIScore, finalScore(sub), sub.AIFeedback)
	}
	return tw.Flush()
}

func (cli *commandLine) printSetSubmissions(subs []evaluation.Submission) error {
	tw := cli.newTable()
	fmt.Fprintln(tw, "ID\tSTUDENT\tAI SCORE\tFINAL SCORE\tANSWER")
	for _, sub := range subs {
		var student string
		if sub.Student != nil {
			student = sub.Student.Username
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", sub.ID, student, sub.AIScore, finalScore(sub), sub.StudentAnswer)
	}
	return tw.Flush()
}

func (cli *commandLine) submit(setID, answer string) error {
	if _, err := cli.requireSession(user.RoleStudent); err != nil {
		return err
	}

	d := dashboard.NewStudent(cli.client, cli.validate, cli.translator)
	sub, err := d.SubmitAnswer(cli.ctx, evaluation.AnswerForm{QuestionSetID: setID, Answer: answer})
	if err != nil && sub.ID.IsZero() {
		return failure(err, dashboard.SubmitFailedMsg)
	}
	fmt.Fprintln(cli.out, dashboard.SubmittedMsg)
	fmt.Fprintf(cli.out, "AI score: %d/%d\nAI feedback: %s\n", sub.AIScore, evaluation.MaxScore, sub.AIFeedback)
	return nil
}

func (cli *commandLine) createSet(title, question, modelAnswer, assign string) error {
	if _, err := cli.requireSession(user.RoleTeacher); err != nil {
		return err
	}

	d := dashboard.NewTeacher(cli.client, cli.validate, cli.translator)
	qs, err := d.CreateQuestionSet(cli.ctx, evaluation.QuestionSetForm{
		Title:       title,
		Question:    question,
		ModelAnswer: modelAnswer,
		Assignees:   assign,
	})
	if err != nil && qs.ID.IsZero() {
		return failure(err, dashboard.CreateFailedMsg)
	}
	fmt.Fprintf(cli.out, "%s (id: %s, assigned to %s)\n", dashboard.CreatedMsg, qs.ID, assignees(qs))
	return nil
}

func (cli *commandLine) finalize(subID, score, setID string) error {
	if _, err := cli.requireSession(user.RoleTeacher); err != nil {
		return err
	}

	d := dashboard.NewTeacher(cli.client, cli.validate, cli.translator)
	sub, err := d.Finalize(cli.ctx, core.ID(subID), score)
	if err != nil {
		return failure(err, dashboard.FinalizeFailedMsg)
	}
	fmt.Fprintf(cli.out, "%s %s: %s/%d\n", dashboard.FinalizedMsg, sub.ID, finalScore(sub), evaluation.MaxScore)

	if setID == "" {
		return nil
	}
	if err := d.Open(cli.ctx, core.ID(setID)); err != nil {
		return failure(err, dashboard.LoadSubsFailedMsg)
	}
	return cli.printSetSubmissions(d.View().Submissions)
}

func (cli *commandLine) evaluate(modelAnswer, answer string) error {
	if _, err := cli.requireSession(user.RoleTeacher); err != nil {
		return err
	}

	d := dashboard.NewTeacher(cli.client, cli.validate, cli.translator)
	res, err := d.Evaluate(cli.ctx, evaluation.Sample{ModelAnswer: modelAnswer, StudentAnswer: answer})
	if err != nil {
		return failure(err, dashboard.EvaluateFailedMsg)
	}
	fmt.Fprintf(cli.out, "Score: %d/%d\nFeedback: %s\n", res.Score, evaluation.MaxScore, res.Feedback)
	return nil
}
