package echoportal

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/perception/core"
	"github.com/trezcool/perception/core/dashboard"
	"github.com/trezcool/perception/core/evaluation"
)

const dashboardTitle = "Dashboard"

type studentData struct {
	dashboard.StudentView
	// AnswerSetID is the question set of the answer being re-rendered after a failure.
	AnswerSetID string
}

type teacherData struct {
	dashboard.TeacherView
	Result *evaluation.Result
}

func (s *server) studentDashboard(ctx echo.Context) *dashboard.Student {
	return dashboard.NewStudent(getClient(ctx), s.deps.Validate, s.deps.Translator)
}

func (s *server) teacherDashboard(ctx echo.Context) *dashboard.Teacher {
	return dashboard.NewTeacher(getClient(ctx), s.deps.Validate, s.deps.Translator)
}

// dashboard renders the dashboard of the user's role.
// Teachers open a question set with ?set=<id>.
func (s *server) dashboard(ctx echo.Context) error {
	usr, _ := getStore(ctx).User()
	p := s.newPage(ctx, dashboardTitle)
	rctx := ctx.Request().Context()

	switch {
	case usr.IsStudent():
		d := s.studentDashboard(ctx)
		status := http.StatusOK
		if err := d.Refresh(rctx); err != nil {
			s.deps.Logger.Warn("loading student dashboard", err, usr)
			p.notice(flashError, core.UserMessage(err, dashboard.LoadFailedMsg))
			status = failureStatus(err)
		}
		p.Data = studentData{StudentView: d.View()}
		return ctx.Render(status, "student", p)

	case usr.IsTeacher():
		d := s.teacherDashboard(ctx)
		status := http.StatusOK
		if err := d.Refresh(rctx); err != nil {
			s.deps.Logger.Warn("loading teacher dashboard", err, usr)
			p.notice(flashError, core.UserMessage(err, dashboard.FetchSetsFailedMsg))
			status = failureStatus(err)
		} else if setID := core.CleanString(ctx.QueryParam("set")); setID != "" {
			if err := d.Open(rctx, core.ID(setID)); err != nil {
				p.notice(flashError, core.UserMessage(err, dashboard.LoadSubsFailedMsg))
				status = failureStatus(err)
			}
		}
		p.Data = teacherData{TeacherView: d.View()}
		return ctx.Render(status, "teacher", p)

	default:
		return errAccessDenied
	}
}

func (s *server) submitAnswer(ctx echo.Context) error {
	var form evaluation.AnswerForm
	if err := ctx.Bind(&form); err != nil {
		return err
	}

	d := s.studentDashboard(ctx)
	p := s.newPage(ctx, dashboardTitle)
	data := studentData{}
	status := http.StatusOK

	sub, err := d.SubmitAnswer(ctx.Request().Context(), form)
	switch {
	case err == nil:
		p.notice(flashSuccess, dashboard.SubmittedMsg)
	case !sub.ID.IsZero(): // submitted, only the refresh failed
		p.notice(flashSuccess, dashboard.SubmittedMsg)
	case core.IsValidationError(err):
		status = http.StatusUnprocessableEntity
		p.Errors = fieldErrors(err)
		p.Form = &form
		data.AnswerSetID = form.QuestionSetID
	default:
		status = failureStatus(err)
		p.notice(flashError, core.UserMessage(err, dashboard.SubmitFailedMsg))
		p.Form = &form
		data.AnswerSetID = form.QuestionSetID
	}

	if !d.View().Loaded {
		if err := d.Refresh(ctx.Request().Context()); err != nil && status == http.StatusOK {
			p.notice(flashError, core.UserMessage(err, dashboard.LoadFailedMsg))
		}
	}
	data.StudentView = d.View()
	p.Data = data
	return ctx.Render(status, "student", p)
}

func (s *server) createQuestionSet(ctx echo.Context) error {
	var form evaluation.QuestionSetForm
	if err := ctx.Bind(&form); err != nil {
		return err
	}

	d := s.teacherDashboard(ctx)
	p := s.newPage(ctx, dashboardTitle)
	status := http.StatusOK

	qs, err := d.CreateQuestionSet(ctx.Request().Context(), form)
	switch {
	case err == nil, !qs.ID.IsZero():
		p.notice(flashSuccess, dashboard.CreatedMsg)
	case core.IsValidationError(err):
		status = http.StatusUnprocessableEntity
		p.Errors = fieldErrors(err)
		p.Form = &form
	default:
		status = failureStatus(err)
		p.notice(flashError, core.UserMessage(err, dashboard.CreateFailedMsg))
		p.Form = &form
	}
	return s.renderTeacher(ctx, d, p, status, nil)
}

// finalizeSubmission sets a submission's final score, then renders the question set it belongs to.
func (s *server) finalizeSubmission(ctx echo.Context) error {
	subID := core.ID(ctx.Param("id"))
	setID := core.ID(core.CleanString(ctx.FormValue("set")))

	d := s.teacherDashboard(ctx)
	p := s.newPage(ctx, dashboardTitle)
	status := http.StatusOK

	if _, err := d.Finalize(ctx.Request().Context(), subID, ctx.FormValue("final_score")); err != nil {
		if core.IsValidationError(err) {
			status = http.StatusUnprocessableEntity
			p.Errors = fieldErrors(err)
		} else {
			status = failureStatus(err)
		}
		p.notice(flashError, core.UserMessage(err, dashboard.FinalizeFailedMsg))
	} else {
		p.notice(flashSuccess, dashboard.FinalizedMsg)
	}

	if !setID.IsZero() {
		if err := d.Open(ctx.Request().Context(), setID); err != nil && status == http.StatusOK {
			status = failureStatus(err)
			p.notice(flashError, core.UserMessage(err, dashboard.LoadSubsFailedMsg))
		}
	}
	return s.renderTeacher(ctx, d, p, status, nil)
}

// evaluateSample has the AI score a sample answer.
func (s *server) evaluateSample(ctx echo.Context) error {
	var sample evaluation.Sample
	if err := ctx.Bind(&sample); err != nil {
		return err
	}

	d := s.teacherDashboard(ctx)
	p := s.newPage(ctx, dashboardTitle)
	status := http.StatusOK

	res, err := d.Evaluate(ctx.Request().Context(), sample)
	switch {
	case err == nil:
	case core.IsValidationError(err):
		status = http.StatusUnprocessableEntity
		p.Errors = map[string]string{}
		for fld, msg := range fieldErrors(err) {
			if fld == "model_answer" { // the create form has one too
				fld = "sample_model_answer"
			}
			p.Errors[fld] = msg
		}
	default:
		status = failureStatus(err)
		p.notice(flashError, core.UserMessage(err, dashboard.EvaluateFailedMsg))
	}

	var result *evaluation.Result
	if err == nil {
		result = &res
	}
	return s.renderTeacher(ctx, d, p, status, result)
}

// renderTeacher renders the teacher dashboard, loading the question sets if `d` did not yet.
func (s *server) renderTeacher(ctx echo.Context, d *dashboard.Teacher, p *page, status int, result *evaluation.Result) error {
	if !d.View().Loaded {
		if err := d.Refresh(ctx.Request().Context()); err != nil && status == http.StatusOK {
			status = failureStatus(err)
			p.notice(flashError, core.UserMessage(err, dashboard.FetchSetsFailedMsg))
		}
	}
	p.Data = teacherData{TeacherView: d.View(), Result: result}
	return ctx.Render(status, "teacher", p)
}
