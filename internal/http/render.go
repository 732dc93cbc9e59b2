package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"

	"github.com/shopspring/decimal"

	"monthbook/internal/core"
	applog "monthbook/internal/log"
)

// page is the data every template receives. Data carries the view of the
// page itself.
type page struct {
	User   *core.User
	Notice string
	Alert  string
	Errors map[string]string
	Data   any
}

var templateFuncs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return core.FormatMoney(d) },
}

// parseTemplates builds one template set per page so every page can define
// its own "title" and "content" blocks on top of the shared layout.
func parseTemplates(fsys fs.FS) (map[string]*template.Template, error) {
	pages, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	layout, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(fsys, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	out := make(map[string]*template.Template, len(pages))
	for _, p := range pages {
		name := path.Base(p)
		if name == "layout.html" {
			continue
		}
		clone, err := layout.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(fsys, p); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		out[name] = clone
	}
	return out, nil
}

// render executes the named page into a buffer first so a template error
// never leaves a half written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, status int, p page) {
	logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentTemplate)

	t, ok := s.pages[name]
	if !ok {
		logger.ErrorContext(r.Context(), "Template not found", "template", name)
		InternalServerError("Something went wrong").Write(w, r)
		return
	}

	if p.User == nil {
		p.User = userFrom(r.Context())
	}
	if notice := takeFlash(w, r, flashNotice); p.Notice == "" {
		p.Notice = notice
	}
	if alert := takeFlash(w, r, flashAlert); p.Alert == "" {
		p.Alert = alert
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		logger.ErrorContext(r.Context(), "Template execution failed",
			applog.FieldOperation, applog.OpRender,
			"template", name,
			applog.FieldError, err)
		InternalServerError("Something went wrong").Write(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Views passed as page.Data.

type monthForm struct {
	Action string
	Method string
	Submit string
	Start  string
	End    string
	Money  string
	Errors map[string]string
}

type noteForm struct {
	Action string
	Method string
	Submit string
	Title  string
	Money  string
	Errors map[string]string
}

type monthsIndexView struct {
	Months []core.Month
}

type monthFormView struct {
	MonthID string
	Form    monthForm
}

type monthShowView struct {
	Summary core.MonthSummary
}

type notesIndexView struct {
	Month core.Month
	Notes []core.Note
	Total decimal.Decimal
}

type noteFormView struct {
	MonthID string
	NoteID  string
	Form    noteForm
}

type noteShowView struct {
	Note core.Note
}

type credentialsView struct {
	Email string
}

func newMonthForm() monthForm {
	return monthForm{Action: "/months", Submit: "Create month"}
}

func editMonthForm(m core.Month) monthForm {
	return monthForm{
		Action: "/months/" + m.ID,
		Method: http.MethodPut,
		Submit: "Update month",
		Start:  m.Start.String(),
		End:    m.End.String(),
		Money:  core.FormatMoney(m.Money),
	}
}

// withParams shows the submitted values in place of the stored ones.
func (f monthForm) withParams(p core.MonthParams, errs map[string]string) monthForm {
	if p.Start != nil {
		f.Start = *p.Start
	}
	if p.End != nil {
		f.End = *p.End
	}
	if p.Money != nil {
		f.Money = *p.Money
	}
	f.Errors = errs
	return f
}

func newNoteForm(monthID string) noteForm {
	return noteForm{Action: "/months/" + monthID + "/notes", Submit: "Create note"}
}

func editNoteForm(n core.Note) noteForm {
	return noteForm{
		Action: "/months/" + n.MonthID + "/notes/" + n.ID,
		Method: http.MethodPut,
		Submit: "Update note",
		Title:  n.Title,
		Money:  core.FormatMoney(n.Money),
	}
}

func (f noteForm) withParams(p core.NoteParams, errs map[string]string) noteForm {
	if p.Title != nil {
		f.Title = *p.Title
	}
	if p.Money != nil {
		f.Money = *p.Money
	}
	f.Errors = errs
	return f
}
