package http

import (
	"errors"
	"net/http"

	"monthbook/internal/core"
	applog "monthbook/internal/log"
	"monthbook/internal/policy"
)

func (s *Server) handleMonthsIndex(w http.ResponseWriter, r *http.Request) {
	months, err := s.months.List(r.Context(), actorFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	s.render(w, r, "months_index.html", http.StatusOK, page{Data: monthsIndexView{Months: months}})
}

func (s *Server) handleMonthsNew(w http.ResponseWriter, r *http.Request) {
	if err := policy.Authorize(actorFrom(r.Context()), policy.ActionCreate, policy.MonthType{}); err != nil {
		s.fail(w, r, err, "")
		return
	}
	s.render(w, r, "months_new.html", http.StatusOK, page{Data: monthFormView{Form: newMonthForm()}})
}

func (s *Server) handleMonthsCreate(w http.ResponseWriter, r *http.Request) {
	params, err := parseMonthParams(w, r)
	if err != nil {
		BadRequestError("Malformed form").Write(w, r)
		return
	}

	m, err := s.months.Create(r.Context(), actorFrom(r.Context()), params)
	if errors.Is(err, core.ErrValidation) {
		s.render(w, r, "months_new.html", http.StatusUnprocessableEntity, page{
			Alert: "Month is not created!",
			Data:  monthFormView{Form: newMonthForm().withParams(params, core.FieldErrors(err))},
		})
		return
	}
	if err != nil {
		s.fail(w, r, err, "")
		return
	}

	s.wrote(r, applog.ComponentMonth, applog.OpCreate, m.ID)
	NewResponse().Notice("Month successfully created!").RedirectTo(monthPath(m.ID)).Write(w, r)
}

// handleMonthsShow renders the month with its notes and totals.
func (s *Server) handleMonthsShow(w http.ResponseWriter, r *http.Request) {
	summary, err := s.notes.Summary(r.Context(), actorFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	s.render(w, r, "months_show.html", http.StatusOK, page{Data: monthShowView{Summary: summary}})
}

func (s *Server) handleMonthsEdit(w http.ResponseWriter, r *http.Request) {
	m, err := s.months.Get(r.Context(), actorFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	s.render(w, r, "months_edit.html", http.StatusOK, page{
		Data: monthFormView{MonthID: m.ID, Form: editMonthForm(m)},
	})
}

func (s *Server) handleMonthsUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	params, err := parseMonthParams(w, r)
	if err != nil {
		BadRequestError("Malformed form").Write(w, r)
		return
	}

	actor := actorFrom(r.Context())
	m, err := s.months.Update(r.Context(), actor, id, params)
	if errors.Is(err, core.ErrValidation) {
		current, getErr := s.months.Get(r.Context(), actor, id)
		if getErr != nil {
			s.fail(w, r, getErr, "")
			return
		}
		s.render(w, r, "months_edit.html", http.StatusUnprocessableEntity, page{
			Alert: "Month not updated!",
			Data: monthFormView{
				MonthID: id,
				Form:    editMonthForm(current).withParams(params, core.FieldErrors(err)),
			},
		})
		return
	}
	if err != nil {
		s.fail(w, r, err, "")
		return
	}

	s.wrote(r, applog.ComponentMonth, applog.OpUpdate, m.ID)
	NewResponse().Notice("Month updated!").RedirectTo(monthPath(m.ID)).Write(w, r)
}

func (s *Server) handleMonthsDestroy(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.months.Delete(r.Context(), actorFrom(r.Context()), id); err != nil {
		s.fail(w, r, err, "")
		return
	}
	s.wrote(r, applog.ComponentMonth, applog.OpDelete, id)
	NewResponse().Notice("Month destroyed!").RedirectTo("/months").Write(w, r)
}

// wrote counts a successful write and logs it against the request.
func (s *Server) wrote(r *http.Request, component, op, id string) {
	s.writes.Add(1)
	applog.FromContext(r.Context()).WithComponent(component).InfoContext(r.Context(), "Record written",
		applog.FieldOperation, op,
		applog.FieldRecordID, id)
}
