package http

import (
	"errors"
	"net/http"

	"monthbook/internal/core"
	applog "monthbook/internal/log"
	"monthbook/internal/policy"
)

func (s *Server) handleNotesIndex(w http.ResponseWriter, r *http.Request) {
	ctx, actor, monthID := r.Context(), actorFrom(r.Context()), r.PathValue("month_id")

	m, err := s.months.Get(ctx, actor, monthID)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	notes, err := s.notes.List(ctx, actor, monthID)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	total, err := s.notes.Sum(ctx, monthID)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	s.render(w, r, "notes_index.html", http.StatusOK, page{
		Data: notesIndexView{Month: m, Notes: notes, Total: total},
	})
}

func (s *Server) handleNotesNew(w http.ResponseWriter, r *http.Request) {
	actor, monthID := actorFrom(r.Context()), r.PathValue("month_id")
	if _, err := s.months.Get(r.Context(), actor, monthID); err != nil {
		s.fail(w, r, err, "")
		return
	}
	if err := policy.Authorize(actor, policy.ActionCreate, policy.NoteType{}); err != nil {
		s.fail(w, r, err, "")
		return
	}
	s.render(w, r, "notes_new.html", http.StatusOK, page{
		Data: noteFormView{MonthID: monthID, Form: newNoteForm(monthID)},
	})
}

func (s *Server) handleNotesCreate(w http.ResponseWriter, r *http.Request) {
	monthID := r.PathValue("month_id")
	params, err := parseNoteParams(w, r)
	if err != nil {
		BadRequestError("Malformed form").Write(w, r)
		return
	}

	n, err := s.notes.Create(r.Context(), actorFrom(r.Context()), monthID, params)
	if errors.Is(err, core.ErrValidation) {
		s.render(w, r, "notes_new.html", http.StatusUnprocessableEntity, page{
			Alert: "Note has not been created.",
			Data: noteFormView{
				MonthID: monthID,
				Form:    newNoteForm(monthID).withParams(params, core.FieldErrors(err)),
			},
		})
		return
	}
	if err != nil {
		s.fail(w, r, err, "")
		return
	}

	s.wrote(r, applog.ComponentNote, applog.OpCreate, n.ID)
	NewResponse().Notice("Note has been created.").RedirectTo(notePath(monthID, n.ID)).Write(w, r)
}

func (s *Server) handleNotesShow(w http.ResponseWriter, r *http.Request) {
	monthID := r.PathValue("month_id")
	n, err := s.notes.Get(r.Context(), actorFrom(r.Context()), monthID, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, monthID)
		return
	}
	s.render(w, r, "notes_show.html", http.StatusOK, page{Data: noteShowView{Note: n}})
}

func (s *Server) handleNotesEdit(w http.ResponseWriter, r *http.Request) {
	monthID := r.PathValue("month_id")
	n, err := s.notes.Get(r.Context(), actorFrom(r.Context()), monthID, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, monthID)
		return
	}
	s.render(w, r, "notes_edit.html", http.StatusOK, page{
		Data: noteFormView{MonthID: monthID, NoteID: n.ID, Form: editNoteForm(n)},
	})
}

func (s *Server) handleNotesUpdate(w http.ResponseWriter, r *http.Request) {
	monthID, id := r.PathValue("month_id"), r.PathValue("id")
	params, err := parseNoteParams(w, r)
	if err != nil {
		BadRequestError("Malformed form").Write(w, r)
		return
	}

	actor := actorFrom(r.Context())
	n, err := s.notes.Update(r.Context(), actor, monthID, id, params)
	if errors.Is(err, core.ErrValidation) {
		current, getErr := s.notes.Get(r.Context(), actor, monthID, id)
		if getErr != nil {
			s.fail(w, r, getErr, monthID)
			return
		}
		s.render(w, r, "notes_edit.html", http.StatusUnprocessableEntity, page{
			Alert: "Note has not been updated.",
			Data: noteFormView{
				MonthID: monthID,
				NoteID:  id,
				Form:    editNoteForm(current).withParams(params, core.FieldErrors(err)),
			},
		})
		return
	}
	if err != nil {
		s.fail(w, r, err, monthID)
		return
	}

	s.wrote(r, applog.ComponentNote, applog.OpUpdate, n.ID)
	NewResponse().Notice("Note has been updated.").RedirectTo(notePath(monthID, n.ID)).Write(w, r)
}

// handleNotesDestroy deletes the note and returns to its month.
func (s *Server) handleNotesDestroy(w http.ResponseWriter, r *http.Request) {
	monthID, id := r.PathValue("month_id"), r.PathValue("id")
	if err := s.notes.Delete(r.Context(), actorFrom(r.Context()), monthID, id); err != nil {
		s.fail(w, r, err, monthID)
		return
	}
	s.wrote(r, applog.ComponentNote, applog.OpDelete, id)
	NewResponse().Notice("Note has been deleted.").RedirectTo(monthPath(monthID)).Write(w, r)
}
