package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pathakanu/billcal/internal/bills"
	"github.com/pathakanu/billcal/internal/calendar"
	"github.com/pathakanu/billcal/internal/goals"
	"github.com/pathakanu/billcal/internal/model"
	"github.com/pathakanu/billcal/internal/notify"
	"github.com/pathakanu/billcal/internal/twilio"
)

type calendarResponse struct {
	calendar.Grid
	Prev monthRef `json:"prev"`
	Next monthRef `json:"next"`
}

type monthRef struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: year", errBadRequest))
		return
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: month", errBadRequest))
		return
	}

	grid, err := s.svc.Calendar.Load(r.Context(), sessionFrom(r), year, time.Month(month))
	if err != nil {
		s.writeError(w, err)
		return
	}
	py, pm := calendar.Prev(year, time.Month(month))
	ny, nm := calendar.Next(year, time.Month(month))
	writeJSON(w, http.StatusOK, calendarResponse{
		Grid: grid,
		Prev: monthRef{Year: py, Month: pm},
		Next: monthRef{Year: ny, Month: nm},
	})
}

func (s *Server) writeDay(w http.ResponseWriter, status int, day calendar.Day, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, status, day)
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	day, err := s.svc.Editor.Day(r.Context(), sessionFrom(r), chi.URLParam(r, "date"))
	s.writeDay(w, http.StatusOK, day, err)
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var in bills.NewItem
	if err := decode(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	day, err := s.svc.Editor.AddItem(r.Context(), sessionFrom(r), chi.URLParam(r, "date"), in)
	s.writeDay(w, http.StatusCreated, day, err)
}

func (s *Server) handleTogglePaid(w http.ResponseWriter, r *http.Request) {
	day, err := s.svc.Editor.TogglePaid(r.Context(), sessionFrom(r), chi.URLParam(r, "id"))
	s.writeDay(w, http.StatusOK, day, err)
}

type statusRequest struct {
	Status model.BillStatus `json:"status"`
	PADate string           `json:"pa_date"`
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var in statusRequest
	if err := decode(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	day, err := s.svc.Editor.SetStatus(r.Context(), sessionFrom(r), chi.URLParam(r, "id"), in.Status, in.PADate)
	s.writeDay(w, http.StatusOK, day, err)
}

func (s *Server) handleSetPADate(w http.ResponseWriter, r *http.Request) {
	var in statusRequest
	if err := decode(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	day, err := s.svc.Editor.SetPaymentArrangementDate(r.Context(), sessionFrom(r), chi.URLParam(r, "id"), in.PADate)
	s.writeDay(w, http.StatusOK, day, err)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	day, err := s.svc.Editor.DeleteItem(r.Context(), sessionFrom(r), chi.URLParam(r, "id"))
	s.writeDay(w, http.StatusOK, day, err)
}

func (s *Server) writeBoard(w http.ResponseWriter, status int, board goals.Board, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, status, board)
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	board, err := s.svc.Goals.List(r.Context(), sessionFrom(r))
	s.writeBoard(w, http.StatusOK, board, err)
}

func (s *Server) handleAddGoal(w http.ResponseWriter, r *http.Request) {
	var in goals.NewGoal
	if err := decode(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	board, err := s.svc.Goals.AddGoal(r.Context(), sessionFrom(r), in)
	s.writeBoard(w, http.StatusCreated, board, err)
}

func (s *Server) handleToggleGoal(w http.ResponseWriter, r *http.Request) {
	board, err := s.svc.Goals.ToggleStatus(r.Context(), sessionFrom(r), chi.URLParam(r, "id"))
	s.writeBoard(w, http.StatusOK, board, err)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	board, err := s.svc.Goals.DeleteGoal(r.Context(), sessionFrom(r), chi.URLParam(r, "id"))
	s.writeBoard(w, http.StatusOK, board, err)
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.svc.Assistant.History(r.Context(), sessionFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Message string `json:"message"`
	}
	if err := decode(r, &in); err != nil {
		s.writeError(w, err)
		return
	}

	reply, err := s.svc.Assistant.Chat(r.Context(), sessionFrom(r), in.Message)
	if err != nil {
		if reply.Failed {
			// The fallback is already stored as the assistant turn.
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": reply.Text})
			return
		}
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

type subscriptionRequest struct {
	WhatsApp string `json:"whatsapp"`
	Granted  bool   `json:"granted"`
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var in subscriptionRequest
	if err := decode(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	sess := sessionFrom(r)
	sub := &model.Subscription{
		UserID:   sess.UserID,
		WhatsApp: twilio.NormalizeWhatsAppAddress(in.WhatsApp),
		Granted:  in.Granted,
	}
	if err := s.svc.Subscriptions.Save(r.Context(), sub); err != nil {
		s.writeError(w, err)
		return
	}
	s.svc.Scheduler.Forget(sess.UserID)

	saved, err := s.svc.Subscriptions.Get(r.Context(), sess.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleNotificationCheck(w http.ResponseWriter, r *http.Request) {
	fired, err := s.svc.Scheduler.Check(r.Context(), sessionFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if fired == nil {
		fired = []notify.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": fired})
}
