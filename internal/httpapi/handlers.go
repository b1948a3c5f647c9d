package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/smokyabdulrahman/prayerd/internal/notify"
	"github.com/smokyabdulrahman/prayerd/internal/prayer"
)

func kindParam(w http.ResponseWriter, r *http.Request) (prayer.Kind, bool) {
	k, err := prayer.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		failure(w, http.StatusNotFound, err.Error())
		return 0, false
	}
	return k, true
}

func indexParam(w http.ResponseWriter, r *http.Request, kind prayer.Kind) (int, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err == nil {
		_, err = prayer.NameAt(kind, idx)
	}
	if err != nil {
		failure(w, http.StatusNotFound, fmt.Sprintf("no %s prayer at index %q", kind, chi.URLParam(r, "index")))
		return 0, false
	}
	return idx, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		failure(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	success(w, s.core.Status())
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	st, err := s.core.Resync(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, Envelope{Status: http.StatusBadGateway, Message: err.Error(), Data: st})
		return
	}
	success(w, st)
}

func (s *Server) handleSequence(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	success(w, s.core.View(kind))
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	v := s.core.View(kind)
	if v.Next == nil {
		failure(w, http.StatusNotFound, "no upcoming prayer")
		return
	}
	success(w, v.Next)
}

func (s *Server) handlePrev(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	v := s.core.View(kind)
	if v.Prev == nil {
		failure(w, http.StatusNotFound, "no previous prayer")
		return
	}
	success(w, v.Prev)
}

type countdownBody struct {
	Kind             prayer.Kind    `json:"kind"`
	Prayer           *prayer.Prayer `json:"prayer,omitempty"`
	SecondsRemaining int64          `json:"seconds_remaining"`
	Clock            string         `json:"clock"`
	DisplayDate      string         `json:"display_date"`
}

func (s *Server) handleCountdown(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	v := s.core.View(kind)
	body := countdownBody{Kind: kind, DisplayDate: v.DisplayDate}
	if v.Countdown.Valid {
		p := v.Countdown.Prayer
		body.Prayer = &p
		body.SecondsRemaining = v.Countdown.SecondsRemaining
		body.Clock = v.Countdown.Clock()
	}
	success(w, body)
}

func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	ov, ok := s.core.Overlay()
	if !ok {
		success(w, map[string]bool{"open": false})
		return
	}
	success(w, ov)
}

type selectionBody struct {
	Index int `json:"index"`
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	var body selectionBody
	if !decode(w, r, &body) {
		return
	}
	if err := s.core.SetSelectedPrayerIndex(kind, body.Index); err != nil {
		failure(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	success(w, body)
}

func (s *Server) handleToggleOverlay(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	open, err := s.core.ToggleOverlay(kind)
	if err != nil {
		failure(w, http.StatusConflict, err.Error())
		return
	}
	if !open {
		success(w, map[string]bool{"open": false})
		return
	}
	ov, _ := s.core.Overlay()
	success(w, ov)
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	s.core.OpenDetail(kind)
	success(w, map[string]bool{"open": true})
}

func (s *Server) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	idx, ok := indexParam(w, r, kind)
	if !ok {
		return
	}
	pref, err := s.core.Preference(r.Context(), kind, idx)
	if err != nil {
		failure(w, http.StatusInternalServerError, err.Error())
		return
	}
	success(w, pref)
}

func (s *Server) handlePutAlert(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	idx, ok := indexParam(w, r, kind)
	if !ok {
		return
	}
	pref := notify.DefaultPreference()
	if !decode(w, r, &pref) {
		return
	}
	if err := pref.Validate(); err != nil {
		failure(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := s.core.UpdatePreference(r.Context(), kind, idx, pref); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, notify.ErrPermissionDenied) {
			status = http.StatusForbidden
		}
		failure(w, status, err.Error())
		return
	}
	success(w, pref)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	recs, err := s.core.Notifications(r.Context())
	if err != nil {
		failure(w, http.StatusInternalServerError, err.Error())
		return
	}
	success(w, recs)
}
