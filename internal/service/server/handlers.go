package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"pairchat/internal/model"
	"pairchat/internal/service/conversation"
	"pairchat/internal/utils/log"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type (
	openThreadRequest struct {
		OtherID model.PartyID `json:"other_id"`
	}

	contentRequest struct {
		Content string `json:"content"`
	}
)

func (s *HttpServer) OpenThread() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req openThreadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		id, err := s.store.OpenOrCreate(r.Context(), partyFromContext(r.Context()), req.OtherID)
		if err != nil {
			writeError(w, "open thread failed", err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]model.ThreadID{"thread_id": id})
	}
}

func (s *HttpServer) ReadMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := conversation.DefaultPageLimit, 0
		var err error
		if v := r.URL.Query().Get("limit"); v != "" {
			if limit, err = strconv.Atoi(v); err != nil {
				http.Error(w, "Invalid limit", http.StatusBadRequest)
				return
			}
		}
		if v := r.URL.Query().Get("offset"); v != "" {
			if offset, err = strconv.Atoi(v); err != nil {
				http.Error(w, "Invalid offset", http.StatusBadRequest)
				return
			}
		}

		page, err := s.store.Read(r.Context(), threadID(r), partyFromContext(r.Context()), limit, offset)
		if err != nil {
			writeError(w, "read messages failed", err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func (s *HttpServer) SendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req contentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		msg, err := s.store.Append(r.Context(), threadID(r), partyFromContext(r.Context()), req.Content)
		if err != nil {
			writeError(w, "send message failed", err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}

func (s *HttpServer) MarkRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := s.store.MarkRead(r.Context(), threadID(r), partyFromContext(r.Context()))
		if err != nil {
			writeError(w, "mark read failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"marked": n})
	}
}

func (s *HttpServer) EditMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req contentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		msg, err := s.store.EditMessage(r.Context(), threadID(r), partyFromContext(r.Context()), mux.Vars(r)["mid"], req.Content)
		if err != nil {
			writeError(w, "edit message failed", err)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	}
}

func (s *HttpServer) DeleteMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.store.DeleteMessage(r.Context(), threadID(r), partyFromContext(r.Context()), mux.Vars(r)["mid"])
		if err != nil {
			writeError(w, "delete message failed", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func threadID(r *http.Request) model.ThreadID {
	return model.ThreadID(mux.Vars(r)["id"])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("write response failed", zap.Error(err))
	}
}

// writeError maps conversation errors to a status. Authentication failures
// get a generic body so that a wrong pair and a corrupted file look alike.
func writeError(w http.ResponseWriter, msg string, err error) {
	status, body := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error(msg, zap.Error(err))
	} else {
		log.Debug(msg, zap.Error(err))
	}
	http.Error(w, body, status)
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, conversation.ErrInvalidIdentity),
		errors.Is(err, conversation.ErrInvalidContent),
		errors.Is(err, conversation.ErrInvalidPage):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, conversation.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, conversation.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, conversation.ErrAuthentication):
		return http.StatusInternalServerError, "Internal server error"
	case conversation.IsRetryable(err):
		return http.StatusServiceUnavailable, "Storage unavailable, retry later"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
