package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/openlms/lticore/internal/registry"
	"github.com/openlms/lticore/pkg/lti1p1"
)

/*
LTI 1.1 grade passback.

Two tool-facing services share the OAuth1 body-signing scheme:

  POST /lti11/outcomes/{toolID}          imsx POX XML Outcomes service
  GET/PUT/DELETE /lti2/result/{...}      LTI 2.0 Result JSON service

Signature failures are 401; malformed payloads are well-formed service
responses (XML failure envelopes for Outcomes, 400 JSON for Result).
*/

const maxOutcomeBody = 1 << 20 // 1 MiB

func (s *Server) outcomeConsumer(r *http.Request) (*lti1p1.Consumer, registry.Tool, error) {
	tool, err := s.Registry.Get(r.Context(), chi.URLParam(r, "toolID"))
	if err != nil {
		return nil, registry.Tool{}, err
	}
	c := lti1p1.NewConsumer(tool.LaunchURL, tool.OAuthKey, tool.OAuthSecret)
	base := strings.TrimSuffix(s.PublicURL, "/")
	c.SetOutcomeServiceURL(base + "/lti11/outcomes/" + tool.ID)
	return c, tool, nil
}

func (s *Server) handleOutcomes(w http.ResponseWriter, r *http.Request) {
	c, tool, err := s.outcomeConsumer(r)
	if err != nil {
		writeErr(w, http.StatusNotFound, "unknown tool")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxOutcomeBody))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if err := lti1p1.VerifyBodySignature(r, body, tool.OAuthSecret, c.OutcomeServiceURL()); err != nil {
		writeErr(w, http.StatusUnauthorized, "signature verification failed")
		return
	}

	req, err := lti1p1.ParseOutcomeXML(body)
	if err != nil {
		writeOutcomeXML(w, lti1p1.FailureOutcomeResponse("", err.Error()))
		return
	}
	if req.Action != lti1p1.ActionReplaceResult {
		writeOutcomeXML(w, lti1p1.UnsupportedOutcomeResponse())
		return
	}
	if s.Scores == nil {
		writeOutcomeXML(w, lti1p1.FailureOutcomeResponse(req.MessageIdentifier, "score storage unavailable"))
		return
	}
	score := req.Score
	if err := s.Scores.SetScore(r.Context(), tool.ID, req.SourcedID, &score, ""); err != nil {
		writeOutcomeXML(w, lti1p1.FailureOutcomeResponse(req.MessageIdentifier, "unable to store score"))
		return
	}
	writeOutcomeXML(w, lti1p1.SuccessOutcomeResponse(req.MessageIdentifier, req.SourcedID, req.Score))
}

func writeOutcomeXML(w http.ResponseWriter, resp lti1p1.OutcomeResponse) {
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(resp.XML()))
}

// ---------- LTI 2.0 Result JSON service ----------

func (s *Server) handleResultGet(w http.ResponseWriter, r *http.Request) {
	c, tool, err := s.outcomeConsumer(r)
	if err != nil {
		writeErr(w, http.StatusNotFound, "unknown tool")
		return
	}
	if err := c.VerifyResultHeaders(r, nil, false); err != nil {
		writeErr(w, http.StatusUnauthorized, "signature verification failed")
		return
	}
	if s.Scores == nil {
		writeErr(w, http.StatusNotImplemented, "score storage unavailable")
		return
	}
	score, comment, err := s.Scores.GetScore(r.Context(), tool.ID, chi.URLParam(r, "userID"))
	if err != nil {
		writeErr(w, http.StatusNotFound, "no result")
		return
	}
	w.Header().Set("Content-Type", lti1p1.ContentTypeResultJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(lti1p1.GetResult(score, comment))
}

func (s *Server) handleResultPut(w http.ResponseWriter, r *http.Request) {
	c, tool, err := s.outcomeConsumer(r)
	if err != nil {
		writeErr(w, http.StatusNotFound, "unknown tool")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxOutcomeBody))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if err := c.VerifyResultHeaders(r, body, true); err != nil {
		if errors.Is(err, lti1p1.ErrInvalidContentType) {
			writeErr(w, http.StatusBadRequest, err.Error())
			return
		}
		writeErr(w, http.StatusUnauthorized, "signature verification failed")
		return
	}

	score, comment, err := lti1p1.ParseResultJSON(body)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.Scores == nil {
		writeErr(w, http.StatusNotImplemented, "score storage unavailable")
		return
	}
	userID := chi.URLParam(r, "userID")
	// A PUT without a resultScore clears the grade, same as DELETE.
	if score == nil {
		if err := s.Scores.DeleteScore(r.Context(), tool.ID, userID); err != nil {
			writeErr(w, http.StatusInternalServerError, "unable to clear score")
			return
		}
	} else if err := s.Scores.SetScore(r.Context(), tool.ID, userID, score, comment); err != nil {
		writeErr(w, http.StatusInternalServerError, "unable to store score")
		return
	}
	writeJSON(w, http.StatusOK, lti1p1.PutResult())
}

func (s *Server) handleResultDelete(w http.ResponseWriter, r *http.Request) {
	c, tool, err := s.outcomeConsumer(r)
	if err != nil {
		writeErr(w, http.StatusNotFound, "unknown tool")
		return
	}
	if err := c.VerifyResultHeaders(r, nil, false); err != nil {
		writeErr(w, http.StatusUnauthorized, "signature verification failed")
		return
	}
	if s.Scores == nil {
		writeErr(w, http.StatusNotImplemented, "score storage unavailable")
		return
	}
	if err := s.Scores.DeleteScore(r.Context(), tool.ID, chi.URLParam(r, "userID")); err != nil {
		writeErr(w, http.StatusInternalServerError, "unable to clear score")
		return
	}
	writeJSON(w, http.StatusOK, lti1p1.DeleteResult())
}
