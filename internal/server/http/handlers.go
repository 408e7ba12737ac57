package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/bulk"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/errs"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/validate"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) decodeCredentials(w http.ResponseWriter, r *http.Request) (credentials, error) {
	var c credentials
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.BodyMaxBytes))
	if err := dec.Decode(&c); err != nil {
		return c, errs.Invalid("body", "expected a JSON object")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return c, errs.Invalid("body", "unexpected data after the JSON object")
	}
	return c, nil
}

// decodeBody reads a JSON object of at most BodyMaxBytes.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	return validate.Decode(http.MaxBytesReader(w, r.Body, s.opts.BodyMaxBytes))
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	c, err := s.decodeCredentials(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tok, err := s.auth.Register(r.Context(), c.Email, c.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tok)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	c, err := s.decodeCredentials(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tok, err := s.auth.Login(r.Context(), c.Email, c.Password, remoteIP(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (s *Server) listBuyers(w http.ResponseWriter, r *http.Request) {
	f, page, err := validate.Filter(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.buyers.List(r.Context(), ActorFromCtx(r.Context()), f, page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createBuyer(w http.ResponseWriter, r *http.Request) {
	raw, err := s.decodeBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := s.buyers.Create(r.Context(), ActorFromCtx(r.Context()), raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) getBuyer(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	d, err := s.buyers.Get(r.Context(), ActorFromCtx(r.Context()), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) updateBuyer(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	raw, err := s.decodeBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := s.buyers.Update(r.Context(), ActorFromCtx(r.Context()), id, raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) deleteBuyer(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var token *time.Time
	if v := r.URL.Query().Get(validate.TokenField); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			s.writeError(w, r, errs.Invalid(validate.TokenField, "must be an RFC 3339 timestamp"))
			return
		}
		token = &t
	}
	if err := s.buyers.Delete(r.Context(), ActorFromCtx(r.Context()), id, token); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) buyerHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	h, err := s.buyers.History(r.Context(), ActorFromCtx(r.Context()), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) exportBuyers(w http.ResponseWriter, r *http.Request) {
	f, _, err := validate.Filter(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	buyers, err := s.buyers.Export(r.Context(), ActorFromCtx(r.Context()), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="buyers.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := bulk.WriteCSV(w, buyers); err != nil {
		// headers are already out
		s.log.Warn("export write failed", zap.Error(err))
	}
}

func (s *Server) importBuyers(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.ImportMaxBytes)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, errs.Invalid("file", "multipart field \"file\" is required: %v", err))
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, errs.Invalid("file", "unreadable: %v", err))
		return
	}
	res, err := s.importer.Import(r.Context(), ActorFromCtx(r.Context()), hdr.Filename, payload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// pathID parses {id}. A malformed id cannot name a record, so it answers 404.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: malformed id", errs.ErrNotFound))
		return uuid.Nil, false
	}
	return id, true
}
