package server

import (
	"net/http"

	"github.com/jrsteele09/go-agency-admin/server/resourcerepo"
	"github.com/rs/zerolog/log"
)

// ListRecordsHandler lists a collection. Query parameters filter by field
// equality; q searches every text field.
func (s *Server) ListRecordsHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := s.repos.Records.List(name, r.URL.Query())
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, docs)
	}
}

func (s *Server) GetRecordHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := s.repos.Records.Get(name, r.PathValue("id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func (s *Server) CreateRecordHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var doc resourcerepo.Document
		if err := decodeJSON(w, r, &doc); err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid_request", "", err.Error())
			return
		}
		created, err := s.repos.Records.Create(name, doc)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		log.Debug().Str("collection", name).Str("id", created.ID()).Msg("Record created")
		writeJSON(w, http.StatusCreated, created)
	}
}

func (s *Server) UpdateRecordHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var doc resourcerepo.Document
		if err := decodeJSON(w, r, &doc); err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid_request", "", err.Error())
			return
		}
		updated, err := s.repos.Records.Update(name, r.PathValue("id"), doc)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func (s *Server) DeleteRecordHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.repos.Records.Delete(name, r.PathValue("id")); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
