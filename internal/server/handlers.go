package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sitewise-ai/sitewise/internal/store"
	"github.com/sitewise-ai/sitewise/internal/survey"
)

// defaultSimilarLimit bounds /similar-surveys when no limit is given.
const defaultSimilarLimit = 5

type rootResponse struct {
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
	Status  string `json:"status"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		Service: "sitewise",
		Version: s.version,
		Status:  "running",
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.log.Error("stats query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read knowledge base stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// componentAnalysisView is a ComponentAnalysis without the embedding, which
// is an internal detail and large.
type componentAnalysisView struct {
	ImageIndex int    `json:"image_index"`
	Analysis   string `json:"analysis"`
}

type analyzeResponse struct {
	SurveyID          string                  `json:"survey_id"`
	OverallStatus     store.Status            `json:"overall_status"`
	ConfidenceScore   float64                 `json:"confidence_score"`
	FinalReport       string                  `json:"final_report"`
	ComponentAnalyses []componentAnalysisView `json:"component_analyses"`
	SimilarSurveys    survey.SimilarSurveys   `json:"similar_surveys"`
	Persisted         bool                    `json:"persisted"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["images"]
	images := make([][]byte, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to open upload "+fh.Filename)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read upload "+fh.Filename)
			return
		}
		images = append(images, data)
	}

	textNotes := r.FormValue("text_notes")
	surveyID := r.FormValue("survey_id")

	res, err := s.analyzer.Run(r.Context(), images, textNotes, surveyID)
	if err != nil {
		s.writeAnalyzeError(w, err)
		return
	}

	st := res.State
	views := make([]componentAnalysisView, len(st.ComponentAnalyses))
	for i, ca := range st.ComponentAnalyses {
		views[i] = componentAnalysisView{ImageIndex: ca.ImageIndex, Analysis: ca.Analysis}
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		SurveyID:          st.SurveyID,
		OverallStatus:     st.OverallStatus,
		ConfidenceScore:   st.ConfidenceScore,
		FinalReport:       st.FinalReport,
		ComponentAnalyses: views,
		SimilarSurveys:    st.SimilarSurveys,
		Persisted:         res.Persisted,
	})
}

func (s *Server) writeAnalyzeError(w http.ResponseWriter, err error) {
	if errors.Is(err, survey.ErrNoImages) {
		writeError(w, http.StatusBadRequest, "at least one image is required")
		return
	}
	var stageErr *survey.StageError
	if errors.As(err, &stageErr) {
		s.log.Error("survey analysis failed", "stage", stageErr.Stage, "error", stageErr.Err)
		writeError(w, http.StatusInternalServerError,
			"analysis failed during "+stageErr.Stage+": "+stageErr.Err.Error())
		return
	}
	s.log.Error("survey analysis failed", "error", err)
	writeError(w, http.StatusInternalServerError, "analysis failed: "+err.Error())
}

// surveyView is a stored record without its embedding.
type surveyView struct {
	SurveyID  string            `json:"survey_id"`
	Report    string            `json:"report"`
	Status    store.Status      `json:"status"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp time.Time         `json:"timestamp"`
}

func (s *Server) handleGetSurvey(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "survey not found: "+id)
			return
		}
		s.log.Error("survey lookup failed", "survey_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load survey")
		return
	}
	writeJSON(w, http.StatusOK, surveyView{
		SurveyID:  rec.ID,
		Report:    rec.Document,
		Status:    rec.Status,
		Metadata:  rec.Metadata,
		Timestamp: rec.Timestamp,
	})
}

func (s *Server) handleDeleteSurvey(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.log.Error("survey delete failed", "survey_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete survey")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSimilarSurveys finds the nearest neighbors of a stored survey,
// excluding the survey itself.
func (s *Server) handleSimilarSurveys(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	limit := defaultSimilarLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	status := store.StatusAny
	switch raw := r.URL.Query().Get("status"); raw {
	case "":
	case string(store.StatusPass):
		status = store.StatusPass
	case string(store.StatusFail):
		status = store.StatusFail
	default:
		writeError(w, http.StatusBadRequest, "status must be 'pass' or 'fail'")
		return
	}

	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "survey not found: "+id)
			return
		}
		s.log.Error("survey lookup failed", "survey_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load survey")
		return
	}

	// Ask for one extra so the record itself can be dropped from its own
	// neighborhood.
	results, err := s.store.Query(r.Context(), rec.Embedding, limit+1, status)
	if err != nil {
		s.log.Error("similarity query failed", "survey_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "similarity query failed")
		return
	}

	neighbors := make([]store.Result, 0, limit)
	for _, res := range results {
		if res.SurveyID == id {
			continue
		}
		neighbors = append(neighbors, res)
		if len(neighbors) == limit {
			break
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"survey_id": id,
		"similar":   neighbors,
	})
}
