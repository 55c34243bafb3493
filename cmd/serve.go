package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/thesis-cli/internal/classify"
	"github.com/sells-group/thesis-cli/internal/config"
	"github.com/sells-group/thesis-cli/internal/guidance"
	"github.com/sells-group/thesis-cli/internal/model"
	"github.com/sells-group/thesis-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read/classify HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newAPIRouter(st, cfg),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newAPIRouter assembles the HTTP API. Split out from the command so
// tests can drive it directly.
func newAPIRouter(st store.Store, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/companies", handleListCompanies(st))
		r.Get("/companies/{ticker}/thesis", handleActiveThesis(st))
		r.Get("/companies/{ticker}/guidance/{metric}", handleGuidanceHistory(st, cfg))
		r.Get("/companies/{ticker}/classifications", handleClassifications(st))
		r.Get("/companies/{ticker}/decisions", handleDecisions(st))
		r.Post("/classify", handleClassify(st, cfg))
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case eris.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case eris.Is(err, model.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func handleListCompanies(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companies, err := st.ListCompanies(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, companies)
	}
}

func handleActiveThesis(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		company, err := st.GetCompany(ctx, chi.URLParam(r, "ticker"))
		if err != nil {
			writeError(w, err)
			return
		}
		th, err := st.ActiveThesis(ctx, company.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		if th == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active thesis"})
			return
		}

		hyps, err := st.ListHypotheses(ctx, th.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		kills, err := st.ListKillCriteria(ctx, th.ID, false)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"thesis":        th,
			"hypotheses":    hyps,
			"kill_criteria": kills,
		})
	}
}

func handleGuidanceHistory(st store.Store, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		company, err := st.GetCompany(ctx, chi.URLParam(r, "ticker"))
		if err != nil {
			writeError(w, err)
			return
		}
		records, err := guidance.NewChain(st, cfg.Guidance).History(ctx, company.ID, chi.URLParam(r, "metric"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func handleClassifications(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		company, err := st.GetCompany(ctx, chi.URLParam(r, "ticker"))
		if err != nil {
			writeError(w, err)
			return
		}
		classifications, err := st.ListClassifications(ctx, company.ID, 50)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, classifications)
	}
}

func handleDecisions(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		company, err := st.GetCompany(ctx, chi.URLParam(r, "ticker"))
		if err != nil {
			writeError(w, err)
			return
		}
		decisions, err := st.ListDecisions(ctx, company.ID, 100)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, decisions)
	}
}

// classifyRequest is the POST /v1/classify body.
type classifyRequest struct {
	Ticker           string          `json:"ticker"`
	FilingType       string          `json:"filing_type"`
	FilingDate       string          `json:"filing_date"`
	Findings         []model.Finding `json:"findings"`
	MaterialChange   bool            `json:"material_change"`
	Relationship     string          `json:"consensus_relationship"`
	ContrarianThesis string          `json:"contrarian_thesis"`
}

func handleClassify(st store.Store, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req classifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if req.Ticker == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ticker is required"})
			return
		}

		filingDate := time.Now().UTC()
		if req.FilingDate != "" {
			parsed, err := time.Parse("2006-01-02", req.FilingDate)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "filing_date must be YYYY-MM-DD"})
				return
			}
			filingDate = parsed
		}
		relationship, err := model.ParseConsensusRelationship(req.Relationship)
		if err != nil {
			writeError(w, err)
			return
		}

		outcome, err := classify.NewEngine(st, cfg.Classify).Classify(ctx, req.Ticker, classify.Request{
			FilingType:       model.ParseFilingType(req.FilingType),
			FilingDate:       filingDate,
			Findings:         req.Findings,
			MaterialChange:   req.MaterialChange,
			Relationship:     relationship,
			ContrarianThesis: req.ContrarianThesis,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"classification":    outcome.Classification,
			"rejected_findings": outcome.Rejected,
		})
	}
}
