// Package api serves the read-only HTTP surface over stored prices and
// factors.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"market-pipeline/internal/domain"
	"market-pipeline/internal/storage"
)

// Server is the read API.
type Server struct {
	store  storage.ReadStore
	logger *log.Logger
}

// NewServer creates a Server.
func NewServer(store storage.ReadStore, logger *log.Logger) *Server {
	return &Server{store: store, logger: logger}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tickers", s.handleTickers)
	mux.HandleFunc("GET /api/prices/{ticker}", s.handlePrices)
	mux.HandleFunc("GET /health", s.handleHealth)
	return withCORS(mux)
}

// pricePointJSON mirrors the wire contract consumed by the charting
// frontend. Nullable indicators serialize as JSON null.
type pricePointJSON struct {
	Time           string   `json:"time"`
	Open           float64  `json:"open"`
	High           float64  `json:"high"`
	Low            float64  `json:"low"`
	Close          float64  `json:"close"`
	Volume         *int64   `json:"volume"`
	SMA20          *float64 `json:"sma_20"`
	BollingerUpper *float64 `json:"bollinger_upper"`
	BollingerLower *float64 `json:"bollinger_lower"`
	RSI14          *float64 `json:"rsi_14"`
	DailyReturn    *float64 `json:"daily_return"`
	LogReturn      *float64 `json:"log_return"`
	Volatility20d  *float64 `json:"volatility_20d"`
}

func (s *Server) handleTickers(w http.ResponseWriter, r *http.Request) {
	tickers, err := s.store.Tickers(r.Context())
	if err != nil {
		s.serverError(w, "list tickers", err)
		return
	}
	if tickers == nil {
		tickers = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"tickers": tickers})
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(r.PathValue("ticker"))
	points, err := s.store.PricesWithFactors(r.Context(), ticker)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusOK, []pricePointJSON{})
			return
		}
		s.serverError(w, "read prices", err)
		return
	}

	out := make([]pricePointJSON, 0, len(points))
	for _, p := range points {
		out = append(out, pricePointJSON{
			Time:           p.Date.Format(domain.DateLayout),
			Open:           p.Open,
			High:           p.High,
			Low:            p.Low,
			Close:          p.Close,
			Volume:         p.Volume,
			SMA20:          p.SMA20,
			BollingerUpper: p.BollingerUpper,
			BollingerLower: p.BollingerLower,
			RSI14:          p.RSI14,
			DailyReturn:    p.DailyReturn,
			LogReturn:      p.LogReturn,
			Volatility20d:  p.Volatility20d,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	if s.logger != nil {
		s.logger.Printf("%s: %v", op, err)
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// withCORS allows browser frontends on other origins to read the API.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe runs the API until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
