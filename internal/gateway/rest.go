package gateway

import (
	"fmt"
	"net/http"
	"time"

	"TdxBridge/internal/financial"
	"TdxBridge/internal/recorder"
	"TdxBridge/internal/scheduler"
	"TdxBridge/internal/series"
)

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Status       string            `json:"status"`
	TdxDir       string            `json:"tdx_dir"`
	FinancialDir string            `json:"financial_dir"`
	MCPURL       string            `json:"mcp_url"`
	MCPSSEURL    string            `json:"mcp_sse_url"`
	NextUpdate   string            `json:"next_update"`
	Uptime       string            `json:"uptime"`
	Reports      int               `json:"cached_reports"`
	LastSync     *recorder.SyncRun `json:"last_sync"`
}

// ReportPeriod describes one cached archive.
type ReportPeriod struct {
	ReportDate string `json:"report_date"`
	File       string `json:"file"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": Version})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	next := "not scheduled"
	if t := s.app.Scheduler.NextRun(); !t.IsZero() {
		next = t.Format("2006-01-02 15:04:05")
	}
	resp := StatusResponse{
		Status:       "running",
		TdxDir:       s.app.Config.DataDir,
		FinancialDir: s.app.Store.Dir(),
		MCPURL:       fmt.Sprintf("http://%s/mcp", r.Host),
		MCPSSEURL:    fmt.Sprintf("http://%s/sse", r.Host),
		NextUpdate:   next,
		Uptime:       time.Since(s.app.StartedAt).Round(time.Second).String(),
	}
	if periods, err := s.app.Store.Periods(); err == nil {
		resp.Reports = len(periods)
	}
	if runs, err := s.app.Recorder.RecentSyncs(1); err == nil && len(runs) > 0 {
		resp.LastSync = &runs[0]
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFinancialData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.app.Resolver.Resolve(r.Context(), financial.Query{
		ReportDate: q.Get("report_date"),
		Symbol:     q.Get("symbol"),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("report_date", q.Get("report_date")).Str("symbol", q.Get("symbol")).Msg("financial data query failed")
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleFinancialReports(w http.ResponseWriter, _ *http.Request) {
	periods, err := s.reportPeriods()
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"data": periods})
}

func (s *Server) reportPeriods() ([]ReportPeriod, error) {
	dates, err := s.app.Store.Periods()
	if err != nil {
		return nil, err
	}
	periods := make([]ReportPeriod, 0, len(dates))
	for _, d := range dates {
		periods = append(periods, ReportPeriod{ReportDate: d, File: financial.ArchiveName(d)})
	}
	return periods, nil
}

func (s *Server) handleSyncFinancial(w http.ResponseWriter, r *http.Request) {
	res := s.app.Scheduler.SyncNow(r.Context(), scheduler.TriggerAPI)
	WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleSyncRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.app.Recorder.RecentSyncs(queryInt(r, "limit", 20))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"data": runs})
}

func (s *Server) handleDailyKline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bars, err := s.app.Series.Daily(r.Context(), series.Query{
		Symbol:    q.Get("symbol"),
		Adjust:    q.Get("adjust"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", q.Get("symbol")).Msg("daily kline query failed")
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"data": bars})
}
