package model

import "strings"

// RemoteFile identifies one downloadable report archive on the finance file server.
type RemoteFile struct {
	Filename string `json:"filename"`
	Hash     string `json:"hash,omitempty"`
	Size     int64  `json:"filesize,omitempty"`
}

// FinancialRecord is one row of a parsed report archive. It always carries
// "code" and "report_date"; the remaining keys are numbered value columns.
type FinancialRecord map[string]any

// Code returns the security code of the row.
func (r FinancialRecord) Code() string {
	if s, ok := r["code"].(string); ok {
		return s
	}
	return ""
}

// MatchesSymbol reports whether the row code contains symbol.
// Codes may carry an exchange prefix such as "sh" or "sz".
func (r FinancialRecord) MatchesSymbol(symbol string) bool {
	return strings.Contains(r.Code(), symbol)
}

// SyncResult summarizes one synchronization pass.
type SyncResult struct {
	Downloaded  int      `json:"downloaded"`
	TotalRemote int      `json:"total_remote"`
	Missing     []string `json:"missing"`
	Error       string   `json:"error,omitempty"`
}
