package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"TdxBridge/internal/financial"
	"TdxBridge/internal/logging"
	"TdxBridge/internal/series"
)

func (s *Server) registerTools() {
	s.mcp.AddTool(createGetDailyKlineTool(), handleGetDailyKline(s.app.Series, s.logger))
	s.mcp.AddTool(createGetFinancialDataTool(), handleGetFinancialData(s.app.Resolver, s.logger))
	s.mcp.AddTool(createListFinancialReportsTool(), handleListFinancialReports(s.reportPeriods))
}

// createGetDailyKlineTool returns the get_daily_kline tool definition
func createGetDailyKlineTool() mcp.Tool {
	return mcp.NewTool("get_daily_kline",
		mcp.WithDescription("Get the daily K-line (OHLCV) series of an A-share stock. Without a date range the most recent 100 trading days are returned."),
		mcp.WithString("symbol",
			mcp.Required(),
			mcp.Description("Six digit stock code, optionally with exchange prefix (e.g., '000001', 'sh600000')"),
		),
		mcp.WithString("adjust",
			mcp.Description("Price adjustment: 'qfq' forward (default), 'hfq' backward, 'none' unadjusted"),
		),
		mcp.WithString("start_date",
			mcp.Description("Inclusive start date, YYYY-MM-DD or YYYYMMDD"),
		),
		mcp.WithString("end_date",
			mcp.Description("Inclusive end date, YYYY-MM-DD or YYYYMMDD"),
		),
	)
}

// createGetFinancialDataTool returns the get_financial_data tool definition
func createGetFinancialDataTool() mcp.Tool {
	return mcp.NewTool("get_financial_data",
		mcp.WithDescription("Get quarterly financial report rows from the cached TDX report archives. Without report_date the newest period holding data is used."),
		mcp.WithString("report_date",
			mcp.Description("Report period end date, YYYYMMDD or YYYY-MM-DD (e.g., '20240331')"),
		),
		mcp.WithString("symbol",
			mcp.Description("Stock code to filter by; matches codes containing it (e.g., '600000')"),
		),
	)
}

// createListFinancialReportsTool returns the list_financial_reports tool definition
func createListFinancialReportsTool() mcp.Tool {
	return mcp.NewTool("list_financial_reports",
		mcp.WithDescription("List the cached financial report periods, newest first."),
	)
}

func handleGetDailyKline(acc *series.Accessor, logger *logging.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		symbol, err := request.RequireString("symbol")
		if err != nil || symbol == "" {
			return errorResult("Error: symbol parameter is required"), nil
		}
		bars, err := acc.Daily(ctx, series.Query{
			Symbol:    symbol,
			Adjust:    request.GetString("adjust", ""),
			StartDate: request.GetString("start_date", ""),
			EndDate:   request.GetString("end_date", ""),
		})
		if err != nil {
			logger.Warn().Err(err).Str("symbol", symbol).Msg("get_daily_kline failed")
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}
		return jsonResult(bars)
	}
}

func handleGetFinancialData(res *financial.Resolver, logger *logging.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q := financial.Query{
			ReportDate: request.GetString("report_date", ""),
			Symbol:     request.GetString("symbol", ""),
		}
		resolution, err := res.Resolve(ctx, q)
		if err != nil {
			logger.Warn().Err(err).Str("report_date", q.ReportDate).Str("symbol", q.Symbol).Msg("get_financial_data failed")
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}
		return jsonResult(resolution.Records)
	}
}

func handleListFinancialReports(list func() ([]ReportPeriod, error)) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		periods, err := list()
		if err != nil {
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}
		return jsonResult(periods)
	}
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult(fmt.Sprintf("Error: encode result: %v", err)), nil
	}
	return textResult(string(data)), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(message),
		},
		IsError: true,
	}
}
