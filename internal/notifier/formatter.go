package notifier

import (
	"fmt"
	"strings"
	"time"

	"TdxBridge/internal/model"
)

// Status is the snapshot rendered by FormatStatus.
type Status struct {
	DataDir       string
	CachedReports int
	LatestReport  string
	NextUpdate    time.Time
	LastSync      *SyncSummary
}

// SyncSummary is the part of a recorded sync pass shown in status messages.
type SyncSummary struct {
	At         time.Time
	Trigger    string
	Downloaded int
	Missing    int
	Error      string
}

// FormatSyncReport formats the outcome of a sync pass into a Telegram message.
func FormatSyncReport(res model.SyncResult, elapsed time.Duration) string {
	var b strings.Builder

	icon := "✅"
	if res.Error != "" || len(res.Missing) > 0 {
		icon = "⚠️"
	}
	b.WriteString(fmt.Sprintf("%s <b>财务数据同步</b> | %s\n\n", icon, time.Now().Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("远程文件: %d\n", res.TotalRemote))
	b.WriteString(fmt.Sprintf("新下载: %d\n", res.Downloaded))
	b.WriteString(fmt.Sprintf("耗时: %s\n", elapsed.Round(time.Millisecond)))

	if len(res.Missing) > 0 {
		b.WriteString(fmt.Sprintf("\n❌ <b>下载失败 (%d):</b>\n", len(res.Missing)))
		for i, name := range res.Missing {
			if i == 10 {
				b.WriteString(fmt.Sprintf("  … 另有 %d 个\n", len(res.Missing)-10))
				break
			}
			b.WriteString(fmt.Sprintf("  %s\n", name))
		}
	}
	if res.Error != "" {
		b.WriteString(fmt.Sprintf("\n错误: %s\n", escapeHTML(res.Error)))
	}
	return b.String()
}

// FormatStatus formats the service status for display.
func FormatStatus(s Status) string {
	var b strings.Builder
	b.WriteString("📦 <b>TdxBridge 状态</b>\n\n")
	b.WriteString(fmt.Sprintf("数据目录: %s\n", escapeHTML(s.DataDir)))
	b.WriteString(fmt.Sprintf("已缓存财报: %d\n", s.CachedReports))
	if s.LatestReport != "" {
		b.WriteString(fmt.Sprintf("最新报告期: %s\n", s.LatestReport))
	}
	if s.NextUpdate.IsZero() {
		b.WriteString("下次更新: 未调度\n")
	} else {
		b.WriteString(fmt.Sprintf("下次更新: %s\n", s.NextUpdate.Format("2006-01-02 15:04:05")))
	}
	if s.LastSync != nil {
		b.WriteString(fmt.Sprintf("\n上次同步: %s (%s)\n", s.LastSync.At.Format("2006-01-02 15:04"), s.LastSync.Trigger))
		b.WriteString(fmt.Sprintf("  下载 %d | 失败 %d\n", s.LastSync.Downloaded, s.LastSync.Missing))
		if s.LastSync.Error != "" {
			b.WriteString(fmt.Sprintf("  错误: %s\n", escapeHTML(s.LastSync.Error)))
		}
	}
	return b.String()
}

// FormatHelp lists the chat commands.
func FormatHelp() string {
	return "可用命令:\n/sync - 立即同步财务数据\n/status - 查看服务状态"
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
