// ABOUTME: Markdown rendering of snapshots, one section per table.
// ABOUTME: Used by `forma export markdown` for sharing a readable summary.
package snapshot

import (
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/forma/internal/models"
)

// RenderMarkdown summarizes snap as Markdown tables.
func RenderMarkdown(snap *Snapshot) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Forma Export - %s\n\n", snap.ExportedAt.Format(models.DateLayout)))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", snap.ExportedAt.Format(time.RFC3339)))

	for _, table := range models.AllTables {
		recs := snap.Data[table]
		sb.WriteString(fmt.Sprintf("## %s (%d)\n\n", table, len(recs)))
		if len(recs) == 0 {
			sb.WriteString("_No records._\n\n")
			continue
		}

		header := columns(table)
		sb.WriteString("| " + strings.Join(header, " | ") + " |\n")
		sb.WriteString("|" + strings.Repeat("------|", len(header)) + "\n")
		for _, rec := range recs {
			sb.WriteString("| " + strings.Join(row(rec), " | ") + " |\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func columns(table models.Table) []string {
	switch table {
	case models.TableUsers:
		return []string{"Name", "Email", "Role"}
	case models.TableProfiles:
		return []string{"User", "Age", "Height", "Weight"}
	case models.TableSchedules:
		return []string{"Date", "Time", "Client", "Title"}
	case models.TableProgress:
		return []string{"Date", "User", "Metric", "Value"}
	case models.TableMessages:
		return []string{"Sent", "From", "To", "Text"}
	case models.TablePlans:
		return []string{"Created", "Client", "Type", "Title"}
	default:
		return []string{"Created", "User", "Title"}
	}
}

func row(rec models.Record) []string {
	switch r := rec.(type) {
	case *models.User:
		return []string{cell(r.Name), r.Email, string(r.Role)}
	case *models.Profile:
		return []string{r.UserID, optInt(r.Age), optFloat(r.HeightCm, "cm"), optFloat(r.WeightKg, "kg")}
	case *models.ScheduleItem:
		return []string{r.Date, r.Time, r.ClientID, cell(r.Title)}
	case *models.ProgressEntry:
		return []string{r.Date, r.UserID, string(r.Metric), fmt.Sprintf("%.2f %s", r.Value, r.Unit())}
	case *models.Message:
		return []string{r.SentAt.Format("2006-01-02 15:04"), r.FromID, r.ToID, cell(r.Text)}
	case *models.Plan:
		return []string{r.CreatedAt.Format(models.DateLayout), r.ClientID, string(r.Type), cell(r.Title)}
	case *models.WorkoutEntry:
		return []string{r.CreatedAt.Format(models.DateLayout), r.UserID, cell(r.Title)}
	case *models.NutritionEntry:
		return []string{r.CreatedAt.Format(models.DateLayout), r.UserID, cell(r.Title)}
	default:
		return []string{rec.RecordID()}
	}
}

// cell keeps free text from breaking the table layout.
func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "\\|")
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func optFloat(v *float64, unit string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f %s", *v, unit)
}
