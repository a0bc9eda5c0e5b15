// Prompt construction for the generative service. Prompts are written in
// Indonesian to match the product's user base and pin the exact output
// format so decoding stays mechanical.
package planner

import (
	"fmt"
	"strings"
)

const dateLayout = "2006-01-02"

// BuildPlanPrompt renders the structured-plan prompt. Known fields are
// pinned so the model does not invent alternatives for them.
func BuildPlanPrompt(req PlanRequest) string {
	var sb strings.Builder
	sb.WriteString("Kamu adalah asisten perencanaan tujuan. ")
	sb.WriteString("Buat rencana dari deskripsi goal berikut.\n\n")
	sb.WriteString("Goal: ")
	sb.WriteString(strings.TrimSpace(req.Text))
	sb.WriteString("\n\n")

	if req.Title != "" {
		fmt.Fprintf(&sb, "Gunakan judul ini apa adanya: %s\n", req.Title)
	}
	if req.StartDate != nil {
		fmt.Fprintf(&sb, "Tanggal mulai sudah ditentukan: %s\n", req.StartDate.Format(dateLayout))
	}
	if req.EndDate != nil {
		fmt.Fprintf(&sb, "Tanggal selesai sudah ditentukan: %s\n", req.EndDate.Format(dateLayout))
	}

	sb.WriteString("\nJawab HANYA dengan objek JSON berikut, tanpa teks lain:\n")
	sb.WriteString(`{"title":"...","description":"...","emoji":"...","start_date":"YYYY-MM-DD","end_date":"YYYY-MM-DD"}`)
	sb.WriteString("\nJudul maksimal 100 karakter, deskripsi maksimal 500 karakter, emoji satu glyph.")
	return sb.String()
}

// BuildStepsPrompt renders the CSV step-list prompt for one date window.
// CSV keeps long responses compact; the format line below is the contract
// ParseStepsCSV expects.
func BuildStepsPrompt(req StepsRequest) string {
	var sb strings.Builder
	sb.WriteString("Kamu adalah asisten perencanaan tujuan. ")
	fmt.Fprintf(&sb, "Buat jadwal harian untuk goal %q (%s).\n", req.GoalTitle, req.GoalDescription)
	fmt.Fprintf(&sb, "Periode: %s sampai %s (inklusif), satu baris per hari.\n",
		req.WindowStart.Format(dateLayout), req.WindowEnd.Format(dateLayout))
	fmt.Fprintf(&sb, "Persen kumulatif naik dari %d ke %d dalam periode ini.\n", req.PercentFrom, req.PercentTo)

	sb.WriteString("\nJawab HANYA dengan baris CSV, tanpa teks lain, format:\n")
	sb.WriteString("day,date,startTime,endTime,title,description,emoji,percent\n")
	sb.WriteString("Contoh: 1,2025-08-11,09:00,11:00,\"Hari 1\",\"Deskripsi singkat\",🚀,14\n")
	sb.WriteString("Tanggal format YYYY-MM-DD, waktu format HH:MM 24 jam, tanggal tidak boleh duplikat, ")
	sb.WriteString("persen tidak boleh menurun.")
	return sb.String()
}
