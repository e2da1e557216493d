package services

import (
	"bytes"
	"encoding/csv"
	"sort"
	"strconv"
)

// ExportRow is one response flattened for the reporting sink.
type ExportRow struct {
	ResponseID    string
	UserID        string
	QuestionID    string
	SubQuestionID string
	Answer        string
	AttemptID     string
	SubmittedAt   string // ISO8601
}

// ExportLongCSV renders rows into a long-format CSV, one response per line.
func ExportLongCSV(rows []ExportRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"response_id", "user_id", "question_id", "subquestion_id", "answer", "attempt_id", "submitted_at"})
	for _, r := range rows {
		rec := []string{r.ResponseID, r.UserID, r.QuestionID, r.SubQuestionID, r.Answer, r.AttemptID, r.SubmittedAt}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportWideCSV renders a user-per-row CSV with one column per question
// (question id, suffixed with the subquestion id for matrix answers).
// inputs is a map[userID]map[columnHeader]answer.
func ExportWideCSV(inputs map[string]map[string]string) ([]byte, error) {
	colSet := map[string]struct{}{}
	for _, m := range inputs {
		for col := range m {
			colSet[col] = struct{}{}
		}
	}
	cols := make([]string, 0, len(colSet))
	for c := range colSet {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	uids := make([]string, 0, len(inputs))
	for uid := range inputs {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := append([]string{"user_id"}, cols...)
	_ = w.Write(header)
	for _, uid := range uids {
		row := make([]string, 0, 1+len(cols))
		row = append(row, uid)
		for _, col := range cols {
			row = append(row, inputs[uid][col])
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func itoa(v int) string { return strconv.Itoa(v) }
