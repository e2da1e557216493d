package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/appdiversa/diversa-server/internal/models"
)

// ExportStore is the read-only slice of persistence the reporting sink
// consumes. Export never feeds back into the submission pipeline.
type ExportStore interface {
	ListResponsesBySurvey(surveyID string) ([]*models.Response, error)
	GetOption(id string) (*models.Option, error)
}

type ExportParams struct {
	SurveyID string
	Format   string // "long" (default) or "wide"
}

type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

type ExportService struct {
	store ExportStore
}

func NewExportService(store ExportStore) *ExportService {
	return &ExportService{store: store}
}

// ExportCSV renders the survey's persisted responses as CSV.
func (s *ExportService) ExportCSV(params ExportParams) (*ExportResult, error) {
	if params.SurveyID == "" {
		return nil, NewInvalidError("survey_id required")
	}
	format := params.Format
	if format == "" {
		format = "long"
	}
	rs, err := s.store.ListResponsesBySurvey(params.SurveyID)
	if err != nil {
		return nil, err
	}

	switch format {
	case "long":
		rows := make([]ExportRow, 0, len(rs))
		for _, r := range rs {
			answer, err := s.renderAnswer(r)
			if err != nil {
				return nil, err
			}
			rows = append(rows, ExportRow{
				ResponseID:    r.ID,
				UserID:        r.UserID,
				QuestionID:    r.QuestionID,
				SubQuestionID: r.SubQuestionID,
				Answer:        answer,
				AttemptID:     r.SurveyAttemptID,
				SubmittedAt:   r.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		data, err := ExportLongCSV(rows)
		if err != nil {
			return nil, err
		}
		return &ExportResult{Filename: "responses_long.csv", ContentType: "text/csv; charset=utf-8", Data: data}, nil
	case "wide":
		inputs := map[string]map[string]string{}
		for _, r := range rs {
			answer, err := s.renderAnswer(r)
			if err != nil {
				return nil, err
			}
			col := r.QuestionID
			if r.SubQuestionID != "" {
				col = r.QuestionID + ":" + r.SubQuestionID
			}
			if inputs[r.UserID] == nil {
				inputs[r.UserID] = map[string]string{}
			}
			inputs[r.UserID][col] = answer
		}
		data, err := ExportWideCSV(inputs)
		if err != nil {
			return nil, err
		}
		return &ExportResult{Filename: "responses_wide.csv", ContentType: "text/csv; charset=utf-8", Data: data}, nil
	default:
		return nil, NewInvalidError(fmt.Sprintf("unsupported export format %q", format))
	}
}

// renderAnswer flattens the single populated answer shape into a cell.
func (s *ExportService) renderAnswer(r *models.Response) (string, error) {
	switch {
	case r.ResponseText != nil:
		return *r.ResponseText, nil
	case r.ResponseNumber != nil:
		return itoa(*r.ResponseNumber), nil
	case len(r.OptionsSelected) > 0:
		texts := make([]string, 0, len(r.OptionsSelected))
		for _, id := range r.OptionsSelected {
			opt, err := s.store.GetOption(id)
			if err != nil {
				return "", err
			}
			if opt == nil {
				texts = append(texts, id)
				continue
			}
			texts = append(texts, opt.Text)
		}
		return strings.Join(texts, "|"), nil
	case r.OptionSelected != "":
		opt, err := s.store.GetOption(r.OptionSelected)
		if err != nil {
			return "", err
		}
		if opt == nil {
			return r.OptionSelected, nil
		}
		if r.OtherText != "" {
			return opt.Text + ": " + r.OtherText, nil
		}
		return opt.Text, nil
	default:
		return "", nil
	}
}
