package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/IPFiling-Assistant/internal/domain/filing"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// loadDocument reads an exported filing document from path ("-" for stdin)
// and decodes its record.
func loadDocument(cmd *cobra.Command, path string) (filing.FilingType, filing.Record, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc filing.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", nil, errors.Wrap(err, errors.ErrCodeSerialization, "file is not a filing document").WithDetail(path)
	}
	ft, err := filing.ParseFilingType(string(doc.FilingType))
	if err != nil {
		return "", nil, err
	}
	patch, err := doc.Patch()
	if err != nil {
		return "", nil, err
	}
	rec, err := filing.Merge(filing.NewRecord(ft), patch)
	if err != nil {
		return "", nil, err
	}
	return ft, rec, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// validate
// ─────────────────────────────────────────────────────────────────────────────

// StepCheck is the validation result of one wizard step.
type StepCheck struct {
	Step int    `json:"step"`
	Name string `json:"name"`
	filing.StepResult
}

// StepReport lists the step results of a document.
type StepReport struct {
	FilingType filing.FilingType `json:"filingType"`
	Steps      []StepCheck       `json:"steps"`
}

// Complete reports whether every step passed.
func (r StepReport) Complete() bool {
	for _, s := range r.Steps {
		if !s.Valid {
			return false
		}
	}
	return true
}

func (r StepReport) TableHeaders() []string { return []string{"STEP", "NAME", "VALID", "MISSING"} }

func (r StepReport) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		rows = append(rows, []string{
			strconv.Itoa(s.Step), s.Name, strconv.FormatBool(s.Valid), strings.Join(s.MissingFields, ","),
		})
	}
	return rows
}

func (r StepReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s record\n", r.FilingType)
	for _, s := range r.Steps {
		mark := "ok"
		if !s.Valid {
			mark = "missing " + strings.Join(s.MissingFields, ", ")
		}
		fmt.Fprintf(&b, "  %d. %-22s %s\n", s.Step, s.Name, mark)
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewValidateCmd checks an exported document against the step requirements.
func NewValidateCmd() *cobra.Command {
	var step int

	cmd := &cobra.Command{
		Use:   "validate <document.json>",
		Short: "Check the required fields of an exported document",
		Long:  "Check an exported filing document against the required fields of each\nwizard step. Exits non-zero when a step is incomplete. Use - for stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ft, rec, err := loadDocument(cmd, args[0])
			if err != nil {
				return err
			}
			if step < 0 || step > ft.StepCount() {
				return errors.New(errors.ErrCodeStepOutOfRange, fmt.Sprintf("step must be between 1 and %d", ft.StepCount()))
			}

			v := filing.NewStepValidator(cliCtx.Config.Filing.ValidatorPolicy())
			report := StepReport{FilingType: ft, Steps: []StepCheck{}}
			for i, name := range ft.StepNames() {
				n := i + 1
				if step > 0 && n != step {
					continue
				}
				res, err := v.CanAdvance(ft, n, rec)
				if err != nil {
					return err
				}
				report.Steps = append(report.Steps, StepCheck{Step: n, Name: name, StepResult: res})
			}

			if err := PrintResult(cmd, report); err != nil {
				return err
			}
			if !report.Complete() {
				return errors.New(errors.ErrCodeValidation, "document is incomplete")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&step, "step", 0, "check a single step (default: all)")
	return cmd
}

// ─────────────────────────────────────────────────────────────────────────────
// evaluate
// ─────────────────────────────────────────────────────────────────────────────

// Evaluation is a compliance report with its readiness score.
type Evaluation struct {
	Score  int                     `json:"score"`
	Report filing.ComplianceReport `json:"report"`
}

func (e Evaluation) TableHeaders() []string {
	return []string{"JURISDICTION", "CHECK", "STATUS", "DETAIL"}
}

func (e Evaluation) TableRows() [][]string {
	var rows [][]string
	for _, j := range e.Report.Jurisdictions {
		for _, c := range j.Checks {
			rows = append(rows, []string{string(j.Code), c.ID, string(c.Status), c.Detail})
		}
	}
	return rows
}

func (e Evaluation) String() string {
	pass, warn, fail := e.Report.Counts()
	var b strings.Builder
	fmt.Fprintf(&b, "readiness score: %d/%d (pass %d, warn %d, fail %d)", e.Score, filing.MaxScore, pass, warn, fail)
	for _, j := range e.Report.Jurisdictions {
		fmt.Fprintf(&b, "\n%s (%s)", j.Name, j.Code)
		for _, c := range j.Checks {
			line := fmt.Sprintf("\n  [%s] %s", c.Status, c.Description)
			if c.Detail != "" {
				line += ": " + c.Detail
			}
			b.WriteString(line)
		}
	}
	return b.String()
}

// NewEvaluateCmd runs the compliance checks on an exported document.
func NewEvaluateCmd() *cobra.Command {
	var minScore int

	cmd := &cobra.Command{
		Use:   "evaluate <document.json>",
		Short: "Run the jurisdiction compliance checks on an exported document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if minScore < 0 || minScore > filing.MaxScore {
				return fmt.Errorf("min-score must be between 0 and %d, got %d", filing.MaxScore, minScore)
			}
			ft, rec, err := loadDocument(cmd, args[0])
			if err != nil {
				return err
			}
			report := filing.Evaluate(ft, rec)
			ev := Evaluation{Score: filing.Score(report), Report: report}
			if err := PrintResult(cmd, ev); err != nil {
				return err
			}
			if ev.Score < minScore {
				return errors.New(errors.ErrCodeValidation, fmt.Sprintf("readiness score %d is below %d", ev.Score, minScore))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&minScore, "min-score", 0, "fail when the readiness score is below this value")
	return cmd
}

//Personal.AI order the ending
