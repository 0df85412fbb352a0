package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/IPFiling-Assistant/pkg/client"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Views
// ─────────────────────────────────────────────────────────────────────────────

type sessionView struct {
	*client.Session
}

func (v sessionView) JSONValue() interface{} { return v.Session }

func (v sessionView) String() string {
	s := v.Session
	var b strings.Builder
	fmt.Fprintf(&b, "session %s (%s, owner %s)\n", s.ID, s.FilingType, s.OwnerID)
	if s.FilingType == "" {
		b.WriteString("  no filing type selected")
		return b.String()
	}
	step := ""
	if s.Step >= 1 && s.Step <= len(s.StepNames) {
		step = " " + s.StepNames[s.Step-1]
	}
	fmt.Fprintf(&b, "  step %d/%d%s, %s, score %d", s.Step, s.StepCount, step, s.State, s.Score)
	if s.ApplicationID != "" {
		fmt.Fprintf(&b, "\n  application %s", s.ApplicationID)
	}
	for _, u := range s.Uploads {
		fmt.Fprintf(&b, "\n  upload %s %s (%s, %d bytes)", u.ID, u.Name, u.Category, u.Size)
	}
	for _, d := range s.Documents {
		fmt.Fprintf(&b, "\n  document %s (%s)", d.Kind, d.MediaType)
	}
	for field, texts := range s.Suggestions {
		fmt.Fprintf(&b, "\n  %d suggestion(s) for %s", len(texts), field)
	}
	for _, n := range s.Notices {
		fmt.Fprintf(&b, "\n  notice: %s", n.Message)
	}
	return b.String()
}

func (v sessionView) TableHeaders() []string {
	return []string{"ID", "TYPE", "STEP", "STATE", "SCORE", "APPLICATION"}
}

func (v sessionView) TableRows() [][]string {
	s := v.Session
	return [][]string{{
		s.ID, s.FilingType, fmt.Sprintf("%d/%d", s.Step, s.StepCount), s.State, strconv.Itoa(s.Score), s.ApplicationID,
	}}
}

type mutationView struct {
	*client.Mutation
}

func (v mutationView) JSONValue() interface{} { return v.Mutation }

func (v mutationView) String() string {
	var b strings.Builder
	if v.Outcome.Accepted {
		b.WriteString("accepted")
	} else {
		fmt.Fprintf(&b, "rejected: %s", v.Outcome.Reason)
		if v.Outcome.Code != "" {
			fmt.Fprintf(&b, " [%s]", v.Outcome.Code)
		}
		if len(v.Outcome.MissingFields) > 0 {
			fmt.Fprintf(&b, "\n  missing: %s", strings.Join(v.Outcome.MissingFields, ", "))
		}
	}
	if v.Session != nil {
		b.WriteString("\n")
		b.WriteString(sessionView{v.Session}.String())
	}
	return b.String()
}

func (v mutationView) TableHeaders() []string { return sessionView{}.TableHeaders() }

func (v mutationView) TableRows() [][]string {
	if v.Session == nil {
		return nil
	}
	return sessionView{v.Session}.TableRows()
}

type reportView struct {
	*client.ComplianceReport
}

func (v reportView) JSONValue() interface{} { return v.ComplianceReport }

func (v reportView) TableHeaders() []string {
	return []string{"JURISDICTION", "CHECK", "STATUS", "DETAIL"}
}

func (v reportView) TableRows() [][]string {
	var rows [][]string
	for _, j := range v.Jurisdictions {
		for _, c := range j.Checks {
			rows = append(rows, []string{j.Code, c.ID, c.Status, c.Detail})
		}
	}
	return rows
}

func (v reportView) String() string {
	return strings.TrimRight(FormatTable(v.TableHeaders(), v.TableRows()), "\n")
}

// printMutation prints m and turns a rejected outcome into an error so the
// command exits non-zero.
func printMutation(cmd *cobra.Command, m *client.Mutation) error {
	if err := PrintResult(cmd, mutationView{m}); err != nil {
		return err
	}
	if !m.Outcome.Accepted {
		code := errors.ErrCodeValidation
		if m.Outcome.Code != "" {
			code = errors.ErrorCode(m.Outcome.Code)
		}
		return errors.New(code, "operation rejected: "+m.Outcome.Reason)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Commands
// ─────────────────────────────────────────────────────────────────────────────

// NewSessionCmd groups the remote filing session commands.
func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"sessions"},
		Short:   "Drive filing sessions on a running server",
	}

	cmd.AddCommand(
		newSessionCreateCmd(),
		newSessionGetCmd(),
		newSessionDiscardCmd(),
		newSessionTypeCmd(),
		newSessionNavCmd("advance", "Move to the next step when the current one is complete", (*client.SessionsClient).Advance),
		newSessionNavCmd("retreat", "Move to the previous step", (*client.SessionsClient).Retreat),
		newSessionNavCmd("reset", "Clear the session back to unstarted", (*client.SessionsClient).Reset),
		newSessionSetCmd(),
		newSessionImportCmd(),
		newSessionExportCmd(),
		newSessionValidateCmd(),
		newSessionReportCmd(),
		newSessionUploadCmd(),
		newSessionUnuploadCmd(),
		newSessionSuggestCmd(),
		newSessionDocumentCmd(),
		newSessionSaveCmd(),
	)

	return cmd
}

func newSessionCreateCmd() *cobra.Command {
	var filingType string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Start a new session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := remote(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			s, err := c.Sessions().Create(ctx, filingType)
			if err != nil {
				return err
			}
			return PrintResult(cmd, sessionView{s})
		},
	}

	cmd.Flags().StringVarP(&filingType, "type", "t", "", "filing type (patent, trademark); choose later when empty")
	return cmd
}

func newSessionGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <session-id>",
		Short: "Show a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := remote(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			s, err := c.Sessions().Get(ctx, args[0])
			if err != nil {
				return err
			}
			return PrintResult(cmd, sessionView{s})
		},
	}
}

func newSessionDiscardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discard <session-id>",
		Short: "Drop a session without saving it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := remote(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			if err := c.Sessions().Discard(ctx, args[0]); err != nil {
				return err
			}
			PrintSuccess(cmd, "session "+args[0]+" discarded")
			return nil
		},
	}
}

func newSessionTypeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "type <session-id> <patent|trademark>",
		Short: "Select the filing type of an unstarted session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := remote(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			m, err := c.Sessions().SelectFilingType(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return printMutation(cmd, m)
		},
	}
}

type navFunc func(*client.SessionsClient, context.Context, string) (*client.Mutation, error)

func newSessionNavCmd(use, short string, fn navFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <session-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := remote(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			m, err := fn(c.Sessions(), ctx, args[0])
			if err != nil {
				return err
			}
			return printMutation(cmd, m)
		},
	}
}

// parseAssignments turns key=value pairs into record fields. Values that
// parse as JSON keep their JSON type; anything else is a string. An empty
// value clears the field.
func parseAssignments(pairs []string) (map[string]interface{}, error) {
	fields := make(map[string]interface{}, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q: want key=value", p)
		}
		if value == "" {
			fields[key] = nil
			continue
		}
		var v interface{}
		if err := json.Unmarshal([]byte(value), &v); err == nil {
			fields[key] = v
		} else {
			fields[key] = value
		}
	}
	return fields, nil
}

func newSessionSetCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "set <session-id> [key=value...]",
		Short: "Merge fields into the session record",
		Long: "Merge fields into the session record. Values are parsed as JSON when\n" +
			"possible (inventorNames='[\"Ada\"]'), otherwise taken as strings. An empty\n" +
			"value removes the field. --file merges a JSON object first.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := map[string]interface{}{}
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", file, err)
				}
				if err := json.Unmarshal(data, &fields); err != nil {
					return errors.Wrap(err, errors.ErrCodeSerialization, "fields file must hold a JSON object").WithDetail(file)
				}
			}
			assigned, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			for k, v := range assigned {
				fields[k] = v
			}
			if len(fields) == 0 {
				return errors.InvalidParam("nothing to set: pass key=value pairs or --file")
			}

			c, ctx, cancel, err := remote(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			m, err := c.Sessions().MergeFields(ctx, args[0], fields)
			if err != nil {
				return err
			}
			return printMutation(cmd, m)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON object of fields to merge")
	return cmd
}

func newSessionImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <session-id> <document.json>",
		Short: "Load an exported document into the session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[1], err)
			}
			var doc client.Document
			if err := json.Unmarshal(data, &doc); err != nil {
				return errors.Wrap(err, errors.ErrCodeSerialization, "file is not a filing document").WithDetail(args[1])
			}

			c, ctx, cancel, err := remote(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			m, err := c.Sessions().Import(ctx, args[0], doc)
			if err != nil {
				return err
			}
			return printMutation(cmd, m)
		},
	}
}

func newSessionExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export the session record as a portable document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := remote(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			doc, err := c.Sessions().Export(ctx, args[0])
			if err != nil {
				return err
			}
			if out == "" {
				return printJSON(cmd, doc)
			}
			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, append(data, '\n'), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			PrintSuccess(cmd, "exported to "+out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "write the document to a file instead of stdout")
	return cmd
}

type stepResultView struct {
	*client.StepResult
}

func (v stepResultView) JSONValue() interface{} { return v.StepResult }

func (v stepResultView) String() string {
	if v.Valid {
		return "step complete"
	}
	return "missing: " + strings.Join(v.MissingFields, ", ")
}

func newSessionValidateCmd() *cobra.Command {
	var step int

	cmd := &cobra.Command{
		Use:   "validate <session-id>",
		Short: "Check the required fields of a step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := remote(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			res, err := c.Sessions().Validate(ctx, args[0], step)
			if err != nil {
				return err
			}
			return PrintResult(cmd, stepResultView{res})
		},
	}

	cmd.Flags().IntVar(&step, "step", 0, "step to check (default: current)")
	return cmd
}

func newSessionReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <session-id>",
		Short: "Show the compliance report of the session record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := remote(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			r, err := c.Sessions().Report(ctx, args[0])
			if err != nil {
				return err
			}
			return PrintResult(cmd, reportView{r})
		},
	}
}

func newSessionUploadCmd() *cobra.Command {
	var (
		category  string
		mediaType string
	)

	cmd := &cobra.Command{
		Use:   "upload <session-id> <file>",
		Short: "Attach a file to the session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if category == "" {
				return errors.InvalidParam("--category is required")
			}
			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[1], err)
			}
			defer f.Close()
			if mediaType == "" {
				mediaType = mime.TypeByExtension(filepath.Ext(args[1]))
			}

			c, ctx, cancel, err := remote(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			m, err := c.Sessions().Upload(ctx, args[0], client.UploadRequest{
				Name:      filepath.Base(args[1]),
				MediaType: mediaType,
				Category:  category,
				Content:   f,
			})
			if err != nil {
				return err
			}
			return printMutation(cmd, m)
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "upload category (patent: drawings, priorArt, assignmentDocs, inventor; trademark: logo, specimens, consent, foreignReg)")
	cmd.Flags().StringVar(&mediaType, "media-type", "", "media type (default: from the file extension)")
	return cmd
}

func newSessionUnuploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-upload <session-id> <upload-id>",
		Short: "Detach an uploaded file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := remote(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			m, err := c.Sessions().RemoveUpload(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return printMutation(cmd, m)
		},
	}
}

func newSessionSuggestCmd() *cobra.Command {
	var autoApply bool

	cmd := &cobra.Command{
		Use:   "suggest <session-id> <field>",
		Short: "Request text suggestions for a field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := remote(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			m, err := c.Sessions().RequestSuggestions(ctx, args[0], args[1], autoApply)
			if err != nil {
				return err
			}
			return printMutation(cmd, m)
		},
	}

	cmd.Flags().BoolVar(&autoApply, "apply", false, "fill the field with the first suggestion when it is empty")
	return cmd
}

func newSessionDocumentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "document <session-id> <kind>",
		Short: "Generate a filing document (claims, abstract, specification, ...)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := remote(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			m, err := c.Sessions().GenerateDocument(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return printMutation(cmd, m)
		},
	}
}

func newSessionSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save <session-id>",
		Short: "Persist the session as an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := remote(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			app, err := c.Sessions().Save(ctx, args[0])
			if err != nil {
				return err
			}
			return PrintResult(cmd, applicationListView{Items: []client.Application{*app}, Total: 1, single: true})
		},
	}
}

//Personal.AI order the ending
