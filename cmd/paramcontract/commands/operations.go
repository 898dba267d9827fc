package commands

import (
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/erraggy/paramcontract/contract"
	"github.com/erraggy/paramcontract/internal/cliutil"
)

type parameterSummary struct {
	Name     string `json:"name"               yaml:"name"`
	In       string `json:"in"                 yaml:"in"`
	Type     string `json:"type"               yaml:"type"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Repeated bool   `json:"repeated,omitempty" yaml:"repeated,omitempty"`
	Enum     []any  `json:"enum,omitempty"     yaml:"enum,omitempty"`
}

type operationSummary struct {
	OperationID  string             `json:"operation_id"            yaml:"operation_id"`
	Method       string             `json:"method,omitempty"        yaml:"method,omitempty"`
	Path         string             `json:"path,omitempty"          yaml:"path,omitempty"`
	Mode         string             `json:"mode"                    yaml:"mode"`
	Parameters   []parameterSummary `json:"parameters,omitempty"    yaml:"parameters,omitempty"`
	ContentTypes []string           `json:"content_types,omitempty" yaml:"content_types,omitempty"`
}

func newOperationsCommand(root *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "operations [flags] <file>...",
		Short: "List the operations declared by contract documents",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(*cobra.Command, []string) error {
			return ValidateOutputFormat(format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := contract.LoadFiles(cmd.Context(), args, root.loadOptions()...)
			if err != nil {
				return err
			}
			summaries, err := summarize(reg)
			if err != nil {
				return err
			}
			if format == FormatText {
				writeOperationsTable(cmd.OutOrStdout(), summaries)
				return nil
			}
			return OutputStructured(cmd.OutOrStdout(), summaries, format)
		},
	}
	addFormatFlag(cmd, &format)
	return cmd
}

func summarize(reg *contract.Registry) ([]operationSummary, error) {
	ids := reg.Operations()
	out := make([]operationSummary, 0, len(ids))
	for _, id := range ids {
		c, err := reg.Lookup(id)
		if err != nil {
			return nil, err
		}
		s := operationSummary{
			OperationID: c.OperationID,
			Method:      c.Method,
			Path:        c.Path,
			Mode:        string(c.Mode()),
		}
		for _, p := range c.Parameters {
			s.Parameters = append(s.Parameters, parameterSummary{
				Name:     p.Name,
				In:       string(p.Location),
				Type:     string(p.Type),
				Required: p.Required,
				Repeated: p.Repeated,
				Enum:     p.Enum,
			})
		}
		for _, b := range c.Bodies {
			s.ContentTypes = append(s.ContentTypes, string(b.ContentType))
		}
		out = append(out, s)
	}
	return out, nil
}

func writeOperationsTable(w io.Writer, ops []operationSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	cliutil.Writef(tw, "OPERATION\tMETHOD\tPATH\tMODE\tPARAMETERS\tBODY\n")
	for _, op := range ops {
		params := make([]string, 0, len(op.Parameters))
		for _, p := range op.Parameters {
			name := p.In + "." + p.Name
			if p.Required {
				name += "*"
			}
			params = append(params, name)
		}
		cliutil.Writef(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			op.OperationID, dash(op.Method), dash(op.Path), op.Mode,
			dash(strings.Join(params, ",")), dash(strings.Join(op.ContentTypes, ",")))
	}
	_ = tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
