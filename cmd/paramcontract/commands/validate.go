package commands

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/erraggy/paramcontract/contract"
	"github.com/erraggy/paramcontract/errformat"
	"github.com/erraggy/paramcontract/httpvalidator"
	"github.com/erraggy/paramcontract/internal/cliutil"
	"github.com/erraggy/paramcontract/internal/options"
)

type validateOptions struct {
	contracts   []string
	operation   string
	method      string
	url         string
	headers     []string
	cookies     []string
	contentType string
	data        string
	errorFormat string
	maxBodySize int64
	format      string
}

type validateReport struct {
	Operation string                       `json:"operation"           yaml:"operation"`
	Method    string                       `json:"method"              yaml:"method"`
	Valid     bool                         `json:"valid"               yaml:"valid"`
	Values    map[string]any               `json:"values,omitempty"    yaml:"values,omitempty"`
	Sources   map[string]contract.Location `json:"sources,omitempty"   yaml:"sources,omitempty"`
	Fallbacks map[string]contract.Location `json:"fallbacks,omitempty" yaml:"fallbacks,omitempty"`
	Errors    []validateIssue              `json:"errors,omitempty"    yaml:"errors,omitempty"`
	Status    int                          `json:"status,omitempty"    yaml:"status,omitempty"`
	Body      string                       `json:"body,omitempty"      yaml:"body,omitempty"`
}

type validateIssue struct {
	Location string `json:"location"       yaml:"location"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Code     string `json:"code"           yaml:"code"`
	Message  string `json:"message"        yaml:"message"`
}

func newValidateCommand(root *rootOptions) *cobra.Command {
	o := &validateOptions{}
	cmd := &cobra.Command{
		Use:   "validate --contracts <file> --url <url> [flags]",
		Short: "Validate one HTTP request against an operation's contract",
		Long: `Validate one HTTP request against the contract of an operation and print
the coerced parameter values, or the validation errors together with the
error body a server would send.

When --operation is omitted the operation is found by matching the method
and the URL path against the path templates of the loaded contracts.`,
		Example: `  paramcontract validate --contracts hosts.yaml --operation get_host \
    --url '/hosts/7?verbose=true'
  paramcontract validate --contracts hosts.yaml --method POST --url /hosts \
    --content-type application/json --data @body.json --error-format problem`,
		Args: cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			return ValidateOutputFormat(o.format)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd, o, root)
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&o.contracts, "contracts", "c", nil, "contract document(s) to load")
	f.StringVarP(&o.operation, "operation", "o", "", "operationId to validate against")
	f.StringVarP(&o.method, "method", "X", "", "HTTP method (default: the contract's method, or GET)")
	f.StringVarP(&o.url, "url", "u", "", "request URL or path with query string")
	f.StringArrayVarP(&o.headers, "header", "H", nil, "request header as 'Name: value' (repeatable)")
	f.StringArrayVar(&o.cookies, "cookie", nil, "Cookie header line, e.g. 'session=abc; theme=dark' (repeatable)")
	f.StringVar(&o.contentType, "content-type", "", "Content-Type of the body")
	f.StringVarP(&o.data, "data", "d", "", "request body, @file to read a file or @- for stdin")
	f.StringVar(&o.errorFormat, "error-format", "", "rendered error shape: simple or problem (default: PARAMCONTRACT_ERROR_FORMAT)")
	f.Int64Var(&o.maxBodySize, "max-body-size", 0, "largest body parsed, in bytes (default: PARAMCONTRACT_MAX_BODY_SIZE)")
	addFormatFlag(cmd, &o.format)
	_ = cmd.MarkFlagRequired("contracts")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func runValidate(cmd *cobra.Command, o *validateOptions, root *rootOptions) error {
	settings := options.LoadSettings()
	format := settings.ErrorFormat
	if o.errorFormat != "" {
		f, err := errformat.ByName(o.errorFormat)
		if err != nil {
			return err
		}
		format = f
	}
	maxBodySize := settings.MaxBodySize
	if cmd.Flags().Changed("max-body-size") {
		maxBodySize = o.maxBodySize
	}
	v, err := httpvalidator.New(httpvalidator.WithMaxBodySize(maxBodySize))
	if err != nil {
		return err
	}

	header, err := parseHeaders(o.headers)
	if err != nil {
		return err
	}
	for _, c := range o.cookies {
		header.Add("Cookie", c)
	}
	if o.contentType != "" {
		header.Set("Content-Type", o.contentType)
	}
	body, err := readData(o.data, cmd.InOrStdin())
	if err != nil {
		return err
	}

	reg, err := contract.LoadFiles(cmd.Context(), o.contracts, root.loadOptions()...)
	if err != nil {
		return err
	}

	method := strings.ToUpper(o.method)
	id := o.operation
	if id == "" {
		id, err = matchOperation(reg, method, o.url)
		if err != nil {
			return err
		}
	}
	c, err := reg.Lookup(id)
	if err != nil {
		return err
	}
	if method == "" {
		method = c.Method
	}
	if method == "" {
		method = http.MethodGet
	}

	desc, err := httpvalidator.FromURL(method, o.url, c.Path, header, body)
	if err != nil {
		return err
	}
	result := v.Validate(c, desc)
	root.logger.Debug("request validated", "operation", id, "valid", result.Valid, "errors", len(result.Errors))

	report := validateReport{
		Operation: id,
		Method:    method,
		Valid:     result.Valid,
		Values:    result.Values,
		Sources:   result.Sources,
	}
	if fallbacks := result.Fallbacks(c); len(fallbacks) > 0 {
		report.Fallbacks = fallbacks
	}
	for _, e := range result.Errors {
		report.Errors = append(report.Errors, validateIssue{
			Location: string(e.Location),
			Name:     e.Name,
			Code:     string(e.Code),
			Message:  e.Message,
		})
	}
	if !result.Valid {
		report.Status = format.StatusCode()
		report.Body = string(format.Render(result.Errors))
	}

	out := cmd.OutOrStdout()
	if o.format == FormatText {
		writeValidateText(out, report, format)
	} else if err := OutputStructured(out, report, o.format); err != nil {
		return err
	}
	if !report.Valid {
		return ErrFailed
	}
	return nil
}

// matchOperation finds the operation whose method and path template match rawURL.
func matchOperation(reg *contract.Registry, method, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing URL: %w", err)
	}
	if method == "" {
		method = http.MethodGet
	}
	id, _, ok := reg.Match(method, u.EscapedPath())
	if !ok {
		return "", fmt.Errorf("no operation matches %s %s; pass --operation", method, u.Path)
	}
	return id, nil
}

// parseHeaders turns 'Name: value' lines into a header.
func parseHeaders(lines []string) (http.Header, error) {
	header := make(http.Header, len(lines))
	for _, line := range lines {
		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q; use 'Name: value'", line)
		}
		header.Add(name, strings.TrimSpace(value))
	}
	return header, nil
}

// readData resolves the --data value: inline text, @file, or @- for stdin.
func readData(data string, stdin io.Reader) ([]byte, error) {
	switch {
	case data == "":
		return nil, nil
	case data == "@-":
		return io.ReadAll(stdin)
	case strings.HasPrefix(data, "@"):
		b, err := os.ReadFile(data[1:]) //nolint:gosec // G304: body file is operator supplied
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
		return b, nil
	default:
		return []byte(data), nil
	}
}

func writeValidateText(w io.Writer, report validateReport, format errformat.Format) {
	if report.Valid {
		cliutil.Writef(w, "valid: %s %s\n", report.Method, report.Operation)
		names := make([]string, 0, len(report.Values))
		for name := range report.Values {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			source := string(report.Sources[name])
			if _, ok := report.Fallbacks[name]; ok {
				source += ", fallback"
			}
			cliutil.Writef(w, "  %s = %v (%s)\n", name, report.Values[name], source)
		}
		return
	}

	cliutil.Writef(w, "invalid: %s %s, %d error(s)\n", report.Method, report.Operation, len(report.Errors))
	for _, e := range report.Errors {
		target := e.Location
		if e.Name != "" {
			target += "." + e.Name
		}
		cliutil.Writef(w, "  %s %s: %s\n", e.Code, target, e.Message)
	}
	cliutil.Writef(w, "\nHTTP %d %s\n%s\n", report.Status, format.ContentType(), report.Body)
}
