package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
)

// Output печатает ответы API: таблицы для людей, JSON для скриптов.
// Данные идут в stdout, служебные сообщения — в stderr, чтобы таблицы
// и JSON можно было пайпить дальше.
type Output struct {
	jsonMode bool
	w        io.Writer
	errW     io.Writer
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        os.Stdout,
		errW:     os.Stderr,
	}
}

// Print выводит данные в формате, выбранном флагом --json.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Execution выводит execution и, отдельной таблицей ниже, его шаги
// в порядке конвейера.
func (o *Output) Execution(exec *ExecutionResponse) {
	if o.jsonMode {
		o.JSON(exec)
		return
	}

	o.Table(
		[]string{"ID", "ARTIFACT_ID", "STATUS", "DURATION_MS", "ERROR"},
		[][]string{{exec.ID, exec.ArtifactID, exec.Status, strconv.FormatInt(exec.DurationMs, 10), exec.Error}},
	)

	if len(exec.Steps) == 0 {
		return
	}
	fmt.Fprintln(o.w)

	rows := make([][]string, 0, len(exec.Steps))
	for _, s := range exec.Steps {
		rows = append(rows, []string{
			strconv.Itoa(s.Ord), s.Name, s.Status, strconv.FormatInt(s.DurationMs, 10), s.Error,
		})
	}
	o.Table([]string{"ORD", "STEP", "STATUS", "DURATION_MS", "ERROR"}, rows)
}

// Table выводит таблицу с заголовком и строкой-разделителем.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	line := func(cells []string) {
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}

	line(headers)
	sep := make([]string, len(headers))
	for i, h := range headers {
		sep[i] = strings.Repeat("-", len(h))
	}
	line(sep)

	for _, row := range rows {
		line(row)
	}
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}
