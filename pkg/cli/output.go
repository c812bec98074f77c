package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/beam-cloud/airkv/pkg/kv"
	"github.com/beam-cloud/airkv/pkg/types"
)

// previewWidth caps inlined values in key listings
const previewWidth = 60

var (
	// outputJSON controls whether commands should output JSON instead of styled text
	outputJSON bool

	stdout io.Writer = os.Stdout
)

// SetJSONOutput sets the JSON output mode
func SetJSONOutput(enabled bool) {
	outputJSON = enabled
}

// IsJSONOutput returns true if JSON output mode is enabled
func IsJSONOutput() bool {
	return outputJSON
}

// SetOutput redirects everything the print helpers write
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	stdout = w
}

// PrintJSON outputs data as JSON if JSON mode is enabled, returns true if it did
func PrintJSON(data interface{}) bool {
	if !outputJSON {
		return false
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	enc.Encode(data)
	return true
}

func PrintSuccess(msg string) {
	fmt.Fprintf(stdout, "  %s %s\n", SuccessStyle.Render(SymbolSuccess), msg)
}

func PrintSuccessf(format string, args ...interface{}) {
	PrintSuccess(fmt.Sprintf(format, args...))
}

func PrintErrorMsg(msg string) {
	fmt.Fprintf(stdout, "  %s %s\n", ErrorStyle.Render(SymbolError), ErrorStyle.Render(msg))
}

func PrintWarning(msg string) {
	fmt.Fprintf(stdout, "  %s %s\n", WarningStyle.Render(SymbolWarning), WarningStyle.Render(msg))
}

func PrintInfo(msg string) {
	fmt.Fprintf(stdout, "  %s %s\n", InfoStyle.Render(SymbolInfo), msg)
}

func PrintHint(msg string) {
	fmt.Fprintf(stdout, "\n  %s\n", HintStyle.Render(msg))
}

func PrintSuggestions(title string, suggestions []string) {
	fmt.Fprintf(stdout, "\n  %s\n", DimStyle.Render(title))
	for _, s := range suggestions {
		fmt.Fprintf(stdout, "    %s %s\n", DimStyle.Render(SymbolBullet), s)
	}
}

func PrintHeader(title string) {
	fmt.Fprintf(stdout, "\n  %s\n\n", BoldStyle.Render(title))
}

func PrintKeyValue(key, value string) {
	fmt.Fprintf(stdout, "  %s %s\n", KeyStyle.Render(key), value)
}

// PrintRaw writes text unstyled, adding a trailing newline when missing
func PrintRaw(text string) {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	fmt.Fprint(stdout, text)
}

// printTable renders rows under headers with a header rule and no outer border.
func printTable(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		BorderStyle(DimStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			if row >= 0 && row < len(rows) && col < len(rows[row]) {
				if cell := rows[row][col]; cell == "-" || cell == "?" {
					return MissingCellStyle
				}
			}
			return TableCellStyle
		})

	for _, line := range strings.Split(t.String(), "\n") {
		fmt.Fprintf(stdout, "  %s\n", line)
	}
}

func lastUsed(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

func printFolders(folders []types.Folder) {
	if len(folders) == 0 {
		PrintInfo("No folders registered.")
		PrintHint("Register one with: airkv folder add <path>")
		return
	}

	rows := make([][]string, 0, len(folders))
	for _, f := range folders {
		rows = append(rows, []string{strconv.FormatInt(f.ID, 10), f.Name, f.Path, lastUsed(f.LastUsedAt)})
	}
	printTable([]string{"ID", "NAME", "PATH", "LAST USED"}, rows)
}

func printFolderView(view kv.FolderView) {
	if len(view.Namespaces) == 0 {
		PrintInfo("No namespaces found.")
	} else {
		rows := make([][]string, 0, len(view.Namespaces))
		for _, ns := range view.Namespaces {
			rows = append(rows, []string{ns.Name, ns.ID, entryCount(ns)})
		}
		printTable([]string{"NAMESPACE", "ID", "ENTRIES"}, rows)
	}

	for _, name := range view.Skipped {
		PrintWarning(fmt.Sprintf("Skipped namespace %s", name))
	}
}

func printConnections(conns []types.RemoteConnection) {
	if len(conns) == 0 {
		PrintInfo("No accounts connected.")
		return
	}

	rows := make([][]string, 0, len(conns))
	for _, c := range conns {
		rows = append(rows, []string{c.AccountID, lastUsed(c.LastUsedAt)})
	}
	printTable([]string{"ACCOUNT", "LAST USED"}, rows)
}

func printRemoteNamespaces(namespaces []types.Namespace, withCounts bool) {
	if len(namespaces) == 0 {
		PrintInfo("No remote namespaces found.")
		return
	}

	headers := []string{"NAME", "ID", "ACCOUNT"}
	if withCounts {
		headers = append(headers, "KEYS")
	}
	rows := make([][]string, 0, len(namespaces))
	for _, ns := range namespaces {
		row := []string{ns.Name, ns.ID, ns.AccountID}
		if withCounts {
			row = append(row, entryCount(ns))
		}
		rows = append(rows, row)
	}
	printTable(headers, rows)
}

func printEntries(page types.EntryPage) {
	if len(page.Entries) == 0 {
		PrintInfo("No keys found.")
		return
	}

	rows := make([][]string, 0, len(page.Entries))
	for _, e := range page.Entries {
		expires := "-"
		if e.Expiration != nil {
			expires = strconv.FormatInt(*e.Expiration, 10)
		}
		rows = append(rows, []string{e.Key, expires, valuePreview(e)})
	}
	printTable([]string{"KEY", "EXPIRES", "VALUE"}, rows)

	fmt.Fprintln(stdout)
	PrintKeyValue("Total", strconv.Itoa(page.TotalCount))
	if page.NextCursor != nil {
		PrintKeyValue("Next cursor", *page.NextCursor)
		PrintHint("Fetch the next page with --cursor, or everything with --all")
	}
}

// printValue writes a value compact in JSON mode and indented otherwise.
func printValue(value json.RawMessage) {
	if len(value) == 0 {
		value = json.RawMessage("null")
	}
	if IsJSONOutput() {
		PrintRaw(string(compactJSON(value)))
		return
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, value, "", "  "); err != nil {
		PrintRaw(string(value))
		return
	}
	PrintRaw(pretty.String())
}

// entryCount prefers the reported count; remote namespaces without one show "?".
func entryCount(ns types.Namespace) string {
	switch {
	case ns.EntryCount != nil:
		return strconv.Itoa(*ns.EntryCount)
	case ns.Kind == types.NamespaceKindLocal:
		return strconv.Itoa(len(ns.Entries))
	}
	return "?"
}

// valuePreview is the compact value cut to previewWidth runes, or "-" when not fetched.
func valuePreview(e types.Entry) string {
	if !e.HasValue() {
		return "-"
	}
	preview := []rune(string(compactJSON(e.Value)))
	if len(preview) <= previewWidth {
		return string(preview)
	}
	return string(preview[:previewWidth-1]) + "…"
}

func compactJSON(raw json.RawMessage) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
