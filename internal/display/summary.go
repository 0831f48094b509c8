package display

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"mysql-physical-backup/internal/backup"
)

// Summary renders the outcome of a backup run for a human operator. The
// manifest itself is the machine-readable artifact; this is just the terminal
// view of it.
type Summary struct {
	out     io.Writer
	success *color.Color
	header  *color.Color
	label   *color.Color
}

// NewSummary creates a summary renderer. Color is disabled when the output is
// not a terminal or when the caller asks for plain output.
func NewSummary(out io.Writer, noColor bool) *Summary {
	s := &Summary{
		out:     out,
		success: color.New(color.FgGreen, color.Bold),
		header:  color.New(color.FgCyan, color.Bold),
		label:   color.New(color.FgWhite),
	}

	if noColor || !colorCapable(out) {
		s.success.DisableColor()
		s.header.DisableColor()
		s.label.DisableColor()
	}

	return s
}

func colorCapable(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Render writes the per-database table counts and schema sizes of a completed
// run.
func (s *Summary) Render(m *backup.Manifest, duration time.Duration) {
	if m == nil {
		return
	}

	fmt.Fprintf(s.out, "\n%s\n", s.header.Sprint("=== Physical Backup Complete ==="))
	fmt.Fprintf(s.out, "%s %s\n", s.label.Sprint("Run:"), m.RunID)
	fmt.Fprintf(s.out, "%s %s\n", s.label.Sprint("Duration:"), duration.Round(time.Millisecond))

	names := make([]string, 0, len(m.Databases))
	for name := range m.Databases {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		dbm := m.Databases[name]
		fmt.Fprintf(s.out, "\n%s %s\n", s.label.Sprint("Database:"), s.success.Sprint(name))
		fmt.Fprintf(s.out, "  InnoDB tables: %d\n", len(dbm.InnoDBTables))
		fmt.Fprintf(s.out, "  MyISAM tables: %d\n", len(dbm.MyISAMTables))
		fmt.Fprintf(s.out, "  Schema size:   %d bytes\n", len(dbm.Schema))
	}

	fmt.Fprintln(s.out)
}
