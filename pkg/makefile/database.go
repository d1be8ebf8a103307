package makefile

import (
	"bufio"
	"bytes"
	"cmp"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/matzehuels/makegraph/pkg/errors"
)

// DefaultMake is the make binary used when none is configured.
const DefaultMake = "make"

// DatabaseFlags make GNU make print its fully resolved rule database without
// running any recipe. --question keeps make from building anything; built-in
// rules and variables are disabled so only the Makefile's own rules appear.
var DatabaseFlags = []string{
	"--print-data-base",
	"--question",
	"--no-builtin-rules",
	"--no-builtin-variables",
}

// questionExitCode is what make --question returns when the goal is merely
// out of date. The database is complete in that case.
const questionExitCode = 1

// DatabaseSource obtains rules by delegating evaluation to an external
// GNU-make-compatible binary in database-dump mode. Variables, includes and
// conditionals are resolved by make itself, as are pattern rules for the
// targets the default goal reaches.
type DatabaseSource struct {
	Make   string        // Binary to run; DefaultMake when empty
	Runner CommandRunner // Process runner; ExecRunner when nil
}

// Args returns the full argument list passed to make for the Makefile at abs.
func (s *DatabaseSource) Args(abs string) []string {
	return append(append([]string{}, DatabaseFlags...), "-f", abs)
}

func (s *DatabaseSource) binary() string {
	if s.Make == "" {
		return DefaultMake
	}
	return s.Make
}

// Load runs make in the Makefile's directory, waits for it to exit and parses
// the dump. It fails with SOURCE_ERROR when the Makefile is missing, the make
// binary is unavailable, or make exits with a status other than 0 or 1, and
// with TIMEOUT when ctx expires first.
func (s *DatabaseSource) Load(ctx context.Context, path string) (*Input, error) {
	abs, err := resolveMakefile(path)
	if err != nil {
		return nil, err
	}

	runner := s.Runner
	if runner == nil {
		runner = NewExecRunner()
	}
	bin := s.binary()

	out, err := runner.Run(ctx, filepath.Dir(abs), bin, s.Args(abs)...)
	if err != nil {
		var exitErr *ExitError
		switch {
		case stderrors.Is(err, context.DeadlineExceeded):
			return nil, errors.Wrap(errors.ErrCodeTimeout, err, "%s did not finish", bin)
		case stderrors.Is(err, ErrCommandNotFound):
			return nil, errors.Wrap(errors.ErrCodeSource, err, "make binary %q is not available", bin)
		case stderrors.As(err, &exitErr) && exitErr.Code == questionExitCode:
			// Out-of-date goal; the dump is still complete.
		default:
			return nil, errors.Wrap(errors.ErrCodeSource, err, "%s failed for %s", bin, abs)
		}
	}

	blocks, vars, err := ParseDatabase(bytes.NewReader(out), abs)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSource, err, "read %s database", bin)
	}
	return &Input{
		Path:   abs,
		Mode:   ModeDatabase,
		Blocks: blocks,
		Vars:   vars,
	}, nil
}

// resolveMakefile returns the absolute path of a readable regular file.
func resolveMakefile(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeSource, err, "resolve %s", path)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeSource, err, "read makefile %s", path)
	}
	if info.IsDir() {
		return "", errors.New(errors.ErrCodeSource, "makefile %s is a directory", path)
	}
	return abs, nil
}

type dbSection int

const (
	sectionOther dbSection = iota
	sectionVariables
	sectionFiles
	sectionImplicit
)

var dbHeaders = map[string]dbSection{
	"# Variables":                        sectionVariables,
	"# Files":                            sectionFiles,
	"# Implicit Rules":                   sectionImplicit,
	"# Directories":                      sectionOther,
	"# Pattern-specific Variable Values": sectionOther,
	"# VPATH Search Paths":               sectionOther,
}

// recipeOrigin matches "recipe to execute (from 'Makefile', line 12):".
// Older make versions open the quote with a backtick.
var recipeOrigin = regexp.MustCompile("\\(from [`']([^']+)', line (\\d+)\\)")

// dbVarLine matches "NAME := value" and "NAME = value" in the Variables
// section.
var dbVarLine = regexp.MustCompile(`^([^\s=:#]+) (::?=|\?=|\+=|!=|=) ?(.*)$`)

// ParseDatabase extracts rule blocks and makefile-defined variables from the
// output of make --print-data-base. Only the "# Files" and "# Implicit Rules"
// sections produce blocks; entries announced with "# Not a target:" are
// skipped. path is the Makefile the dump was produced for and is used for
// block origins that make does not report.
//
// make prints entries in hash table order. Entries whose recipe origin is
// known are put back in Makefile order, by MAKEFILE_LIST position and then
// line, within the slots such entries held; the rest keep their dump
// position.
func ParseDatabase(r io.Reader, path string) ([]Block, map[string]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var (
		blocks   []Block
		srcs     []dbSource
		src      dbSource
		section  = sectionOther
		entry    Block
		inEntry  bool
		skip     bool
		lineNo   int
		ruleLine int
		varNote  string
		inDefine bool
	)
	vars := NewVars(filepath.Dir(path))
	base := filepath.Base(path)

	flush := func() {
		if inEntry && !skip && entry.Line != "" {
			if entry.Origin == "" {
				entry.Origin = fmt.Sprintf("%s (make database line %d)", base, ruleLine)
			}
			src.section = section
			blocks = append(blocks, entry)
			srcs = append(srcs, src)
		}
		entry, inEntry, skip, src = Block{}, false, false, dbSource{}
	}

	for sc.Scan() {
		lineNo++
		line := strings.TrimSuffix(sc.Text(), "\r")

		if sec, ok := dbHeaders[line]; ok {
			flush()
			section = sec
			continue
		}
		if strings.HasPrefix(line, "# finished making data base") {
			flush()
			section = sectionOther
			continue
		}

		switch section {
		case sectionVariables:
			switch {
			case inDefine:
				inDefine = line != "endef"
			case strings.HasPrefix(line, "define "):
				inDefine = true
			case strings.HasPrefix(line, "#"):
				varNote = strings.TrimSpace(strings.TrimPrefix(line, "#"))
			default:
				m := dbVarLine.FindStringSubmatch(line)
				if m != nil && userVariable(varNote) {
					vars.Assign(m[1], m[2], m[3])
				}
			}

		case sectionFiles, sectionImplicit:
			switch {
			case line == "":
				flush()
			case line == "# Not a target:":
				inEntry, skip = true, true
			case strings.HasPrefix(line, "\t"):
				if entry.Line != "" {
					entry.Recipe = append(entry.Recipe, line[1:])
				}
			case strings.HasPrefix(line, "#"):
				inEntry = true
				note := strings.TrimPrefix(line, "#")
				entry.Notes = append(entry.Notes, note)
				if m := recipeOrigin.FindStringSubmatch(note); m != nil {
					entry.Origin = m[1] + ":" + m[2]
					src.file = m[1]
					src.line, _ = strconv.Atoi(m[2])
				}
			default:
				inEntry = true
				if entry.Line == "" {
					entry.Line = line
					ruleLine = lineNo
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	flush()

	values := vars.Map()
	sortBySource(blocks, srcs, MakefileList(values["MAKEFILE_LIST"], filepath.Dir(path)), filepath.Dir(path))
	return blocks, values, nil
}

// dbSource is where make says a database entry's recipe was defined. line
// is zero when make did not say.
type dbSource struct {
	section dbSection
	file    string
	line    int
}

// sortBySource reorders the blocks with a known origin into Makefile order
// without moving the others. files is MAKEFILE_LIST, resolved against dir.
func sortBySource(blocks []Block, srcs []dbSource, files []string, dir string) {
	rank := make(map[string]int, len(files))
	for i, f := range files {
		rank[f] = i
	}
	fileRank := func(name string) int {
		if !filepath.IsAbs(name) {
			name = filepath.Join(dir, name)
		}
		if r, ok := rank[filepath.Clean(name)]; ok {
			return r
		}
		return len(files)
	}

	bySection := make(map[dbSection][]int)
	for i, s := range srcs {
		if s.line > 0 {
			bySection[s.section] = append(bySection[s.section], i)
		}
	}
	for _, slots := range bySection {
		sorted := slices.Clone(slots)
		slices.SortStableFunc(sorted, func(a, b int) int {
			sa, sb := srcs[a], srcs[b]
			return cmp.Or(
				cmp.Compare(fileRank(sa.file), fileRank(sb.file)),
				strings.Compare(sa.file, sb.file),
				cmp.Compare(sa.line, sb.line),
			)
		})
		picked := make([]Block, len(sorted))
		for i, from := range sorted {
			picked[i] = blocks[from]
		}
		for i, slot := range slots {
			blocks[slot] = picked[i]
		}
	}
}

// userVariable reports whether a Variables-section note marks a variable
// that came from a makefile or the command line rather than the environment
// or make's automatic set.
func userVariable(note string) bool {
	for _, p := range []string{"makefile", "command line", "override"} {
		if strings.HasPrefix(note, p) {
			return true
		}
	}
	return false
}

// MakefileList splits a MAKEFILE_LIST value into absolute paths, resolving
// relative entries against dir, the directory make ran in. Duplicates are
// dropped and the first-seen order is kept.
func MakefileList(value, dir string) []string {
	var files []string
	seen := make(map[string]bool)
	for _, f := range strings.Fields(value) {
		if !filepath.IsAbs(f) {
			f = filepath.Join(dir, f)
		}
		if f = filepath.Clean(f); !seen[f] {
			seen[f] = true
			files = append(files, f)
		}
	}
	return files
}

// DumpMakefiles returns every file make read while producing dump, taken
// from the MAKEFILE_LIST line of its variables section.
func DumpMakefiles(dump []byte, dir string) []string {
	sc := bufio.NewScanner(bytes.NewReader(dump))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var list string
	for sc.Scan() {
		if m := dbVarLine.FindStringSubmatch(sc.Text()); m != nil && m[1] == "MAKEFILE_LIST" {
			list = m[3]
		}
	}
	return MakefileList(list, dir)
}
