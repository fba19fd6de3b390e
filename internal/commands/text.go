package commands

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

const defaultLineCount = 10

func textCommands() []*Definition {
	return []*Definition{
		Simple("echo", "Display a line of text", "echo [string...]", echo),
		Define("cat", "Concatenate files and print them", "cat [options] [file...]", cat),
		Define("tr", "Translate or delete characters", "tr [options] set1 [set2]", tr),
		Define("wc", "Count lines, words, and characters", "wc [options] [file...]", wc),
		Define("head", "Output the first part of files", "head [options] [file...]", head),
		Define("tail", "Output the last part of files", "tail [options] [file...]", tail),
		Define("sort", "Sort lines of text", "sort [options] [file...]", sortLines),
		Define("uniq", "Report or omit repeated lines", "uniq [options] [file]", uniq),
		Define("grep", "Print lines matching a pattern", "grep [options] pattern [file...]", grep),
		Define("rev", "Reverse lines characterwise", "rev [file...]", rev),
	}
}

// splitLines splits text into lines; a single trailing newline does not
// produce an empty last line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func joinLines(lines []string) string { return strings.Join(lines, "\n") }

func echo(_ context.Context, inv *Invocation) Result {
	return OK(strings.Join(inv.Args, " "))
}

type catOptions struct {
	Number bool `flag:"-n,--number" help:"number all output lines"`
}

func cat(_ context.Context, inv *Invocation, opts *catOptions) Result {
	content, err := inv.Input(inv.Args)
	if err != nil {
		return Fail(fmt.Errorf("cat: %w", err))
	}
	if !opts.Number {
		return OK(content)
	}
	lines := splitLines(content)
	for i, line := range lines {
		lines[i] = fmt.Sprintf("%6d\t%s", i+1, line)
	}
	return OK(joinLines(lines))
}

type trOptions struct {
	Delete bool `flag:"-d,--delete" help:"delete characters in set1"`
}

func tr(_ context.Context, inv *Invocation, opts *trOptions) Result {
	if len(inv.Args) < 1 {
		return Failf("tr: missing operand")
	}
	set1 := expandSet(inv.Args[0])
	if opts.Delete {
		if len(inv.Args) > 1 {
			return Failf("tr: extra operand '%s'", inv.Args[1])
		}
		drop := make(map[rune]bool, len(set1))
		for _, r := range set1 {
			drop[r] = true
		}
		return OK(strings.Map(func(r rune) rune {
			if drop[r] {
				return -1
			}
			return r
		}, inv.Stdin))
	}
	if len(inv.Args) < 2 {
		return Failf("tr: missing operand after '%s'", inv.Args[0])
	}
	set2 := expandSet(inv.Args[1])
	if len(set2) == 0 {
		return Failf("tr: when not truncating set1, string2 must be non-empty")
	}
	replace := make(map[rune]rune, len(set1))
	for i, r := range set1 {
		// a short set2 is padded with its last character
		replace[r] = set2[min(i, len(set2)-1)]
	}
	return OK(strings.Map(func(r rune) rune {
		if to, ok := replace[r]; ok {
			return to
		}
		return r
	}, inv.Stdin))
}

// expandSet expands a-z style ranges and backslash escapes of a tr set.
func expandSet(set string) []rune {
	in := []rune(set)
	var out []rune
	for i := 0; i < len(in); i++ {
		r := in[i]
		if r == '\\' && i+1 < len(in) {
			i++
			switch in[i] {
			case 'n':
				r = '\n'
			case 't':
				r = '\t'
			default:
				r = in[i]
			}
		}
		if i+2 < len(in) && in[i+1] == '-' && in[i+2] >= r {
			for c := r; c <= in[i+2]; c++ {
				out = append(out, c)
			}
			i += 2
			continue
		}
		out = append(out, r)
	}
	return out
}

type wcOptions struct {
	Lines bool `flag:"-l,--lines" help:"print the line count"`
	Words bool `flag:"-w,--words" help:"print the word count"`
	Chars bool `flag:"-c,--chars,-m" help:"print the character count"`
}

func wc(_ context.Context, inv *Invocation, opts *wcOptions) Result {
	if !opts.Lines && !opts.Words && !opts.Chars {
		opts.Lines, opts.Words, opts.Chars = true, true, true
	}
	count := func(content, label string) string {
		var fields []string
		if opts.Lines {
			fields = append(fields, strconv.Itoa(len(splitLines(content))))
		}
		if opts.Words {
			fields = append(fields, strconv.Itoa(len(strings.Fields(content))))
		}
		if opts.Chars {
			fields = append(fields, strconv.Itoa(utf8.RuneCountInString(content)))
		}
		if label != "" {
			fields = append(fields, label)
		}
		return strings.Join(fields, " ")
	}
	if len(inv.Args) == 0 {
		return OK(count(inv.Stdin, ""))
	}
	var out []string
	for _, f := range inv.Args {
		content, err := inv.Input([]string{f})
		if err != nil {
			return Fail(fmt.Errorf("wc: %w", err))
		}
		out = append(out, count(content, f))
	}
	return OK(joinLines(out))
}

type countOptions struct {
	Lines int `flag:"-n,--lines" help:"number of lines (default 10)"`
}

func (o *countOptions) count() int {
	if o.Lines <= 0 {
		return defaultLineCount
	}
	return o.Lines
}

func head(_ context.Context, inv *Invocation, opts *countOptions) Result {
	content, err := inv.Input(inv.Args)
	if err != nil {
		return Fail(fmt.Errorf("head: %w", err))
	}
	lines := splitLines(content)
	return OK(joinLines(lines[:min(opts.count(), len(lines))]))
}

func tail(_ context.Context, inv *Invocation, opts *countOptions) Result {
	content, err := inv.Input(inv.Args)
	if err != nil {
		return Fail(fmt.Errorf("tail: %w", err))
	}
	lines := splitLines(content)
	return OK(joinLines(lines[max(len(lines)-opts.count(), 0):]))
}

type sortOptions struct {
	Reverse bool `flag:"-r,--reverse" help:"reverse the result of comparisons"`
	Numeric bool `flag:"-n,--numeric-sort" help:"compare according to numerical value"`
	Unique  bool `flag:"-u,--unique" help:"output only the first of equal lines"`
}

func sortLines(_ context.Context, inv *Invocation, opts *sortOptions) Result {
	content, err := inv.Input(inv.Args)
	if err != nil {
		return Fail(fmt.Errorf("sort: %w", err))
	}
	lines := splitLines(content)
	cmp := strings.Compare
	if opts.Numeric {
		cmp = func(a, b string) int {
			x, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
			y, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)
			switch {
			case errA != nil && errB != nil:
				return strings.Compare(a, b)
			case errA != nil:
				return -1
			case errB != nil:
				return 1
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return strings.Compare(a, b)
		}
	}
	slices.SortStableFunc(lines, cmp)
	if opts.Unique {
		lines = slices.Compact(lines)
	}
	if opts.Reverse {
		slices.Reverse(lines)
	}
	return OK(joinLines(lines))
}

type uniqOptions struct {
	Count      bool `flag:"-c,--count" help:"prefix lines by the number of occurrences"`
	Repeated   bool `flag:"-d,--repeated" help:"only print duplicate lines"`
	UniqueOnly bool `flag:"-u,--unique" help:"only print unique lines"`
}

func uniq(_ context.Context, inv *Invocation, opts *uniqOptions) Result {
	content, err := inv.Input(inv.Args)
	if err != nil {
		return Fail(fmt.Errorf("uniq: %w", err))
	}
	var out []string
	emit := func(line string, n int) {
		switch {
		case opts.Repeated && n < 2, opts.UniqueOnly && n > 1:
			return
		case opts.Count:
			out = append(out, fmt.Sprintf("%7d %s", n, line))
		default:
			out = append(out, line)
		}
	}
	lines := splitLines(content)
	for i := 0; i < len(lines); {
		j := i + 1
		for j < len(lines) && lines[j] == lines[i] {
			j++
		}
		emit(lines[i], j-i)
		i = j
	}
	return OK(joinLines(out))
}

type grepOptions struct {
	IgnoreCase bool `flag:"-i,--ignore-case" help:"ignore case distinctions"`
	Invert     bool `flag:"-v,--invert-match" help:"select non-matching lines"`
	LineNumber bool `flag:"-n,--line-number" help:"prefix each line with its line number"`
	Count      bool `flag:"-c,--count" help:"print only a count of matching lines"`
	Recursive  bool `flag:"-R,--recursive,-r" help:"search directories recursively"`
}

func grep(ctx context.Context, inv *Invocation, opts *grepOptions) Result {
	if len(inv.Args) == 0 {
		return Failf("grep: missing pattern")
	}
	pattern := inv.Args[0]
	if opts.IgnoreCase {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Failf("grep: invalid regular expression '%s': %v", inv.Args[0], err)
	}
	files := inv.Args[1:]

	labeled := func(label string) bool {
		return label != "" && (len(files) > 1 || opts.Recursive)
	}
	var out []string
	search := func(content, label string) {
		matched := 0
		for i, line := range splitLines(content) {
			if re.MatchString(line) == opts.Invert {
				continue
			}
			matched++
			if opts.Count {
				continue
			}
			prefix := ""
			if labeled(label) {
				prefix = label + ":"
			}
			if opts.LineNumber {
				prefix += strconv.Itoa(i+1) + ":"
			}
			line = prefix + line
			out = append(out, line)
		}
		if opts.Count {
			if labeled(label) {
				out = append(out, label+":"+strconv.Itoa(matched))
			} else {
				out = append(out, strconv.Itoa(matched))
			}
		}
	}

	if len(files) == 0 {
		search(inv.Stdin, "")
		return OK(joinLines(out))
	}
	var failed error
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return Fail(err)
		}
		if opts.Recursive {
			err = grepTree(inv, inv.Resolve(f), search)
		} else {
			var content string
			if content, err = inv.Input([]string{f}); err == nil {
				search(content, f)
			}
		}
		if err != nil {
			failed = fmt.Errorf("grep: %w", describeErr(f, err))
		}
	}
	return Result{Output: joinLines(out), Err: failed}
}

func grepTree(inv *Invocation, p string, search func(content, label string)) error {
	info, err := inv.FS.GetNode(p, inv.Cred())
	if err != nil {
		return err
	}
	if !info.IsDir() {
		content, err := inv.FS.ReadFile(p, inv.Cred())
		if err != nil {
			return err
		}
		search(content, p)
		return nil
	}
	entries, err := inv.FS.ReadDir(p, inv.Cred())
	if err != nil {
		return err
	}
	var first error
	for _, e := range entries {
		if err := grepTree(inv, e.Path, search); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type noOptions struct{}

func rev(_ context.Context, inv *Invocation, _ *noOptions) Result {
	content, err := inv.Input(inv.Args)
	if err != nil {
		return Fail(fmt.Errorf("rev: %w", err))
	}
	lines := splitLines(content)
	for i, line := range lines {
		r := []rune(line)
		slices.Reverse(r)
		lines[i] = string(r)
	}
	return OK(joinLines(lines))
}
