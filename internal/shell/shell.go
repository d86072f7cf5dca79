// Package shell is the interactive collaborator over the engine's public
// API. It parses user lines into engine calls and maps every typed error to
// a one-line message; an engine error never terminates the loop.
package shell

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"tablekv/internal/catalog"
	"tablekv/internal/db"
	errs "tablekv/pkg/errors"
)

const prompt = "tablekv> "

// maxLineBytes bounds a single input line. Values can be large; the default
// scanner token limit of 64KiB would end the loop on a long set command.
const maxLineBytes = 1 << 20

type Shell struct {
	db   *db.DB
	sess *catalog.Session
	in   io.Reader
	out  io.Writer
}

func New(database *db.DB, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		db:   database,
		sess: database.NewSession(),
		in:   in,
		out:  out,
	}
}

// Run reads commands until EOF or "exit".
func (s *Shell) Run() error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineBytes)
	for {
		fmt.Fprint(s.out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		fmt.Fprintln(s.out, s.Execute(line))
	}
}

// Execute runs a single command line and returns the one-line result.
func (s *Shell) Execute(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "create-namespace":
		return s.createNamespace(args)
	case "use-namespace":
		return s.useNamespace(args)
	case "list-namespaces":
		return s.listNamespaces()
	case "create-table":
		return s.createTable(args)
	case "list-tables":
		return s.listTables()
	case "set":
		return s.set(args)
	case "get":
		return s.get(args)
	case "del":
		return s.del(args)
	case "flush":
		return s.flush(args)
	case "compact":
		return s.compact(args)
	case "help":
		return helpText()
	default:
		return fmt.Sprintf("[ERROR] Unknown command '%s'. Type 'help' for usage.", cmd)
	}
}

func (s *Shell) createNamespace(args []string) string {
	if len(args) != 1 {
		return "[ERROR] Usage: create-namespace <namespace>"
	}
	if err := s.db.CreateNamespace(args[0]); err != nil {
		return errLine(err)
	}
	return fmt.Sprintf("[OK] Namespace '%s' created.", args[0])
}

func (s *Shell) useNamespace(args []string) string {
	if len(args) != 1 {
		return "[ERROR] Usage: use-namespace <namespace>"
	}
	if err := s.db.UseNamespace(s.sess, args[0]); err != nil {
		return errLine(err)
	}
	return fmt.Sprintf("[OK] Using namespace: %s", args[0])
}

func (s *Shell) listNamespaces() string {
	names, err := s.db.ListNamespaces()
	if err != nil {
		return errLine(err)
	}
	return joined(names)
}

func (s *Shell) createTable(args []string) string {
	if len(args) != 1 {
		return "[ERROR] Usage: create-table <table>"
	}
	if err := s.db.CreateTable(s.sess, args[0]); err != nil {
		return errLine(err)
	}
	return fmt.Sprintf("[OK] Table '%s' created.", args[0])
}

func (s *Shell) listTables() string {
	names, err := s.db.ListTables(s.sess)
	if err != nil {
		return errLine(err)
	}
	return joined(names)
}

func (s *Shell) set(args []string) string {
	if len(args) < 1 || len(args) > 2 {
		return "[ERROR] Usage: set <table:key:value> [ttlSeconds]"
	}
	tableName, key, value, err := db.SplitKeyValue(args[0])
	if err != nil {
		return errLine(err)
	}

	var ttl time.Duration
	if len(args) == 2 {
		seconds, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || seconds <= 0 {
			return errLine(errs.ErrInvalidTTL)
		}
		ttl = time.Duration(seconds) * time.Second
	}

	if err := s.db.Set(s.sess, tableName, key, value, ttl); err != nil {
		return errLine(err)
	}
	return fmt.Sprintf("[OK] Set '%s' in table '%s'.", key, tableName)
}

func (s *Shell) get(args []string) string {
	if len(args) != 1 {
		return "[ERROR] Usage: get <table:key>"
	}
	tableName, key, err := db.SplitKey(args[0])
	if err != nil {
		return errLine(err)
	}
	value, err := s.db.Get(s.sess, tableName, key)
	if err != nil {
		return errLine(err)
	}
	return value
}

func (s *Shell) del(args []string) string {
	if len(args) != 1 {
		return "[ERROR] Usage: del <table:key>"
	}
	tableName, key, err := db.SplitKey(args[0])
	if err != nil {
		return errLine(err)
	}
	if err := s.db.Delete(s.sess, tableName, key); err != nil {
		return errLine(err)
	}
	return fmt.Sprintf("[OK] Marked key '%s' as deleted in table '%s'.", key, tableName)
}

func (s *Shell) flush(args []string) string {
	if len(args) != 1 {
		return "[ERROR] Usage: flush <table>"
	}
	if err := s.db.Flush(s.sess, args[0]); err != nil {
		return errLine(err)
	}
	return fmt.Sprintf("[OK] Flushed table '%s'.", args[0])
}

func (s *Shell) compact(args []string) string {
	if len(args) != 1 {
		return "[ERROR] Usage: compact <table>"
	}
	if err := s.db.Compact(s.sess, args[0]); err != nil {
		return errLine(err)
	}
	return fmt.Sprintf("[OK] Compacted table '%s'.", args[0])
}

func errLine(err error) string {
	return "[ERROR] " + capitalize(err.Error()) + "."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func joined(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)
	return strings.Join(sorted, "\n")
}

func helpText() string {
	return strings.TrimSpace(`
create-namespace <ns>          create a namespace
use-namespace <ns>             select the working namespace
list-namespaces                list namespaces
create-table <table>           create a table in the current namespace
list-tables                    list tables in the current namespace
set <table:key:value> [ttl]    write a value, optional ttl in seconds
get <table:key>                read a value
del <table:key>                delete a key
flush <table>                  snapshot the memstore to a segment file
compact <table>                merge segment files, dropping dead records
help                           show this help
exit                           leave the shell`)
}
