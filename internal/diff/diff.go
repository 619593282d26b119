// Package diff строит посимвольный diff двух строк через sergi/go-diff
// (порт diff-match-patch) с семантической очисткой, которая сливает мелкие
// фрагменты с соседями.
package diff

import (
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Kind - тип операции diff.
type Kind int

const (
	Equal Kind = iota
	Insert
	Delete
)

func (k Kind) String() string {
	switch k {
	case Equal:
		return "equal"
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// Op - один фрагмент diff.
type Op struct {
	Kind Kind
	Text string
}

type Engine struct {
	dmp *diffmatchpatch.DiffMatchPatch
}

// NewEngine отключает таймаут diff, поэтому одна и та же пара строк всегда
// даёт одни и те же ops.
func NewEngine() *Engine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return &Engine{dmp: dmp}
}

// DefaultEngine используется функцией Compute.
var DefaultEngine = NewEngine()

// Compute сравнивает from и to посимвольно (по рунам). Если хотя бы одна
// строка не является корректным UTF-8, посимвольный diff потерял бы байты,
// поэтому результат - целиком удаление from и вставка to. Source(ops) == from
// и Target(ops) == to выполняются для любых входов.
func (e *Engine) Compute(from, to string) []Op {
	if !utf8.ValidString(from) || !utf8.ValidString(to) {
		return wholeReplace(from, to)
	}

	diffs := e.dmp.DiffMain(from, to, false)
	diffs = e.dmp.DiffCleanupSemantic(diffs)

	ops := make([]Op, 0, len(diffs))
	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		ops = append(ops, Op{Kind: kindOf(d.Type), Text: d.Text})
	}
	return ops
}

func wholeReplace(from, to string) []Op {
	if from == to {
		return []Op{{Kind: Equal, Text: from}}
	}
	ops := make([]Op, 0, 2)
	if from != "" {
		ops = append(ops, Op{Kind: Delete, Text: from})
	}
	if to != "" {
		ops = append(ops, Op{Kind: Insert, Text: to})
	}
	return ops
}

// Compute вызывает DefaultEngine.Compute.
func Compute(from, to string) []Op {
	return DefaultEngine.Compute(from, to)
}

func kindOf(t diffmatchpatch.Operation) Kind {
	switch t {
	case diffmatchpatch.DiffInsert:
		return Insert
	case diffmatchpatch.DiffDelete:
		return Delete
	default:
		return Equal
	}
}

// Source собирает исходную строку: Equal и Delete по порядку.
func Source(ops []Op) string {
	return join(ops, Delete)
}

// Target собирает итоговую строку: Equal и Insert по порядку.
func Target(ops []Op) string {
	return join(ops, Insert)
}

func join(ops []Op, side Kind) string {
	var b strings.Builder
	for _, op := range ops {
		if op.Kind == Equal || op.Kind == side {
			b.WriteString(op.Text)
		}
	}
	return b.String()
}

// Stats - число символов на каждой стороне diff.
type Stats struct {
	Equal    int
	Inserted int
	Deleted  int
}

func Count(ops []Op) Stats {
	var s Stats
	for _, op := range ops {
		n := len([]rune(op.Text))
		switch op.Kind {
		case Equal:
			s.Equal += n
		case Insert:
			s.Inserted += n
		case Delete:
			s.Deleted += n
		}
	}
	return s
}
