// Package report runs the canned analytics query sets against the store.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/semlayer/semlayer/internal/db"
	"github.com/semlayer/semlayer/internal/tui"
)

// Outcome is the result of one query in a set.
type Outcome struct {
	Query    Query
	Result   *db.Result
	Err      error
	Duration time.Duration
}

// Run executes every query in set. A failing query is recorded and the run
// continues with the next one.
func Run(ctx context.Context, q db.Querier, set Set, log *zap.Logger) []Outcome {
	if log == nil {
		log = zap.NewNop()
	}
	outcomes := make([]Outcome, 0, len(set.Queries))
	for _, query := range set.Queries {
		if ctx.Err() != nil {
			outcomes = append(outcomes, Outcome{Query: query, Err: ctx.Err()})
			continue
		}
		start := time.Now()
		res, err := db.ExecuteQuery(ctx, q, query.SQL)
		o := Outcome{Query: query, Result: res, Err: err, Duration: time.Since(start)}
		if err != nil {
			log.Warn("report query failed", zap.String("set", set.Name), zap.String("query", query.Title), zap.Error(err))
		} else {
			log.Debug("report query", zap.String("query", query.Title), zap.Int("rows", len(res.Rows)), zap.Duration("took", o.Duration))
		}
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// Failed counts the outcomes that returned an error.
func Failed(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Render writes the outcomes of set to w as numbered sections.
func Render(w io.Writer, set Set, outcomes []Outcome) error {
	var b strings.Builder
	b.WriteString(tui.Title(set.Title))
	b.WriteString("\n")

	for i, o := range outcomes {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, o.Query.Title)
		switch {
		case o.Err != nil:
			b.WriteString(tui.Error("Error: " + o.Err.Error()))
			b.WriteString("\n")
			continue
		case len(o.Result.Rows) == 0 && o.Query.Empty != "":
			b.WriteString(o.Query.Empty)
			b.WriteString("\n")
			continue
		}
		b.WriteString(tui.RenderResult(o.Result, 0))
		b.WriteString("\n")
		if o.Query.Unit != "" {
			fmt.Fprintf(&b, "%d %s\n", len(o.Result.Rows), o.Query.Unit)
		}
		if o.Query.Note != "" {
			b.WriteString(tui.Dim(o.Query.Note))
			b.WriteString("\n")
		}
	}

	if len(set.Footer) > 0 {
		b.WriteString("\n")
		for _, line := range set.Footer {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	if failed := Failed(outcomes); failed > 0 {
		fmt.Fprintf(&b, "\n%s\n", tui.Error(fmt.Sprintf("%d of %d queries failed", failed, len(outcomes))))
	}

	_, err := io.WriteString(w, b.String())
	return err
}
