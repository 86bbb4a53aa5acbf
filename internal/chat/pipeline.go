package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/semlayer/semlayer/internal/db"
	"github.com/semlayer/semlayer/internal/llm"
)

// ErrLLMDisabled is returned by Ask when no model client is configured.
var ErrLLMDisabled = llm.ErrDisabled

const maxSummaryInput = 10000

// Answer is the outcome of one question.
type Answer struct {
	Question string     `json:"question"`
	SQL      string     `json:"sql"`
	Repaired bool       `json:"repaired"`
	Result   *db.Result `json:"result"`
	Summary  string     `json:"summary"`
}

// Pipeline turns questions into read-only SQL, runs it and summarizes
// the rows.
type Pipeline struct {
	client   llm.Client
	q        db.Querier
	rowLimit int
	log      *zap.Logger
}

// NewPipeline creates a new Pipeline. A nil client makes every question
// fail with ErrLLMDisabled.
func NewPipeline(client llm.Client, q db.Querier, rowLimit int, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{client: client, q: q, rowLimit: rowLimit, log: log}
}

// Enabled reports whether a model client is configured.
func (p *Pipeline) Enabled() bool {
	return p.client != nil
}

// Ask answers question. The generated query is retried once with the
// database error when it fails to run.
func (p *Pipeline) Ask(ctx context.Context, question string) (*Answer, error) {
	if p.client == nil {
		return nil, ErrLLMDisabled
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("question is empty")
	}

	ans := &Answer{Question: question}
	query, err := p.GenerateSQL(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to generate SQL: %w", err)
	}
	ans.SQL = query
	p.log.Debug("generated sql", zap.String("question", question), zap.String("sql", query))

	ans.Result, err = p.Run(ctx, query)
	if err != nil {
		if errors.Is(err, db.ErrNotReadOnly) || ctx.Err() != nil {
			return ans, err
		}
		p.log.Debug("query failed, asking for a fix", zap.Error(err))
		fixed, rerr := p.Repair(ctx, question, query, err)
		if rerr != nil {
			return ans, fmt.Errorf("query failed: %w (repair failed: %v)", err, rerr)
		}
		ans.SQL, ans.Repaired = fixed, true
		if ans.Result, err = p.Run(ctx, fixed); err != nil {
			return ans, err
		}
	}

	ans.Summary, err = p.Summarize(ctx, question, ans.SQL, ans.Result)
	if err != nil {
		return ans, fmt.Errorf("failed to summarize results: %w", err)
	}
	return ans, nil
}

// GenerateSQL prompts the model with the schema and question.
func (p *Pipeline) GenerateSQL(ctx context.Context, question string) (string, error) {
	schema, err := p.SchemaContext(ctx)
	if err != nil {
		return "", err
	}
	response, err := p.client.Complete(ctx, BuildSQLPrompt(schema, question))
	if err != nil {
		return "", err
	}
	return cleanSQL(response), nil
}

// Repair asks the model to fix query given the error it produced.
func (p *Pipeline) Repair(ctx context.Context, question, query string, cause error) (string, error) {
	response, err := p.client.Complete(ctx, BuildRepairPrompt(question, query, cause.Error()))
	if err != nil {
		return "", err
	}
	return cleanSQL(response), nil
}

// SchemaContext describes the relations a question may use.
func (p *Pipeline) SchemaContext(ctx context.Context) (string, error) {
	cols, err := db.DescribeSchemas(ctx, p.q, db.UserSchemas...)
	if err != nil {
		return "", err
	}
	if len(cols) == 0 {
		return "", errors.New("no views found; run 'semlayer build' first")
	}
	return FormatSchema(cols), nil
}

// Run checks that query is read-only, caps its rows and executes it.
func (p *Pipeline) Run(ctx context.Context, query string) (*db.Result, error) {
	stmt, err := db.CheckReadOnly(query)
	if err != nil {
		return nil, err
	}
	return db.ExecuteQuery(ctx, p.q, db.LimitQuery(stmt, p.rowLimit))
}

// Summarize generates a summary of query results.
func (p *Pipeline) Summarize(ctx context.Context, question, query string, res *db.Result) (string, error) {
	resultsJSON, err := json.MarshalIndent(res.Maps(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal results: %w", err)
	}

	resultsStr := string(resultsJSON)
	if len(resultsStr) > maxSummaryInput {
		resultsStr = truncate(resultsStr, maxSummaryInput) + "\n... (truncated)"
	}

	return p.client.ChatComplete(ctx, []llm.Message{
		{Role: "system", Content: summarySystemPrompt},
		{Role: "user", Content: BuildSummarizationPrompt(question, query, resultsStr)},
	})
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

var fencedSQL = regexp.MustCompile("```(?:sql|SQL)?\\s*([\\s\\S]*?)```")

func cleanSQL(response string) string {
	if m := fencedSQL.FindStringSubmatch(response); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	sql := strings.TrimSpace(response)
	for _, prefix := range []string{"SQL:", "Query:", "sql:", "query:"} {
		sql = strings.TrimPrefix(sql, prefix)
	}
	return strings.TrimSpace(sql)
}
