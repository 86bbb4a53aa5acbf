package chat

import (
	"fmt"
	"strings"

	"github.com/semlayer/semlayer/internal/db"
)

const SQLGenerationPrompt = `You are a SQL expert for DuckDB working on an HR and payroll analytics database.
The database has these relations (schema.relation: column TYPE, ...):

%s

Write a SQL query to answer the following question: %s

Important rules:
1. Return ONLY the SQL query, no explanation or markdown formatting
2. Write a single SELECT (or WITH ... SELECT) statement; never modify data
3. Use DuckDB syntax (similar to PostgreSQL) and always qualify relations with their schema
4. Prefer the business and metrics views; fall back to staging only when needed
5. Common date patterns:
   - This week: col >= DATE_TRUNC('week', CURRENT_DATE)
   - This month: col >= DATE_TRUNC('month', CURRENT_DATE)
   - Last N days: col >= CURRENT_DATE - INTERVAL 30 DAY
6. Limit results to 100 rows unless aggregating`

const RepairPrompt = `The DuckDB query below failed.

Question: %s

Query:
%s

Error:
%s

Return ONLY a corrected single SELECT statement, no explanation or markdown formatting.`

const SummarizationPrompt = `User's original question: %s

Query executed:
%s

Query results (JSON):
%s

Instructions:
1. Answer the question directly in a few sentences or a short list
2. Quote the important numbers exactly as they appear
3. Mention notable patterns such as departments or shifts that stand out
4. If there are no results, say so clearly and suggest why that might be`

const summarySystemPrompt = "You are a helpful HR analytics assistant that explains query results to non-technical users."

func BuildSQLPrompt(schema, question string) string {
	return fmt.Sprintf(SQLGenerationPrompt, schema, question)
}

func BuildRepairPrompt(question, query, errText string) string {
	return fmt.Sprintf(RepairPrompt, question, query, errText)
}

func BuildSummarizationPrompt(question, query, results string) string {
	return fmt.Sprintf(SummarizationPrompt, question, query, results)
}

// FormatSchema renders columns one relation per line.
func FormatSchema(cols []db.ColumnInfo) string {
	var b strings.Builder
	current := ""
	for _, c := range cols {
		rel := c.Schema + "." + c.Relation
		if rel != current {
			if current != "" {
				b.WriteString("\n")
			}
			b.WriteString(rel + ": ")
			current = rel
		} else {
			b.WriteString(", ")
		}
		b.WriteString(c.Name + " " + c.Type)
	}
	return b.String()
}
