package optimizer

import "fmt"

const systemInstruction = "You are a Google Cloud BigQuery optimization expert."

const promptTemplate = `
Analyze the user's query and the provided table/view DDLs.

Based on your analysis, provide the following in markdown format:
1.  **Optimization Suggestions:** A list of specific, actionable recommendations to improve performance and reduce cost. Explain the reasoning behind each suggestion. If the query is already optimal, state that and explain why.
2.  **Rewritten Query:** The rewritten, optimized SQL query. If no changes are needed, return the original query.

---
**QUERY:**
` + "```sql\n%s\n```" + `

**DDL:**
` + "```sql\n%s\n```" + `
---
`

// BuildPrompt renders the analysis prompt with the query and DDL embedded
// verbatim in fenced blocks.
func BuildPrompt(query, ddl string) string {
	return fmt.Sprintf(promptTemplate, query, ddl)
}
