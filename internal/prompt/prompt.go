/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package prompt

import (
	"fmt"
	"strings"
)

// EmbeddingsPlaceholder is the token the generated SQL must carry where the
// query vector literal gets substituted before execution.
const EmbeddingsPlaceholder = "{embeddings}"

// DefaultSQLPromptTemplate steers the model to produce a single SQL statement
// joining the metadata tables with the embeddings table, ordered by vector
// distance. The {embeddings} token in the instructions is a literal output
// requirement, not a render-time placeholder.
const DefaultSQLPromptTemplate = `You are a SQL expert. Generate a single SQL SELECT statement that retrieves the most relevant document chunks for the user question.

The database contains the following metadata tables:

{schemas}

Document chunks live in the embeddings table "{embeddings_table}" with columns (id, content, embeddings, metadata). Source documents live in "{source_table}". Join the embeddings table to the source table through (v."metadata"->>'original_row_id')::int = sd."Id" style conditions where applicable.
{context}
Rules:
1. Select the embeddings table columns the caller needs to build documents (content, embeddings, metadata).
2. Apply WHERE filters derived from the question using the metadata tables above.
3. Order results by vector similarity: end the query with ORDER BY {distance_expression} LIMIT {k};
4. Keep the literal token {embeddings} in place of the query vector. Do not invent a vector.
5. Output only SQL, no explanation.

Examples:
{examples}

Input: {question}
Output:`

// DefaultRewritePromptTemplate condenses a conversational question into a
// focused search phrase before SQL synthesis.
const DefaultRewritePromptTemplate = `Rewrite the user question as a concise, self-contained search query for document retrieval. Preserve every entity, name and constraint mentioned. Output only the rewritten query.

Question: {question}
Rewritten query:`

// DefaultQueryCheckerTemplate asks the model to review a candidate query and
// return a corrected version.
const DefaultQueryCheckerTemplate = `Double check the SQL query below for common mistakes: quoting of identifiers, join conditions against the schemas provided, missing or misplaced LIMIT, and the presence of the literal {embeddings} token in the ORDER BY clause.

{schemas}

Query:
{sql}

If the query is correct, reproduce it unchanged. Output only the final SQL, no explanation.`

// Render substitutes {name} tokens in the template with the supplied values.
// Tokens without a matching value are left untouched.
func Render(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// RequirePlaceholders verifies a custom template carries every placeholder
// the pipeline will substitute.
func RequirePlaceholders(template string, names ...string) error {
	var missing []string
	for _, name := range names {
		if !strings.Contains(template, "{"+name+"}") {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("template is missing placeholder(s): %s", strings.Join(missing, ", "))
	}
	return nil
}
