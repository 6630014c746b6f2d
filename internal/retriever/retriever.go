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

// Package retriever translates natural-language questions into vector-store
// SQL and maps the results back to documents.
package retriever

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/database"
	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/genai"
	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/prompt"
	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/schema"
)

// VectorStore is the slice of the database layer the retriever consumes.
// *database.DB satisfies it.
type VectorStore interface {
	NativeQuery(ctx context.Context, query string) (*database.ResultSet, error)
	VectorLiteral(vec []float32) (string, error)
	DistanceOperator(fn schema.DistanceFunction) (string, error)
	DistanceExpression(columnExpr, operand string, fn schema.DistanceFunction) (string, error)
}

// Config holds the immutable construction parameters of a SQLRetriever.
type Config struct {
	MetadataSchemas []schema.MetadataSchema
	Examples        []schema.LLMExample

	// Prompt templates. Empty fields fall back to the package defaults.
	RewritePrompt      string
	SQLPrompt          string
	QueryCheckerPrompt string

	EmbeddingsTable  string
	SourceTable      string
	DistanceFunction schema.DistanceFunction
	SearchKwargs     schema.SearchKwargs

	// Optional refinement stages.
	EnableRewrite      bool
	EnableQueryChecker bool

	// AdditionalContext is free text appended to the SQL synthesis prompt,
	// e.g. domain notes loaded from files.
	AdditionalContext string
}

// SQLRetriever composes an LLM, an embeddings model and a vector store into
// a question-to-documents pipeline. All fields are set at construction and
// never mutated, so concurrent Invoke calls need no coordination.
type SQLRetriever struct {
	store  VectorStore
	llm    genai.LLMClient
	embed  genai.EmbeddingsClient
	cfg    Config
	logger *zap.Logger
}

// New validates the configuration and builds a retriever.
func New(store VectorStore, llm genai.LLMClient, embed genai.EmbeddingsClient, cfg Config, logger *zap.Logger) (*SQLRetriever, error) {
	if store == nil {
		return nil, &ErrInvalidConfig{Msg: "vector store is nil"}
	}
	if llm == nil {
		return nil, &ErrInvalidConfig{Msg: "LLM client is nil"}
	}
	if embed == nil {
		return nil, &ErrInvalidConfig{Msg: "embeddings client is nil"}
	}
	if cfg.EmbeddingsTable == "" {
		return nil, &ErrInvalidConfig{Msg: "embeddings table name is empty"}
	}
	if cfg.SourceTable == "" {
		return nil, &ErrInvalidConfig{Msg: "source table name is empty"}
	}
	if len(cfg.MetadataSchemas) == 0 {
		return nil, &ErrInvalidConfig{Msg: "no metadata schemas provided"}
	}
	if !schema.HasTable(cfg.MetadataSchemas, cfg.SourceTable) {
		return nil, &ErrInvalidConfig{Msg: fmt.Sprintf("source table %q is not described by any metadata schema", cfg.SourceTable)}
	}

	if cfg.DistanceFunction == "" {
		cfg.DistanceFunction = schema.DistanceSquaredEuclidean
	}
	if err := cfg.DistanceFunction.Validate(); err != nil {
		return nil, &ErrInvalidConfig{Msg: err.Error()}
	}

	if cfg.SQLPrompt == "" {
		cfg.SQLPrompt = prompt.DefaultSQLPromptTemplate
	} else if err := prompt.RequirePlaceholders(cfg.SQLPrompt, "schemas", "question"); err != nil {
		return nil, &ErrInvalidConfig{Msg: fmt.Sprintf("SQL prompt: %v", err)}
	}
	if cfg.RewritePrompt == "" {
		cfg.RewritePrompt = prompt.DefaultRewritePromptTemplate
	} else if err := prompt.RequirePlaceholders(cfg.RewritePrompt, "question"); err != nil {
		return nil, &ErrInvalidConfig{Msg: fmt.Sprintf("rewrite prompt: %v", err)}
	}
	if cfg.QueryCheckerPrompt == "" {
		cfg.QueryCheckerPrompt = prompt.DefaultQueryCheckerTemplate
	} else if err := prompt.RequirePlaceholders(cfg.QueryCheckerPrompt, "sql"); err != nil {
		return nil, &ErrInvalidConfig{Msg: fmt.Sprintf("query checker prompt: %v", err)}
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &SQLRetriever{
		store:  store,
		llm:    llm,
		embed:  embed,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Invoke runs the full pipeline for one question and returns ranked
// documents, at most SearchKwargs.K of them, in store-result order.
//
// A failure at any stage aborts the call with a typed error naming the
// stage; no partial results are returned.
func (r *SQLRetriever) Invoke(ctx context.Context, question string) ([]Document, error) {
	if strings.TrimSpace(question) == "" {
		return nil, &ErrPromptRender{Msg: "question is empty", Err: fmt.Errorf("nothing to retrieve")}
	}

	searchQuestion := question
	if r.cfg.EnableRewrite {
		rewritten, err := r.rewriteQuestion(ctx, question)
		if err != nil {
			return nil, err
		}
		searchQuestion = rewritten
	}

	sqlText, err := r.synthesizeSQL(ctx, searchQuestion)
	if err != nil {
		return nil, err
	}

	if r.cfg.EnableQueryChecker {
		sqlText, err = r.checkQuery(ctx, sqlText)
		if err != nil {
			return nil, err
		}
	}

	vec, err := r.embed.EmbedQuery(ctx, searchQuestion)
	if err != nil {
		return nil, &ErrEmbedding{Msg: "embeddings generator call failed", Err: err}
	}
	if len(vec) == 0 {
		return nil, &ErrEmbedding{Msg: "embeddings generator returned an empty vector", Err: fmt.Errorf("zero-length embedding")}
	}

	finalSQL, err := r.substituteEmbedding(sqlText, vec)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("Executing retrieval query", zap.Int("embedding_dims", len(vec)), zap.Int("query_length", len(finalSQL)))

	rs, err := r.store.NativeQuery(ctx, finalSQL)
	if err != nil {
		return nil, &ErrQueryExecution{Query: sqlText, Err: err}
	}

	docs, err := documentsFromResultSet(rs)
	if err != nil {
		return nil, err
	}
	if k := r.cfg.SearchKwargs.Limit(); len(docs) > k {
		docs = docs[:k]
	}
	r.logger.Info("Retrieval complete", zap.Int("documents", len(docs)))
	return docs, nil
}

// rewriteQuestion condenses a conversational question into a search phrase.
func (r *SQLRetriever) rewriteQuestion(ctx context.Context, question string) (string, error) {
	p := prompt.Render(r.cfg.RewritePrompt, map[string]string{"question": question})
	out, err := r.llm.GenerateText(ctx, p)
	if err != nil {
		return "", &ErrGeneration{Msg: "question rewrite failed", Err: err}
	}
	rewritten := strings.TrimSpace(out)
	if rewritten == "" {
		// An empty rewrite would erase the question; fall back to the original.
		r.logger.Warn("Rewrite stage produced empty output, keeping original question")
		return question, nil
	}
	r.logger.Debug("Question rewritten", zap.String("rewritten", rewritten))
	return rewritten, nil
}

// synthesizeSQL renders the SQL synthesis prompt, invokes the LLM, and
// normalizes the output into a validated query still carrying the embeddings
// placeholder.
func (r *SQLRetriever) synthesizeSQL(ctx context.Context, question string) (string, error) {
	distExpr, err := r.store.DistanceExpression("v.embeddings", prompt.EmbeddingsPlaceholder, r.cfg.DistanceFunction)
	if err != nil {
		return "", &ErrPromptRender{Msg: "cannot build distance expression", Err: err}
	}

	contextBlock := ""
	if r.cfg.AdditionalContext != "" {
		contextBlock = "\nAdditional context:\n" + r.cfg.AdditionalContext + "\n"
	}

	p := prompt.Render(r.cfg.SQLPrompt, map[string]string{
		"schemas":             schema.RenderContext(r.cfg.MetadataSchemas),
		"examples":            schema.RenderExamples(r.cfg.Examples),
		"embeddings_table":    r.cfg.EmbeddingsTable,
		"source_table":        r.cfg.SourceTable,
		"distance_expression": distExpr,
		"k":                   strconv.Itoa(r.cfg.SearchKwargs.Limit()),
		"question":            question,
		"context":             contextBlock,
	})

	out, err := r.llm.GenerateText(ctx, p)
	if err != nil {
		return "", &ErrGeneration{Msg: "LLM call failed", Err: err}
	}

	sqlText := normalizeSQL(out)
	if sqlText == "" {
		return "", &ErrGeneration{Msg: "LLM returned no SQL"}
	}
	r.logger.Debug("SQL synthesized", zap.String("sql", sqlText))

	sqlText, err = r.repairTail(sqlText)
	if err != nil {
		return "", err
	}
	if err := r.validateCandidate(sqlText); err != nil {
		return "", err
	}
	return sqlText, nil
}

// checkQuery runs the optional query-checker refinement stage. The checker's
// output replaces the candidate only if it still validates.
func (r *SQLRetriever) checkQuery(ctx context.Context, sqlText string) (string, error) {
	p := prompt.Render(r.cfg.QueryCheckerPrompt, map[string]string{
		"schemas": schema.RenderContext(r.cfg.MetadataSchemas),
		"sql":     sqlText,
	})
	out, err := r.llm.GenerateText(ctx, p)
	if err != nil {
		return "", &ErrGeneration{Msg: "query checker call failed", Err: err}
	}

	checked := normalizeSQL(out)
	if checked == "" {
		return "", &ErrGeneration{Msg: "query checker returned no SQL"}
	}
	checked, err = r.repairTail(checked)
	if err != nil {
		return "", err
	}
	if err := r.validateCandidate(checked); err != nil {
		return "", err
	}
	return checked, nil
}

var limitClauseRe = regexp.MustCompile(`(?i)\blimit\s+\d+`)

// repairTail fixes the two truncations models commonly produce: a query that
// stops right after the distance operator, and a missing LIMIT clause.
func (r *SQLRetriever) repairTail(sqlText string) (string, error) {
	if op, err := r.store.DistanceOperator(r.cfg.DistanceFunction); err == nil && op != "" {
		if strings.HasSuffix(strings.TrimSpace(sqlText), op) {
			sqlText = strings.TrimSpace(sqlText) + " '" + prompt.EmbeddingsPlaceholder + "'"
		}
	}
	if !limitClauseRe.MatchString(sqlText) {
		sqlText = fmt.Sprintf("%s LIMIT %d", sqlText, r.cfg.SearchKwargs.Limit())
	}
	return sqlText, nil
}

// validateCandidate enforces the contract on LLM output: a read-only SELECT
// carrying the embeddings placeholder.
func (r *SQLRetriever) validateCandidate(sqlText string) error {
	if !strings.Contains(sqlText, prompt.EmbeddingsPlaceholder) {
		return &ErrGeneration{Msg: fmt.Sprintf("generated SQL is missing the %s placeholder: %s", prompt.EmbeddingsPlaceholder, sqlText)}
	}
	if err := validateReadOnly(sqlText); err != nil {
		return &ErrGeneration{Msg: "generated SQL rejected", Err: err}
	}
	return nil
}

// substituteEmbedding replaces the placeholder token with the store's vector
// literal. The store handler must never see the bare token.
func (r *SQLRetriever) substituteEmbedding(sqlText string, vec []float32) (string, error) {
	lit, err := r.store.VectorLiteral(vec)
	if err != nil {
		return "", &ErrEmbedding{Msg: "cannot render vector literal", Err: err}
	}

	// The quoted form goes first so a '{embeddings}' token does not end up
	// double-quoted when the dialect literal carries its own quoting.
	out := strings.ReplaceAll(sqlText, "'"+prompt.EmbeddingsPlaceholder+"'", lit)
	out = strings.ReplaceAll(out, prompt.EmbeddingsPlaceholder, lit)
	if strings.Contains(out, prompt.EmbeddingsPlaceholder) {
		return "", &ErrGeneration{Msg: "embeddings placeholder survived substitution"}
	}
	return out, nil
}

// normalizeSQL strips markdown fences and trailing punctuation from LLM
// output.
func normalizeSQL(out string) string {
	s := strings.TrimSpace(out)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ";")
	return strings.TrimSpace(s)
}

var forbiddenStatementRe = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|create|alter|truncate|grant|revoke|attach|copy|exec|execute)\b`)

// validateReadOnly rejects anything that is not a plain SELECT (or WITH)
// statement. The generated query runs with the application's credentials, so
// write and DDL statements never reach the store.
func validateReadOnly(sqlText string) error {
	upper := strings.ToUpper(strings.TrimSpace(sqlText))
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return fmt.Errorf("only SELECT statements are allowed")
	}
	if strings.Contains(sqlText, ";") {
		return fmt.Errorf("multiple statements are not allowed")
	}
	if m := forbiddenStatementRe.FindString(sqlText); m != "" {
		return fmt.Errorf("forbidden keyword in generated SQL: %s", strings.ToUpper(m))
	}
	return nil
}
