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
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/config"
	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/genai"
	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/retriever"
	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/schema"
	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/utils"
)

var (
	retrieveK            int
	retrieveRewrite      bool
	retrieveQueryChecker bool
	retrieveContextFiles string
	retrieveJSONOutput   bool
	retrieveOutputFile   string
)

var retrieveCmd = &cobra.Command{
	Use:     "retrieve [question]",
	Short:   "Answer a question with document chunks from the vector store",
	Long:    `Synthesizes a SQL query for the question, runs it against the vector store, and prints the retrieved document chunks.`,
	Example: `./sql_retriever retrieve "What are Beaver Valley plant documents for nuclear fuel waste?" --config-file ./retriever.yaml --dialect postgres --host localhost --port 5432 --username user --password pass --database mydb`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runRetrieve,
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.GetConfig()
	question := strings.Join(args, " ")

	additionalContext, err := utils.ReadContextFiles(retrieveContextFiles)
	if err != nil {
		return err
	}

	db, err := setupDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	llm, err := genai.NewClient(ctx, genai.Config{
		APIKey:         cfg.Gemini.APIKey,
		Model:          cfg.Gemini.Model,
		EmbeddingModel: cfg.Gemini.EmbeddingModel,
	}, logger)
	if err != nil {
		return err
	}
	defer llm.Close()

	retrieverCfg := retriever.Config{
		MetadataSchemas:    cfg.Schemas,
		Examples:           cfg.Examples,
		EmbeddingsTable:    cfg.Retrieval.EmbeddingsTable,
		SourceTable:        cfg.Retrieval.SourceTable,
		DistanceFunction:   schema.DistanceFunction(cfg.Retrieval.DistanceFunction),
		SearchKwargs:       schema.SearchKwargs{K: cfg.Retrieval.K},
		EnableRewrite:      cfg.Retrieval.EnableRewrite || retrieveRewrite,
		EnableQueryChecker: cfg.Retrieval.EnableQueryChecker || retrieveQueryChecker,
		AdditionalContext:  additionalContext,
	}
	if cmd.Flags().Changed("k") {
		retrieverCfg.SearchKwargs.K = retrieveK
	}

	r, err := retriever.New(db, llm, llm, retrieverCfg, logger)
	if err != nil {
		return err
	}

	docs, err := r.Invoke(ctx, question)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	output, err := formatDocuments(docs, retrieveJSONOutput)
	if err != nil {
		return err
	}

	if retrieveOutputFile != "" {
		if err := os.WriteFile(retrieveOutputFile, []byte(output), 0o644); err != nil {
			return fmt.Errorf("failed to write documents to file: %w", err)
		}
		fmt.Printf("Documents written to: %s\n", retrieveOutputFile)
	} else {
		fmt.Print(output)
	}

	logger.Info("Retrieve operation completed", zap.Int("documents", len(docs)))
	return nil
}

func formatDocuments(docs []retriever.Document, asJSON bool) (string, error) {
	if asJSON {
		data, err := json.MarshalIndent(docs, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal documents: %w", err)
		}
		return string(data) + "\n", nil
	}

	if len(docs) == 0 {
		return "No documents found.\n", nil
	}
	var b strings.Builder
	for i, doc := range docs {
		b.WriteString(fmt.Sprintf("--- Document %d ---\n", i+1))
		b.WriteString(strings.TrimSpace(doc.PageContent))
		b.WriteString("\n")
		for k, v := range doc.Metadata {
			b.WriteString(fmt.Sprintf("  %s: %v\n", k, v))
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

func init() {
	retrieveCmd.Flags().IntVar(&retrieveK, "k", schema.DefaultK, "Maximum number of documents to return")
	retrieveCmd.Flags().BoolVar(&retrieveRewrite, "rewrite", false, "Rewrite the question into a search query before SQL synthesis")
	retrieveCmd.Flags().BoolVar(&retrieveQueryChecker, "query-checker", false, "Run the generated SQL through an LLM review stage")
	retrieveCmd.Flags().StringVar(&retrieveContextFiles, "context", "", "Comma-separated files with extra context for SQL synthesis")
	retrieveCmd.Flags().BoolVar(&retrieveJSONOutput, "json", false, "Print documents as JSON")
	retrieveCmd.Flags().StringVarP(&retrieveOutputFile, "out_file", "o", "", "File path to save documents to (optional, prints to stdout by default)")
}
