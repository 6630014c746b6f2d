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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/config"
	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/introspect"
	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/utils"
)

var (
	inspectTablesFlag string
	inspectOutputFile string
)

var inspectSchemaCmd = &cobra.Command{
	Use:     "inspect-schema",
	Short:   "Generate metadata schemas from a live database",
	Long:    `Inspects the database catalog and emits MetadataSchema JSON usable as the schemas section of the retriever config. Comments become descriptions; low-cardinality text columns contribute their value sets.`,
	Example: `./sql_retriever inspect-schema --dialect postgres --host localhost --port 5432 --username user --password pass --database mydb --tables "source_documents[Id,plant_name,document_type]" --out_file ./mydb_schemas.json`,
	RunE:    runInspectSchema,
}

func runInspectSchema(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	tableFilters, err := utils.ParseTablesFlag(inspectTablesFlag)
	if err != nil {
		return fmt.Errorf("invalid --tables flag: %w", err)
	}

	db, err := setupDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	generator := introspect.NewGenerator(db, logger)
	generator.TableFilters = tableFilters

	schemas, err := generator.Generate(ctx)
	if err != nil {
		return fmt.Errorf("failed to generate schemas: %w", err)
	}

	data, err := json.MarshalIndent(schemas, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schemas: %w", err)
	}
	data = append(data, '\n')

	outputFile := inspectOutputFile
	if outputFile == "" {
		outputFile = utils.GetDefaultOutputFilePath(config.GetConfig().Database.DBName, "inspect-schema")
	}
	if err := os.WriteFile(outputFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write schemas to file: %w", err)
	}
	fmt.Printf("Schemas written to: %s\n", outputFile)

	logger.Info("Inspect schema operation completed", zap.Int("tables", len(schemas)))
	return nil
}

func init() {
	inspectSchemaCmd.Flags().StringVar(&inspectTablesFlag, "tables", "", `Tables to inspect, e.g. "docs,orders[id,status]" (default: all tables)`)
	inspectSchemaCmd.Flags().StringVarP(&inspectOutputFile, "out_file", "o", "", "File path to save schemas to (optional, defaults to <database>_schemas.json)")
}
