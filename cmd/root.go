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
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/config"
	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/database"
	_ "github.com/GoogleCloudPlatform/sql-vector-retriever/internal/database/duckdb"
	_ "github.com/GoogleCloudPlatform/sql-vector-retriever/internal/database/mysql"
	_ "github.com/GoogleCloudPlatform/sql-vector-retriever/internal/database/postgres"
	_ "github.com/GoogleCloudPlatform/sql-vector-retriever/internal/database/sqlserver"
)

var (
	configFile   string
	geminiAPIKey string
	verbose      bool

	// Database connection flags
	dialect                        string
	host                           string
	port                           int
	username                       string
	password                       string
	dbName                         string
	dbPath                         string
	cloudSQLInstanceConnectionName string
	cloudSQLUsePrivateIP           bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sql_retriever",
	Short: "A tool to answer natural-language questions with SQL vector retrieval",
	Long: `sql_retriever is a CLI tool that turns a natural-language question into a
SQL query joining metadata tables with a vector-embeddings table, executes it,
and prints the matching document chunks.`,
	PersistentPreRunE: initFlagsAndConfig,
}

// initFlagsAndConfig loads the config file, then layers environment and any
// explicitly set flags on top.
func initFlagsAndConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	if cmd != nil {
		flags := cmd.Flags()
		if flags.Changed("dialect") {
			cfg.Database.Dialect = dialect
		}
		if flags.Changed("host") {
			cfg.Database.Host = host
		}
		if flags.Changed("port") {
			cfg.Database.Port = port
		}
		if flags.Changed("username") {
			cfg.Database.User = username
		}
		if flags.Changed("password") {
			cfg.Database.Password = password
		}
		if flags.Changed("database") {
			cfg.Database.DBName = dbName
		}
		if flags.Changed("db-path") {
			cfg.Database.Path = dbPath
		}
		if flags.Changed("cloudsql-instance-connection-name") {
			cfg.Database.CloudSQLInstanceConnectionName = cloudSQLInstanceConnectionName
		}
		if flags.Changed("cloudsql-use-private-ip") {
			cfg.Database.UsePrivateIP = cloudSQLUsePrivateIP
		}
	}

	if geminiAPIKey == "" {
		geminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if geminiAPIKey != "" {
		cfg.Gemini.APIKey = geminiAPIKey
	}
	config.SetConfig(cfg)

	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func validateDialect(dialect string) error {
	supportedDialects := []string{"postgres", "cloudsqlpostgres", "duckdb", "mysql", "cloudsqlmysql", "sqlserver", "cloudsqlsqlserver"}
	for _, supportedDialect := range supportedDialects {
		if dialect == supportedDialect {
			return nil
		}
	}
	return fmt.Errorf("unsupported dialect: %s (only %s are supported)", dialect, strings.Join(supportedDialects, ", "))
}

func setupDatabase(ctx context.Context) (*database.DB, error) {
	cfg := config.GetConfig()
	if err := validateDialect(cfg.Database.Dialect); err != nil {
		return nil, err
	}
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", zap.Error(err))
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	defer func() {
		if logger != nil {
			_ = logger.Sync()
		}
	}()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config-file", "", "Path to a YAML config file with schemas, examples and connection settings")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	// Database connection flags
	rootCmd.PersistentFlags().StringVar(&dialect, "dialect", "", fmt.Sprintf("Database dialect (%s)", strings.Join([]string{"postgres", "cloudsqlpostgres", "duckdb", "mysql", "cloudsqlmysql", "sqlserver", "cloudsqlsqlserver"}, ", ")))
	rootCmd.PersistentFlags().StringVar(&host, "host", "", "Database host")
	rootCmd.PersistentFlags().IntVar(&port, "port", 0, "Database port")
	rootCmd.PersistentFlags().StringVar(&username, "username", "", "Database username")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "Database password")
	rootCmd.PersistentFlags().StringVar(&dbName, "database", "", "Database name")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db-path", "", "Database file path (duckdb)")
	rootCmd.PersistentFlags().StringVar(&cloudSQLInstanceConnectionName, "cloudsql-instance-connection-name", "", "Cloud SQL instance connection name (for Cloud SQL dialects)")
	rootCmd.PersistentFlags().BoolVar(&cloudSQLUsePrivateIP, "cloudsql-use-private-ip", false, "Use private IP for Cloud SQL connection (Cloud SQL)")

	// Gemini API Key flag
	rootCmd.PersistentFlags().StringVar(&geminiAPIKey, "gemini-api-key", "", "Gemini API key (can also be set via GEMINI_API_KEY environment variable)")

	// Add subcommands
	rootCmd.AddCommand(retrieveCmd)
	rootCmd.AddCommand(inspectSchemaCmd)
}
