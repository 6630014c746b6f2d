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
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/schema"
)

// Config holds all configuration for the application.
type Config struct {
	Database  DatabaseConfig          `mapstructure:"database"`
	Gemini    GeminiConfig            `mapstructure:"gemini"`
	Retrieval RetrievalConfig         `mapstructure:"retrieval"`
	Schemas   []schema.MetadataSchema `mapstructure:"schemas"`
	Examples  []schema.LLMExample     `mapstructure:"examples"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Dialect                        string `mapstructure:"dialect"`
	Host                           string `mapstructure:"host"`
	Port                           int    `mapstructure:"port"`
	User                           string `mapstructure:"user"`
	Password                       string `mapstructure:"password"`
	DBName                         string `mapstructure:"dbname"`
	SSLMode                        string `mapstructure:"sslmode"`
	Path                           string `mapstructure:"path"` // file-backed stores (duckdb)
	CloudSQLInstanceConnectionName string `mapstructure:"cloudsql_instance_connection_name"`
	UsePrivateIP                   bool   `mapstructure:"use_private_ip"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

// RetrievalConfig holds the retriever pipeline settings.
type RetrievalConfig struct {
	EmbeddingsTable    string `mapstructure:"embeddings_table"`
	SourceTable        string `mapstructure:"source_table"`
	DistanceFunction   string `mapstructure:"distance_function"`
	K                  int    `mapstructure:"k"`
	EnableRewrite      bool   `mapstructure:"enable_rewrite"`
	EnableQueryChecker bool   `mapstructure:"enable_query_checker"`
}

// Default returns the baseline configuration. Values are overridden by the
// config file, environment, then flags in cmd/root.go.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Dialect: "postgres",
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		Gemini: GeminiConfig{
			Model:          "gemini-1.5-flash-latest",
			EmbeddingModel: "text-embedding-004",
		},
		Retrieval: RetrievalConfig{
			DistanceFunction: string(schema.DistanceSquaredEuclidean),
			K:                schema.DefaultK,
		},
	}
}

// Load reads the config file (optional) and environment into a Config.
// Environment variables use the SQL_RETRIEVER_ prefix with underscores, e.g.
// SQL_RETRIEVER_GEMINI_API_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SQL_RETRIEVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

var globalConfig *Config

// GetConfig returns the global configuration, defaulting if unset.
func GetConfig() *Config {
	if globalConfig == nil {
		return Default()
	}
	return globalConfig
}

// SetConfig sets the global configuration.
func SetConfig(cfg *Config) {
	globalConfig = cfg
}
