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
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// DistanceFunction selects the metric used to order vector rows by closeness
// to the query embedding.
type DistanceFunction string

const (
	DistanceSquaredEuclidean   DistanceFunction = "squared_euclidean"
	DistanceNegativeDotProduct DistanceFunction = "negative_dot_product"
	DistanceCosine             DistanceFunction = "cosine"
)

// DefaultK is the result limit used when SearchKwargs.K is unset.
const DefaultK = 5

// ColumnSchema describes a single column of a metadata table. Values maps raw
// stored values to human-readable labels for enumeration-style columns.
type ColumnSchema struct {
	Name        string            `mapstructure:"name" json:"name"`
	Type        string            `mapstructure:"type" json:"type"`
	Description string            `mapstructure:"description" json:"description"`
	Values      map[string]string `mapstructure:"values" json:"values,omitempty"`
}

// MetadataSchema describes one relational table available for SQL synthesis.
type MetadataSchema struct {
	Table       string         `mapstructure:"table" json:"table"`
	Description string         `mapstructure:"description" json:"description"`
	Columns     []ColumnSchema `mapstructure:"columns" json:"columns"`
}

// LLMExample is one few-shot input/output pair embedded in the SQL prompt.
type LLMExample struct {
	Input  string `mapstructure:"input" json:"input"`
	Output string `mapstructure:"output" json:"output"`
}

// SearchKwargs holds retrieval parameters.
type SearchKwargs struct {
	K int `mapstructure:"k" json:"k"`
}

// Limit returns the effective result limit.
func (s SearchKwargs) Limit() int {
	if s.K <= 0 {
		return DefaultK
	}
	return s.K
}

// Validate checks the distance function is one of the supported metrics.
func (d DistanceFunction) Validate() error {
	switch d {
	case DistanceSquaredEuclidean, DistanceNegativeDotProduct, DistanceCosine:
		return nil
	case "":
		return fmt.Errorf("distance function is empty")
	default:
		return fmt.Errorf("unsupported distance function: %s", d)
	}
}

// HasTable reports whether tableName appears among the schemas.
func HasTable(schemas []MetadataSchema, tableName string) bool {
	for _, s := range schemas {
		if s.Table == tableName {
			return true
		}
	}
	return false
}

// RenderContext produces the textual schema description embedded into the
// SQL-synthesis prompt.
func RenderContext(schemas []MetadataSchema) string {
	var b strings.Builder
	for i, s := range schemas {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("Table: %s\n", s.Table))
		if s.Description != "" {
			b.WriteString(fmt.Sprintf("Description: %s\n", s.Description))
		}
		b.WriteString("Columns:\n")
		for _, c := range s.Columns {
			b.WriteString(fmt.Sprintf("  - %s (%s): %s", c.Name, c.Type, c.Description))
			if len(c.Values) > 0 {
				b.WriteString(fmt.Sprintf(". Values: %s", renderValues(c.Values)))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderValues(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s = %s", k, values[k])
	}
	return strings.Join(parts, ", ")
}

// RenderExamples formats few-shot examples for inclusion in the SQL prompt.
func RenderExamples(examples []LLMExample) string {
	if len(examples) == 0 {
		return "(no examples provided)"
	}
	var b strings.Builder
	for i, ex := range examples {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("Input: %s\nOutput: %s\n", ex.Input, strings.TrimSpace(ex.Output)))
	}
	return b.String()
}
