// Package introspect builds metadata schema descriptions from a live
// database, so retriever deployments do not have to hand-write them.
package introspect

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/database"
	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/schema"
)

// Inspector is the slice of the database layer the generator reads from.
// *database.DB satisfies it.
type Inspector interface {
	ListTables() ([]string, error)
	ListColumns(tableName string) ([]database.ColumnInfo, error)
	GetColumnStats(tableName, columnName string, sampleLimit int) (*database.ColumnStats, error)
	GetColumnComment(ctx context.Context, tableName, columnName string) (string, error)
	GetTableComment(ctx context.Context, tableName string) (string, error)
}

// DefaultEnumThreshold is the distinct-value count at or below which a
// column is treated as an enumeration and its values are embedded in the
// schema.
const DefaultEnumThreshold = 20

// Generator produces MetadataSchema entries for the tables of a database.
type Generator struct {
	db     Inspector
	logger *zap.Logger

	// EnumThreshold caps how many distinct values a column may have before
	// its values are omitted from the schema.
	EnumThreshold int

	// TableFilters restricts generation to the given tables, optionally to
	// specific columns per table. Empty means all tables, all columns.
	TableFilters map[string][]string
}

// NewGenerator creates a schema generator over an open database.
func NewGenerator(db Inspector, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		db:            db,
		logger:        logger,
		EnumThreshold: DefaultEnumThreshold,
	}
}

// Generate inspects every filtered table concurrently and returns schemas
// sorted by table name. Comment metadata becomes descriptions; low-cardinality
// text columns contribute their value sets.
func (g *Generator) Generate(ctx context.Context) ([]schema.MetadataSchema, error) {
	tables, err := g.db.ListTables()
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	filteredTables := filterTables(tables, g.TableFilters)
	if len(filteredTables) == 0 {
		g.logger.Info("No tables match the provided filters")
		return []schema.MetadataSchema{}, nil
	}
	g.logger.Info("Inspecting tables", zap.Int("count", len(filteredTables)))

	var schemas []schema.MetadataSchema
	var wg sync.WaitGroup
	var mu sync.Mutex

	// Errors are drained as they arrive so column goroutines never block on
	// send, however many of them fail.
	errorChannel := make(chan error)
	var allErrors []error
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for err := range errorChannel {
			allErrors = append(allErrors, err)
		}
	}()

	for _, tableName := range filteredTables {
		wg.Add(1)
		go func(table string) {
			defer wg.Done()

			ms := schema.MetadataSchema{Table: table}

			tableComment, err := g.db.GetTableComment(ctx, table)
			if err != nil {
				g.logger.Warn("Failed to get table comment", zap.String("table", table), zap.Error(err))
			} else {
				ms.Description = tableComment
			}

			columnInfos, err := g.db.ListColumns(table)
			if err != nil {
				errorChannel <- fmt.Errorf("table %s: list columns: %w", table, err)
				return
			}
			filteredColumnInfos := filterColumns(table, columnInfos, g.TableFilters)

			columns := make([]schema.ColumnSchema, len(filteredColumnInfos))
			var colWg sync.WaitGroup
			for i, colInfo := range filteredColumnInfos {
				colWg.Add(1)
				go func(idx int, ci database.ColumnInfo) {
					defer colWg.Done()
					col, err := g.inspectColumn(ctx, table, ci)
					if err != nil {
						errorChannel <- fmt.Errorf("column %s.%s: %w", table, ci.Name, err)
						return
					}
					columns[idx] = col
				}(i, colInfo)
			}
			colWg.Wait()

			ms.Columns = columns
			mu.Lock()
			schemas = append(schemas, ms)
			mu.Unlock()
		}(tableName)
	}

	wg.Wait()
	close(errorChannel)
	<-collectorDone

	if len(allErrors) > 0 {
		errorMessages := make([]string, len(allErrors))
		for i, e := range allErrors {
			errorMessages[i] = e.Error()
		}
		return nil, fmt.Errorf("encountered %d error(s) during schema introspection:\n- %s",
			len(allErrors), strings.Join(errorMessages, "\n- "))
	}

	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Table < schemas[j].Table })
	g.logger.Info("Schema introspection complete", zap.Int("tables", len(schemas)))
	return schemas, nil
}

func (g *Generator) inspectColumn(ctx context.Context, table string, ci database.ColumnInfo) (schema.ColumnSchema, error) {
	col := schema.ColumnSchema{
		Name: ci.Name,
		Type: ci.DataType,
	}

	comment, err := g.db.GetColumnComment(ctx, table, ci.Name)
	if err != nil {
		g.logger.Warn("Failed to get column comment",
			zap.String("table", table), zap.String("column", ci.Name), zap.Error(err))
	} else {
		col.Description = comment
	}

	threshold := g.EnumThreshold
	if threshold <= 0 {
		threshold = DefaultEnumThreshold
	}
	stats, err := g.db.GetColumnStats(table, ci.Name, threshold+1)
	if err != nil {
		return schema.ColumnSchema{}, fmt.Errorf("get column stats: %w", err)
	}

	if isEnumCandidate(ci.DataType) && stats.DistinctCount > 0 && stats.DistinctCount <= int64(threshold) {
		values := make(map[string]string, len(stats.DistinctValues))
		for _, v := range stats.DistinctValues {
			// Live data carries no human-readable labels, so the raw value
			// doubles as its own label until someone curates the schema.
			values[v] = v
		}
		col.Values = values
	}
	return col, nil
}

// isEnumCandidate reports whether the declared type can plausibly hold an
// enumeration. Numeric ids and timestamps with few distinct values are not
// enumerations.
func isEnumCandidate(dataType string) bool {
	dt := strings.ToLower(dataType)
	for _, t := range []string{"char", "text", "enum", "string"} {
		if strings.Contains(dt, t) {
			return true
		}
	}
	return false
}

func filterTables(allTables []string, tableFilters map[string][]string) []string {
	if len(tableFilters) == 0 {
		sorted := append([]string(nil), allTables...)
		sort.Strings(sorted)
		return sorted
	}
	allowed := make(map[string]bool, len(tableFilters))
	for table := range tableFilters {
		allowed[table] = true
	}
	filtered := make([]string, 0, len(tableFilters))
	for _, table := range allTables {
		if allowed[table] {
			filtered = append(filtered, table)
		}
	}
	sort.Strings(filtered)
	return filtered
}

func filterColumns(tableName string, allColumns []database.ColumnInfo, tableFilters map[string][]string) []database.ColumnInfo {
	if len(tableFilters) == 0 {
		return allColumns
	}
	specificColumns, tableIncluded := tableFilters[tableName]
	if !tableIncluded || len(specificColumns) == 0 {
		return allColumns
	}
	allowed := make(map[string]bool, len(specificColumns))
	for _, colName := range specificColumns {
		allowed[colName] = true
	}
	filtered := make([]database.ColumnInfo, 0, len(specificColumns))
	for _, colInfo := range allColumns {
		if allowed[colInfo.Name] {
			filtered = append(filtered, colInfo)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Name < filtered[j].Name })
	return filtered
}
