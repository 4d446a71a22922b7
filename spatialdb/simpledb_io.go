package spatialdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"
)

// SimpleDBYAML represents the YAML file structure of a SimpleDB
type SimpleDBYAML struct {
	Label       string          `yaml:"label,omitempty"`
	Names       []string        `yaml:"names"`
	MaxDistance float64         `yaml:"max_distance,omitempty"`
	Points      []PointDataYAML `yaml:"points"`
}

// PointDataYAML is one stored position and its values, in Names order
type PointDataYAML struct {
	X      []float64 `yaml:"x"`
	Values []float64 `yaml:"values"`
}

var coordinateColumns = []string{"x", "y", "z"}

// Open reads a SimpleDB, the format is chosen by file extension
func Open(ctx context.Context, filename string) (db *SimpleDB, err error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml", ".spatialdb":
		return LoadYAML(filename)
	case ".sqlite", ".sqlite3", ".db":
		return LoadSQLite(ctx, filename)
	default:
		return nil, fmt.Errorf("unsupported database format: %s", filename)
	}
}

func LoadYAML(filename string) (db *SimpleDB, err error) {
	var data []byte
	if data, err = os.ReadFile(filename); err != nil {
		return nil, fmt.Errorf("failed to read database file: %w", err)
	}
	var dy SimpleDBYAML
	if err = yaml.Unmarshal(data, &dy); err != nil {
		return nil, fmt.Errorf("failed to parse database %s: %w", filename, err)
	}
	if len(dy.Label) == 0 {
		dy.Label = labelFromFile(filename)
	}
	var (
		points = make([][]float64, len(dy.Points))
		values = make([][]float64, len(dy.Points))
	)
	for i, p := range dy.Points {
		points[i], values[i] = p.X, p.Values
	}
	if db, err = NewSimpleDB(dy.Label, dy.Names, points, values); err != nil {
		return
	}
	db.MaxDistance = dy.MaxDistance
	return
}

func (db *SimpleDB) SaveYAML(filename string) (err error) {
	dy := SimpleDBYAML{
		Label:       db.label,
		Names:       db.Names,
		MaxDistance: db.MaxDistance,
		Points:      make([]PointDataYAML, len(db.Points)),
	}
	for i := range db.Points {
		dy.Points[i] = PointDataYAML{X: db.Points[i], Values: db.Values[i]}
	}
	var data []byte
	if data, err = yaml.Marshal(&dy); err != nil {
		return fmt.Errorf("failed to encode database %s: %w", db.label, err)
	}
	return os.WriteFile(filename, data, 0644)
}

/*
LoadSQLite reads a SimpleDB from the table points of a SQLite file. The
leading columns x, y and z that are present give the position, every other
column is a value named by the column name.
*/
func LoadSQLite(ctx context.Context, filename string) (db *SimpleDB, err error) {
	if _, err = os.Stat(filename); err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	var sqlDB *sql.DB
	if sqlDB, err = sql.Open("sqlite", filename); err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer sqlDB.Close()

	rows, err := sqlDB.QueryContext(ctx, `SELECT * FROM points`)
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	var dim int
	for dim < len(cols) && dim < len(coordinateColumns) &&
		strings.EqualFold(cols[dim], coordinateColumns[dim]) {
		dim++
	}
	if dim == 0 {
		return nil, fmt.Errorf("table points of %s has no x column", filename)
	}
	var (
		names          = cols[dim:]
		points, values [][]float64
	)
	for rows.Next() {
		var (
			row  = make([]float64, len(cols))
			dest = make([]any, len(cols))
		)
		for i := range row {
			dest[i] = &row[i]
		}
		if err = rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}
		points = append(points, row[:dim:dim])
		values = append(values, row[dim:])
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read points: %w", err)
	}
	return NewSimpleDB(labelFromFile(filename), names, points, values)
}

// SaveSQLite writes the database in the layout read by LoadSQLite, replacing
// any existing points table
func (db *SimpleDB) SaveSQLite(ctx context.Context, filename string) (err error) {
	var sqlDB *sql.DB
	if sqlDB, err = sql.Open("sqlite", filename); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer sqlDB.Close()

	cols := make([]string, 0, db.dim+len(db.Names))
	for _, c := range coordinateColumns[:db.dim] {
		cols = append(cols, quoteIdent(c)+" REAL NOT NULL")
	}
	for _, name := range db.Names {
		cols = append(cols, quoteIdent(name)+" REAL NOT NULL")
	}
	if _, err = sqlDB.ExecContext(ctx, `DROP TABLE IF EXISTS points`); err != nil {
		return fmt.Errorf("failed to drop points table: %w", err)
	}
	schema := fmt.Sprintf(`CREATE TABLE points (%s)`, strings.Join(cols, ", "))
	if _, err = sqlDB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create points table: %w", err)
	}

	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	marks := strings.TrimSuffix(strings.Repeat("?, ", db.dim+len(db.Names)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO points VALUES (%s)`, marks))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, db.dim+len(db.Names))
	for i := range db.Points {
		for j, v := range db.Points[i] {
			args[j] = v
		}
		for j, v := range db.Values[i] {
			args[db.dim+j] = v
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert point %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func labelFromFile(filename string) string {
	return strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
}
