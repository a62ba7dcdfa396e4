package database

import (
	"sort"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/mappichat/rasterh3/src/fileio"
	"github.com/pkg/errors"
	h3 "github.com/uber/h3-go/v3"
	"go.uber.org/zap"
)

// postgres limits the number of bind parameters per statement
const maxInsert int = 65535

// CellRow is one cell of a converted raster.
type CellRow struct {
	Dataset    string  `db:"dataset"`
	H3         string  `db:"h3"`
	Resolution int     `db:"resolution"`
	Value      float64 `db:"value"`
	ValueText  string  `db:"value_text"`
}

const cellColumns = 5

func SqlInitialize(connectString string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", connectString)
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}
	if err = db.Ping(); err != nil {
		return nil, errors.Wrap(err, "ping")
	}
	return db, nil
}

func CreateTables(db *sqlx.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS cells (
		dataset text,
		h3 text,
		resolution int,
		value double precision,
		value_text text,
		PRIMARY KEY (dataset, h3)
	);`); err != nil {
		return errors.Wrap(err, "create table cells")
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS cells_value ON cells (dataset, value_text);`); err != nil {
		return errors.Wrap(err, "create index cells_value")
	}
	return nil
}

// CellRows flattens a cell map into rows ordered by value and cell.
func CellRows(dataset string, cellMap fileio.CellMap) ([]CellRow, error) {
	values := make([]string, 0, len(cellMap))
	for value := range cellMap {
		values = append(values, value)
	}
	sort.Strings(values)

	rows := []CellRow{}
	for _, text := range values {
		value, err := fileio.ParseValue(text)
		if err != nil {
			return nil, err
		}
		cells := append([]string(nil), cellMap[text]...)
		sort.Strings(cells)
		for _, str := range cells {
			cell := h3.FromString(str)
			if !h3.IsValid(cell) {
				return nil, errors.Errorf("invalid h3 index %q for value %s", str, text)
			}
			rows = append(rows, CellRow{
				Dataset:    dataset,
				H3:         str,
				Resolution: h3.Resolution(cell),
				Value:      value.Float(),
				ValueText:  text,
			})
		}
	}
	return rows, nil
}

// Batches splits rows so no statement exceeds the bind parameter limit.
func Batches(rows []CellRow) [][]CellRow {
	batchSize := maxInsert / cellColumns
	batches := [][]CellRow{}
	for i := 0; i < len(rows); i += batchSize {
		batches = append(batches, rows[i:min(len(rows), i+batchSize)])
	}
	return batches
}

// PopulateCells replaces the rows of dataset.
func PopulateCells(db *sqlx.DB, rows []CellRow, dataset string, log *zap.Logger) error {
	tx, err := db.Beginx()
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cells WHERE dataset = $1`, dataset); err != nil {
		return errors.Wrapf(err, "clear dataset %s", dataset)
	}

	batches := Batches(rows)
	for i, batch := range batches {
		log.Debug("inserting cells", zap.Int("batch", i+1), zap.Int("batches", len(batches)))
		if _, err := tx.NamedExec(
			`INSERT INTO cells (dataset, h3, resolution, value, value_text)
			VALUES (:dataset, :h3, :resolution, :value, :value_text)`,
			batch,
		); err != nil {
			return errors.Wrapf(err, "insert batch %d", i)
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// ValueCells returns the cells stored for a value of dataset.
func ValueCells(db *sqlx.DB, dataset string, value string) ([]string, error) {
	cells := []string{}
	err := db.Select(&cells, `SELECT h3 FROM cells WHERE dataset = $1 AND value_text = $2 ORDER BY h3`, dataset, value)
	return cells, errors.Wrap(err, "select cells")
}
