package cmds

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	goparquet "github.com/fraugster/parquet-go"
	"github.com/fraugster/parquet-go/parquetschema"

	"github.com/fraugster/csv2parquet/internal/container"
)

// catFile prints the first n rows of the file, or all rows if n is -1.
func catFile(w io.Writer, address string, n int64) error {
	fl, reader, err := openParquet(address)
	if err != nil {
		return err
	}
	defer fl.Close()

	columnOrder := getColumnOrder(reader.GetSchemaDefinition())

	for i := int64(0); (n == -1) || i < n; i++ {
		data, err := reader.NextRow()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading row %d failed: %w", i+1, err)
		}

		printData(w, data, "", columnOrder)
		_, _ = fmt.Fprintln(w)
	}

	return nil
}

func getColumnOrder(schemaDef *parquetschema.SchemaDefinition) map[string]int {
	cols := getColumnList(schemaDef.RootColumn.Children, "")

	colOrder := map[string]int{}

	for idx, colName := range cols {
		colOrder[colName] = idx
	}

	return colOrder
}

func getColumnList(colDefs []*parquetschema.ColumnDefinition, prefix string) []string {
	cols := []string{}
	for _, col := range colDefs {
		cols = append(cols, prefix+col.SchemaElement.Name)
		if col.Children != nil {
			cols = append(cols, getColumnList(col.Children, col.SchemaElement.Name+".")...)
		}
	}
	return cols
}

func printData(w io.Writer, m map[string]interface{}, ident string, columnOrder map[string]int) {
	cols := make([]string, 0, len(m))
	for colName := range m {
		cols = append(cols, colName)
	}

	sort.Slice(cols, func(i, j int) bool {
		return columnOrder[ident+cols[i]] < columnOrder[ident+cols[j]]
	})

	for _, colName := range cols {
		switch t := m[colName].(type) {
		case map[string]interface{}:
			_, _ = fmt.Fprintln(w, ident+colName+":")
			printData(w, t, ident+".", columnOrder)
		case []byte:
			_, _ = fmt.Fprintln(w, ident+colName+" = "+string(t))
		case [][]byte:
			for j := range t {
				_, _ = fmt.Fprintln(w, ident+colName+" = "+string(t[j]))
			}
		default:
			_, _ = fmt.Fprintln(w, ident+colName+" = "+fmt.Sprint(t))
		}
	}
}

// metaFile prints the file level metadata followed by the flat schema.
func metaFile(w io.Writer, address string) error {
	contents, err := container.ReadFile(address)
	if err != nil {
		return err
	}
	fingerprint, size, err := container.Fingerprint(address)
	if err != nil {
		return err
	}

	fl, reader, err := openParquet(address)
	if err != nil {
		return err
	}
	defer fl.Close()

	writer := tabwriter.NewWriter(w, 8, 8, 0, '\t', 0)
	_, _ = fmt.Fprintf(writer, "created by:\t%s\n", contents.CreatedBy)
	_, _ = fmt.Fprintf(writer, "rows:\t%d\n", contents.Rows)
	_, _ = fmt.Fprintf(writer, "row groups:\t%d\n", contents.RowGroups)
	_, _ = fmt.Fprintf(writer, "size:\t%s\n", humanize.Bytes(uint64(size)))
	_, _ = fmt.Fprintf(writer, "xxh3:\t%s\n", fingerprint)
	_, _ = fmt.Fprintln(writer)
	printFlatSchema(writer, reader.Columns(), 0)
	return writer.Flush()
}

func printFlatSchema(w io.Writer, cols []*goparquet.Column, lvl int) {
	dot := strings.Repeat(".", lvl)
	for _, column := range cols {
		_, _ = fmt.Fprintf(w, "%s%s:\t\t", dot, column.Name())
		_, _ = fmt.Fprintf(w, "%s ", column.RepetitionType().String())
		if column.DataColumn() {
			_, _ = fmt.Fprintf(w, "%s R:%d D:%d\n", column.Type().String(), column.MaxRepetitionLevel(), column.MaxDefinitionLevel())
			continue
		}
		_, _ = fmt.Fprintf(w, "F:%d\n", column.ChildrenCount())
		printFlatSchema(w, column.Children(), lvl+1)
	}
}
