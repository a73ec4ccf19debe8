package output

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// Table is pre-built tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
}

// AddRow appends one row.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Render writes the table aligned with two-space gutters.
func (t *Table) Render(w io.Writer, noHeaders bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !noHeaders && len(t.Headers) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// TableFormatter renders slices of structs as columns and single structs
// as FIELD/VALUE rows.
type TableFormatter struct {
	Wide      bool
	NoHeaders bool
}

// Format implements Formatter.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	switch t := data.(type) {
	case nil:
		return nil
	case *Table:
		return t.Render(w, f.NoHeaders)
	case Table:
		return t.Render(w, f.NoHeaders)
	}

	v := reflect.Indirect(reflect.ValueOf(data))
	var t *Table
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		t = f.fromSlice(v)
	case reflect.Struct:
		t = f.fromStruct(v)
	case reflect.Map:
		t = fromMap(v)
	default:
		_, err := fmt.Fprintln(w, cell(v))
		return err
	}
	return t.Render(w, f.NoHeaders)
}

type column struct {
	header string
	index  []int
}

// columns lists the visible fields of a struct type, flattening
// embedded structs.
func (f *TableFormatter) columns(t reflect.Type) []column {
	var cols []column
	for _, field := range reflect.VisibleFields(t) {
		if !field.IsExported() || field.Anonymous {
			continue
		}
		tag := field.Tag.Get("table")
		if tag == "-" || (tag == "wide" && !f.Wide) {
			continue
		}
		cols = append(cols, column{header: strings.ToUpper(fieldName(field)), index: field.Index})
	}
	return cols
}

func (f *TableFormatter) fromSlice(v reflect.Value) *Table {
	elem := v.Type().Elem()
	for elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	if elem.Kind() != reflect.Struct {
		t := &Table{Headers: []string{"VALUE"}}
		for i := 0; i < v.Len(); i++ {
			t.AddRow(cell(v.Index(i)))
		}
		return t
	}

	cols := f.columns(elem)
	t := &Table{}
	for _, c := range cols {
		t.Headers = append(t.Headers, c.header)
	}
	for i := 0; i < v.Len(); i++ {
		row := reflect.Indirect(v.Index(i))
		if !row.IsValid() {
			continue
		}
		cells := make([]string, len(cols))
		for j, c := range cols {
			cells[j] = cell(row.FieldByIndex(c.index))
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}

func (f *TableFormatter) fromStruct(v reflect.Value) *Table {
	t := &Table{Headers: []string{"FIELD", "VALUE"}}
	for _, c := range f.columns(v.Type()) {
		t.AddRow(strings.ToLower(c.header), cell(v.FieldByIndex(c.index)))
	}
	return t
}

func fromMap(v reflect.Value) *Table {
	t := &Table{Headers: []string{"KEY", "VALUE"}}
	iter := v.MapRange()
	for iter.Next() {
		t.AddRow(cell(iter.Key()), cell(iter.Value()))
	}
	sort.Slice(t.Rows, func(i, j int) bool { return t.Rows[i][0] < t.Rows[j][0] })
	return t
}

// fieldName prefers the json tag name.
func fieldName(f reflect.StructField) string {
	if tag := f.Tag.Get("json"); tag != "" {
		if name, _, _ := strings.Cut(tag, ","); name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

// cell renders one value; empty values show as "-".
func cell(v reflect.Value) string {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr) {
		if v.IsNil() {
			return "-"
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return "-"
	}
	if v.Type() == timeType {
		ts := v.Interface().(time.Time)
		if ts.IsZero() {
			return "-"
		}
		return ts.Local().Format("2006-01-02 15:04:05")
	}
	if d, ok := v.Interface().(time.Duration); ok {
		return d.String()
	}

	switch v.Kind() {
	case reflect.String:
		if v.Len() == 0 {
			return "-"
		}
		return v.String()
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "-"
		}
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = cell(v.Index(i))
		}
		return strings.Join(parts, ",")
	case reflect.Map:
		return fmt.Sprintf("{%d keys}", v.Len())
	default:
		return fmt.Sprint(v.Interface())
	}
}
