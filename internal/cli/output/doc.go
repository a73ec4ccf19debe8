// Package output renders eventlink-cli results as table, json or yaml.
//
// Tables are built from []struct values using the json tag as the column
// name; fields tagged table:"wide" only show with --wide and table:"-"
// never shows. Single structs render as FIELD/VALUE pairs.
package output
