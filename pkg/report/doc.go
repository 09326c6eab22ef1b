// Package report writes audit rows to files and terminals.
//
// Every writer implements audit.RowWriter: a sheet starts with AddHeader and
// continues with EmitRow calls. Sheets keep the order of their headers.
//
//   - [XLSXWriter] builds a spreadsheet with one worksheet per sheet
//   - [TableWriter] renders sheets as terminal tables
//   - [JSONWriter] collects sheets as JSON records
//
// [Multi] fans rows out to several writers.
package report
