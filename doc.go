// Package dataexplorer is the backend of a small data exploration dashboard.
//
// Files (CSV, TSV, JSON, PDF, Excel and Parquet, optionally compressed) are
// parsed into a uniform table, stored in an embedded SQL engine under a
// sanitized name and served back through ad-hoc SQL, paginated reads,
// exports and natural-language summaries.
//
// The packages are layered leaf first:
//
//   - domain/model: tables, column normalization, name sanitization and the typed error taxonomy
//   - ingest: format detection and parsing
//   - store: the table store over SQLite, with a DuckDB dialect in store/duckdb
//   - summary: template and LLM backed summaries
//   - explorer: the façade consumed by the HTTP boundary in internal/api
//
// This package loads files into a store ahead of serving and dumps stored
// tables back to disk.
//
// # Basic Usage
//
//	st, err := store.OpenSQLite(ctx, "")
//	if err != nil {
//		return err
//	}
//	defer st.Close()
//
//	results, err := dataexplorer.NewLoader().AddPath("testdata").Load(ctx, st)
//	if err != nil {
//		return err
//	}
//
//	res, err := st.Execute(ctx, "SELECT * FROM users WHERE age > 25")
//
// # Table Naming
//
// Table names are derived from file names without extensions and then
// sanitized: "Sales 2024.csv.gz" becomes table "sales_2024".
package dataexplorer
