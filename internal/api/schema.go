package api

import (
	"net/http"
)

type schemaTableResponse struct {
	Name       string   `json:"name"`
	Columns    []string `json:"columns"`
	PrimaryKey []string `json:"primary_key,omitempty"`
}

type schemaResponse struct {
	DDL    string                `json:"ddl"`
	Tables []schemaTableResponse `json:"tables"`
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema provider is not configured", false, nil)
		return
	}

	desc, err := deps.Schema.Extract(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_EXTRACTION_FAILED", "failed to extract the database schema", true, map[string]any{"details": err.Error()})
		return
	}

	tables := make([]schemaTableResponse, 0, len(desc.Tables))
	for _, table := range desc.Tables {
		columns := make([]string, 0, len(table.Columns))
		for _, column := range table.Columns {
			columns = append(columns, column.Name)
		}
		tables = append(tables, schemaTableResponse{
			Name:       table.Name,
			Columns:    columns,
			PrimaryKey: table.PrimaryKey,
		})
	}
	writeJSON(w, http.StatusOK, schemaResponse{DDL: desc.DDL(), Tables: tables})
}
