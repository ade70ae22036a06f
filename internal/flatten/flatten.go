// Package flatten encodes the projection from the published inspection and
// measurement XML schemas onto flat, fixed-column records. This is the schema
// knowledge of the pipeline: one function per sub-structure, composed by
// prefixing field names, so that the same optional-everywhere source shape
// always lands in the same column set.
//
// Design goals:
//
//   - Deterministic: a given element always produces the same fields in the
//     same order; repeated runs are byte-comparable.
//   - Closed column sets: every sub-flattener writes its full field list even
//     when handed an absent node, so batches never vary their columns.
//   - 1:N children (defects, control actions, ADR vehicle types) become
//     sibling records keyed by the owning protocol number; fixed-cardinality
//     groups (measurement outlets) are flattened positionally instead.
//   - Pure: no I/O, no shared state; safe to call from any worker.
package flatten

import (
	"github.com/opendatalabcz/emissions-etl/internal/record"
)

// Namespace URIs of the published open-data schemas.
const (
	NSInspection  = "istp:opendata:schemas:ProhlidkaSeznam:v1"
	NSMeasurement = "istp:opendata:schemas:MereniSeznam:v1"
	NSDataset     = "istp:opendata:schemas:DatovaSada:v1"
)

// Repeated record element names under the dataset wrapper.
const (
	InspectionElement  = "Prohlidka"
	MeasurementElement = "Mereni"
)

// Output table names. Directory names on disk match; column names inside the
// tables keep the Czech schema paths they are projected from.
const (
	TableInspections  = "inspections"
	TableDefects      = "defects"
	TableActions      = "actions"
	TableAdrTypes     = "adr_types"
	TableMeasurements = "measurements"
)

// Canonical column lists, derived once by running each record builder over
// absent input. Builders write every column unconditionally, so the derived
// sets are complete and match every record ever produced.
var (
	inspectionCols  = inspectionRecord(nil, record.Value{}).Columns()
	defectCols      = defectRecord(nil, record.Value{}, "").Columns()
	actionCols      = actionRecord(nil, record.Value{}).Columns()
	adrTypeCols     = adrTypeRecord(nil, record.Value{}).Columns()
	measurementCols = Measurement(nil).Columns()
)

// Columns returns the canonical column list for table, nil for an unknown
// table name. Callers must not modify the returned slice.
func Columns(table string) []string {
	switch table {
	case TableInspections:
		return inspectionCols
	case TableDefects:
		return defectCols
	case TableActions:
		return actionCols
	case TableAdrTypes:
		return adrTypeCols
	case TableMeasurements:
		return measurementCols
	}
	return nil
}
