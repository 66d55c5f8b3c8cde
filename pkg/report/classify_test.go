package report

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		item itemOpt
		col  string
		want Class
	}{
		{"resolved state wins over column", withState("Resolved"), "Documentación", ClassResolved},
		{"done state", withState("Done"), "", ClassResolved},
		{"resuelto column", withState("Active"), "Resuelto", ClassResolved},
		{"resuelto column any case", withState("New"), "  RESUELTO ", ClassResolved},
		{"accented column", withState("Active"), "Resueltó", ClassResolved},
		{"active", withState("Active"), "Documentación", ClassActive},
		{"new state", withState("New"), "Implementación", ClassNew},
		{"to do state", withState("To Do"), "", ClassNew},
		{"evaluacion column", withState("Active"), "EVALUACIÓN", ClassNew},
		{"state match is exact", withState("resolved"), "", ClassActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := enriched(1, tt.item, withColumn(tt.col))
			if got := Classify(it.WorkItem); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestVisibility(t *testing.T) {
	v := DefaultVisibility()
	if !v.Visible(ClassActive) || !v.Visible(ClassNew) || v.Visible(ClassResolved) {
		t.Errorf("unexpected default visibility %+v", v)
	}
	hidden := Visibility{}
	if !hidden.Visible(ClassActive) {
		t.Error("active items must always be visible")
	}
}

func TestSortColumns(t *testing.T) {
	cols := []string{"Zeta", "testing", "Sin Columna", "Evaluación", "Resuelto", "Alfa", "documentación"}
	SortColumns(cols)
	want := []string{"Evaluación", "documentación", "testing", "Resuelto", "Alfa", "Sin Columna", "Zeta"}
	if diff := cmp.Diff(want, cols); diff != "" {
		t.Errorf("column order mismatch (-want +got):\n%s", diff)
	}
}
