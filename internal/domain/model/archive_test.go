package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestArchiveName(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "Classifier_v4_20240102_030405.zip", ArchiveName("Classifier", 4, at))
	assert.Equal(t, "API Documentation_v1_20240102_030405.zip", ArchiveName("API Documentation", 1, at))
	assert.Equal(t, "widgets_documentation_20240102_030405.zip", PackageName("widgets", at))
}

func TestLedger_NextAndMerge(t *testing.T) {
	l := Ledger{"A": 3}
	assert.Equal(t, 4, l.Next("A"))
	assert.Equal(t, 1, l.Next("B"))

	clone := l.Clone()
	clone["A"] = 10
	assert.Equal(t, 3, l["A"])

	l.Merge(Ledger{"A": 2, "B": 5})
	assert.Equal(t, Ledger{"A": 3, "B": 5}, l)
}
