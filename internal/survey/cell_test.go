package survey

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCell(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind Kind
		text string
	}{
		{"blank", "   ", KindEmpty, ""},
		{"integer", "12", KindNumber, "12"},
		{"decimal", " 3.5 ", KindNumber, "3.5"},
		{"timestamp", "2024-03-01 10:30:00", KindTimestamp, "2024-03-01 10:30:00"},
		{"date only", "2024-03-01", KindTimestamp, "2024-03-01 00:00:00"},
		{"text", "Município de Sintra", KindText, "Município de Sintra"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ParseCell(tt.raw, DefaultTimeLayouts)
			assert.Equal(t, tt.kind, c.Kind())
			assert.Equal(t, tt.text, c.AsText())
		})
	}
}

func TestCellCoercion(t *testing.T) {
	n, ok := Number(4).AsInt()
	assert.True(t, ok)
	assert.Equal(t, int64(4), n)

	_, ok = Number(4.5).AsInt()
	assert.False(t, ok, "fractional values are not integers")

	f, ok := Text(" 7 ").AsFloat()
	assert.True(t, ok)
	assert.Equal(t, 7.0, f)

	_, ok = Text("sete").AsFloat()
	assert.False(t, ok)

	_, ok = Empty().AsFloat()
	assert.False(t, ok)

	ts, ok := Text("2024-01-02 03:04:05").AsTime(DefaultTimeLayouts)
	require.True(t, ok)
	assert.Equal(t, 2024, ts.Year())

	assert.True(t, Text("  ").IsEmpty())
	assert.True(t, Timestamp(time.Time{}).IsEmpty())
}

func TestCellEqual(t *testing.T) {
	assert.True(t, Text("a").Equal(Text("a")))
	assert.False(t, Text("1").Equal(Number(1)))
	assert.True(t, Empty().Equal(Text("")))
	assert.True(t, Number(2).Equal(Int(2)))
}

func TestCellJSON(t *testing.T) {
	row := Row{Empty(), Number(3), Text("sim")}
	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.JSONEq(t, `[null, 3, "sim"]`, string(data))

	var back Row
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, row.Equal(back))
}
