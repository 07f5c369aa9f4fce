package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney_JSON(t *testing.T) {
	data, err := json.Marshal(Money(50000))
	require.NoError(t, err)
	assert.Equal(t, "500.00", string(data))

	var m Money
	require.NoError(t, json.Unmarshal([]byte(`12.345`), &m))
	assert.Equal(t, Money(1235), m, "rounds half away from zero")

	require.NoError(t, json.Unmarshal([]byte(`"-0.5"`), &m))
	assert.Equal(t, Money(-50), m)

	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &m))
}

func TestMoney_RepeatedAdjustmentsStayExact(t *testing.T) {
	outstanding, err := ParseMoney("1000.00")
	require.NoError(t, err)
	step, err := ParseMoney("0.10")
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		outstanding -= step
	}
	for i := 0; i < 1000; i++ {
		outstanding += step
	}
	assert.Equal(t, "1000.00", outstanding.String())
}

func TestDate_JSON(t *testing.T) {
	d := NewDate(2024, 3, 9)
	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-09"`, string(data))

	var parsed Date
	require.NoError(t, json.Unmarshal([]byte(`"2024-03-09T18:30:00Z"`), &parsed))
	assert.True(t, parsed.SameDay(d))

	var zero Date
	require.NoError(t, json.Unmarshal([]byte(`null`), &zero))
	assert.True(t, zero.IsZero())
}
