package rose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDivertingLegInformation2RoundTrip(t *testing.T) {
	d := DivertingLegInformation2{
		InvokeID:        3,
		Reason:          DivReasonCFNR,
		DivertingNum:    "5551234",
		DivertingPresent: true,
		OriginalNum:     "5559999",
		OriginalPresent: false,
	}
	buf := EncodeDivertingLegInformation2(d)
	got, err := DecodeDivertingLegInformation2(buf)
	require.NoError(t, err)
	assert.Equal(t, d.InvokeID, got.InvokeID)
	assert.Equal(t, d.Reason, got.Reason)
	assert.Equal(t, d.DivertingNum, got.DivertingNum)
	assert.True(t, got.DivertingPresent)
	assert.Equal(t, d.OriginalNum, got.OriginalNum)
	assert.False(t, got.OriginalPresent)
}

func TestDivertingLegInformation2OmitsEmptyNumbers(t *testing.T) {
	d := DivertingLegInformation2{InvokeID: 1, Reason: DivReasonCFU}
	buf := EncodeDivertingLegInformation2(d)
	got, err := DecodeDivertingLegInformation2(buf)
	require.NoError(t, err)
	assert.Empty(t, got.DivertingNum)
	assert.Empty(t, got.OriginalNum)
}
