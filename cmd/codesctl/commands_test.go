package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"memoriqr-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintBatches(t *testing.T) {
	batches := []models.BatchSummary{
		{
			Batch: models.Batch{
				Name:                 "5N-20260301-ab12",
				ProductType:          models.ProductNFCOnly,
				HostingDurationYears: 5,
				TotalCodes:           10,
				CreatedAt:            time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
			},
			UsedCodes:   3,
			UnusedCodes: 5,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, printBatches(&buf, batches))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"NAME", "PRODUCT", "YEARS", "TOTAL", "USED", "UNUSED", "DELETED", "CREATED"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"5N-20260301-ab12", "nfc_only", "5", "10", "3", "5", "2", "2026-03-01"}, strings.Fields(lines[1]))
}

func TestCommandTree(t *testing.T) {
	gen := generateCmd()
	assert.NotNil(t, gen.Flags().Lookup("partner-id"))
	assert.NotNil(t, gen.Flags().Lookup("no-events"))

	tok := tokenCmd()
	role, err := tok.Flags().GetString("role")
	require.NoError(t, err)
	assert.Equal(t, "admin", role)

	assert.Error(t, lookupCmd().Args(lookupCmd(), nil))
}
