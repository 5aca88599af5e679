package render

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"campusworks.org/idcard-admin/internal/records"
)

func TestAppendIdentifierStudent(t *testing.T) {
	t.Parallel()

	card := Card{Side: "front"}
	require.NoError(t, AppendIdentifier(&card, studentRecord()))
	require.Len(t, card.Elements, 1)

	el := card.Elements[0]
	require.True(t, strings.HasPrefix(el.Src, "data:image/png;base64,"))

	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(el.Src, "data:image/png;base64,"))
	require.NoError(t, err)
	require.Equal(t, "\x89PNG", string(png[:4]))
}

func TestIdentifierPayloads(t *testing.T) {
	t.Parallel()

	staff := records.NewRecord(map[string]string{
		"type":        records.TypeStaff,
		"name":        "R. Menon",
		"employee_id": "EMP-204",
	})
	require.Equal(t, "Employee ID: EMP-204\nName: R. Menon", identifierPayload(staff))

	require.Equal(t, "Name: Asha Rao\nAdmission No: 2026-0113", identifierPayload(studentRecord()))

	unknown := records.NewRecord(map[string]string{"name": "X"})
	require.Equal(t, placeholderIdentifier, identifierPayload(unknown))
}
