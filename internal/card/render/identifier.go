package render

import (
	"encoding/base64"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"campusworks.org/idcard-admin/internal/card/template"
	"campusworks.org/idcard-admin/internal/records"
)

// QR identifier geometry on the card front.
const (
	identifierSizePx = 96
	identifierSlot   = "8px"
)

// placeholderIdentifier marks cards whose record type could not be
// classified. Scanners treat it as "verify manually".
const placeholderIdentifier = "UNVERIFIED"

// AppendIdentifier attaches the machine-readable identity QR to a rendered
// card. Students encode name and admission number, staff encode employee id
// and name; a record of unknown type gets the placeholder payload so the
// card still prints.
func AppendIdentifier(card *Card, rec records.Record) error {
	payload := identifierPayload(rec)
	png, err := qrcode.Encode(payload, qrcode.Medium, identifierSizePx)
	if err != nil {
		return fmt.Errorf("render: encode identifier: %w", err)
	}
	card.Elements = append(card.Elements, Element{
		Type:   template.FieldImage,
		Left:   identifierSlot,
		Top:    identifierSlot,
		Width:  template.Px(identifierSizePx),
		Height: template.Px(identifierSizePx),
		Src:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	})
	return nil
}

func identifierPayload(rec records.Record) string {
	switch rec.Type() {
	case records.TypeStudent:
		return joinLines(
			"Name: "+rec.Field(records.KeyName),
			"Admission No: "+rec.Field(records.KeyAdmissionNo),
		)
	case records.TypeStaff:
		return joinLines(
			"Employee ID: "+rec.Field(records.KeyEmployeeID),
			"Name: "+rec.Field(records.KeyName),
		)
	}
	return placeholderIdentifier
}

func joinLines(lines ...string) string {
	return strings.Join(lines, "\n")
}
