package utils

import (
	"io"
	"strings"

	"github.com/yeqown/go-qrcode"
)

// TicketPayload is what goes into a ticket's QR code. With a key the
// redemption code is sealed.
func TicketPayload(key []byte, code string) (string, error) {
	if len(key) == 0 {
		return code, nil
	}
	return EncryptMessage(key, code)
}

// ScannedCode turns a scanned payload back into a redemption code. Plain
// codes are accepted as typed in by door staff.
func ScannedCode(key []byte, scanned string) string {
	scanned = strings.TrimSpace(scanned)
	if len(key) == 0 || strings.HasPrefix(scanned, "TKT-") {
		return scanned
	}
	code, err := DecryptMessage(key, scanned)
	if err != nil {
		return scanned
	}
	return code
}

// RenderTicketQR writes the ticket's QR code image to w.
func RenderTicketQR(w io.Writer, key []byte, code string) error {
	payload, err := TicketPayload(key, code)
	if err != nil {
		return err
	}
	qrc, err := qrcode.New(payload)
	if err != nil {
		return err
	}
	return qrc.SaveTo(w)
}
