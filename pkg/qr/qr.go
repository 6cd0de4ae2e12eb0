package qr

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"
)

const size = 512

// TableURL is the link printed on the QR card of a table.
func TableURL(publicURL string, table int) string {
	return strings.TrimRight(publicURL, "/") + "/menu?table=" + url.QueryEscape(strconv.Itoa(table))
}

// TablePNG renders the QR card for table as a PNG.
func TablePNG(publicURL string, table int) ([]byte, error) {
	return qrcode.Encode(TableURL(publicURL, table), qrcode.Medium, size)
}
