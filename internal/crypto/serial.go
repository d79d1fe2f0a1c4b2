package crypto

import (
	"fmt"
	"io"
	"math/big"

	"github.com/nicolas314/twoca/internal/pki"
)

// serialSize is the serial number width in bytes (128 bits).
const serialSize = 16

// serialTag brands issued serials so they are recognizably produced by
// this tool. The leading 0x2C keeps the high bit of the 128-bit value
// clear, so the ASN.1 INTEGER encoding is always positive.
var serialTag = [2]byte{0x2c, 0xca}

// NewSerial draws a 128-bit certificate serial number from the given
// random source and stamps the brand tag over the first two bytes.
// Collisions against previously issued serials are treated as negligible
// and not checked.
func NewSerial(random io.Reader) (*big.Int, error) {
	buf := make([]byte, serialSize)
	if _, err := io.ReadFull(random, buf); err != nil {
		return nil, pki.E("serial", pki.KindCrypto,
			fmt.Errorf("failed to read random bytes: %w", err))
	}
	buf[0] = serialTag[0]
	buf[1] = serialTag[1]
	return new(big.Int).SetBytes(buf), nil
}

// IsBrandedSerial reports whether a serial number carries the brand tag.
func IsBrandedSerial(serial *big.Int) bool {
	buf := serial.Bytes()
	return len(buf) == serialSize && buf[0] == serialTag[0] && buf[1] == serialTag[1]
}
