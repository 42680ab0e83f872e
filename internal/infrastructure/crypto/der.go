package crypto

import (
	"fmt"

	"github.com/turtacn/pushgate/pkg/constants"
	"github.com/turtacn/pushgate/pkg/errors"
)

const (
	asn1TagSequence = 0x30
	asn1TagInteger  = 0x02
)

// DERToRaw converts an ASN.1 DER ECDSA signature
//
//	30 <len> 02 <rlen> <r> 02 <slen> <s>
//
// into the fixed-width r||s form JOSE ES256 requires. Each integer is
// right-aligned into a 32-byte slot: longer values lose their leading
// (sign padding) bytes, shorter values are left-padded with zeros.
func DERToRaw(der []byte) ([constants.SignatureRawLen]byte, error) {
	var raw [constants.SignatureRawLen]byte

	if len(der) < 8 || der[0] != asn1TagSequence {
		return raw, formatErr("missing SEQUENCE header")
	}

	pos := 2 // SEQUENCE tag + short-form length

	r, pos, err := readInteger(der, pos)
	if err != nil {
		return raw, err
	}
	s, _, err := readInteger(der, pos)
	if err != nil {
		return raw, err
	}

	putCoordinate(raw[:constants.SignatureCoordinateLen], r)
	putCoordinate(raw[constants.SignatureCoordinateLen:], s)
	return raw, nil
}

func readInteger(der []byte, pos int) ([]byte, int, error) {
	if pos >= len(der) || der[pos] != asn1TagInteger {
		return nil, pos, formatErr(fmt.Sprintf("missing INTEGER tag at offset %d", pos))
	}
	pos++
	if pos >= len(der) {
		return nil, pos, formatErr("truncated before INTEGER length")
	}
	n := int(der[pos])
	pos++
	if pos+n > len(der) {
		return nil, pos, formatErr(fmt.Sprintf("INTEGER of %d bytes overruns buffer", n))
	}
	return der[pos : pos+n], pos + n, nil
}

func putCoordinate(slot, v []byte) {
	if len(v) > len(slot) {
		v = v[len(v)-len(slot):]
	}
	copy(slot[len(slot)-len(v):], v)
}

func formatErr(reason string) error {
	return errors.ErrSignatureFormat.WithMessage("malformed DER signature: " + reason)
}
