package transport

import (
	"encoding/base32"
	"errors"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	// onionSuffix is the top-level domain of onion services.
	onionSuffix = ".onion"

	// onionV3Version is the trailing version byte of a v3 address.
	onionV3Version = 0x03
)

var (
	// ErrInvalidOnionAddress is returned for a .onion host that is not a
	// well-formed v3 address with a valid checksum.
	ErrInvalidOnionAddress = errors.New("invalid onion address")

	// ErrDeprecatedOnionAddress is returned for v2 addresses, which stopped
	// working on the Tor network in October 2021.
	ErrDeprecatedOnionAddress = errors.New("deprecated v2 onion address")
)

var (
	onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)
	onionV2Pattern = regexp.MustCompile(`^[a-z2-7]{16}\.onion$`)
)

// checksumPrefix is the constant prefix of the v3 checksum input.
var checksumPrefix = []byte(".onion checksum")

// IsOnionHost reports whether host belongs to the .onion TLD.
// Subdomains such as "www.<addr>.onion" count.
func IsOnionHost(host string) bool {
	return strings.HasSuffix(strings.ToLower(host), onionSuffix)
}

// ValidateOnionHost checks a .onion host offline. Subdomain labels in front
// of the 56 character address are ignored. It returns nil for non-onion hosts.
func ValidateOnionHost(host string) error {
	host = strings.ToLower(host)
	if !IsOnionHost(host) {
		return nil
	}

	labels := strings.Split(strings.TrimSuffix(host, onionSuffix), ".")
	address := labels[len(labels)-1] + onionSuffix

	if onionV2Pattern.MatchString(address) {
		return ErrDeprecatedOnionAddress
	}
	if !IsValidV3Address(address) {
		return ErrInvalidOnionAddress
	}
	return nil
}

// IsValidV3Address checks the format and checksum of a v3 onion address.
// The decoded address is pubkey (32 bytes) || checksum (2) || version (1),
// where checksum is the first two bytes of
// SHA3-256(".onion checksum" || pubkey || version).
func IsValidV3Address(address string) bool {
	address = strings.ToLower(address)
	if !onionV3Pattern.MatchString(address) {
		return false
	}

	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(strings.TrimSuffix(address, onionSuffix)))
	if err != nil || len(decoded) != 35 {
		return false
	}

	pubkey := decoded[:32]
	checksum := decoded[32:34]
	version := decoded[34]
	if version != onionV3Version {
		return false
	}

	expected := computeV3Checksum(pubkey, version)
	return checksum[0] == expected[0] && checksum[1] == expected[1]
}

func computeV3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)
	hash := sha3.Sum256(data)
	return hash[:2]
}
