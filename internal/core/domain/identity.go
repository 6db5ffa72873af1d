package domain

// Identity is a named on-chain identity resolved via the node.
type Identity struct {
	Name           string   `json:"name"`
	IdentityAddr   string   `json:"identity_address"`
	PrimaryAddrs   []string `json:"primary_addresses,omitempty"`
	RevocationAddr string   `json:"revocation_address,omitempty"`
	RecoveryAddr   string   `json:"recovery_address,omitempty"`
}

// identityAddrLen is the base58 length of an identity-style address.
const identityAddrLen = 34

// IsIdentityAddress reports whether addr has the shape of an identity-style
// address (i-prefixed base58, fixed length) rather than a raw key-pair address.
func IsIdentityAddress(addr string) bool {
	if len(addr) != identityAddrLen || addr[0] != 'i' {
		return false
	}
	for i := 1; i < len(addr); i++ {
		c := addr[i]
		switch {
		case c >= '1' && c <= '9':
		case c >= 'A' && c <= 'Z' && c != 'I' && c != 'O':
		case c >= 'a' && c <= 'z' && c != 'l':
		default:
			return false
		}
	}
	return true
}
