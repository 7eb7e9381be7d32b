package transport

import (
	"fmt"
	"net/netip"
	"strings"

	httperrors "github.com/nczempin/httpc-oneshot/errors"
)

// ValidateServerName checks that name can be sent as a TLS server name
// and matched against a certificate's DNS names.
func ValidateServerName(name string) error {
	if err := checkServerName(name); err != "" {
		return httperrors.NewInvalidArgumentError(
			httperrors.BadSNIName,
			fmt.Sprintf("%q: %s", name, err),
		)
	}
	return nil
}

func checkServerName(name string) string {
	if name == "" {
		return "empty"
	}
	if _, err := netip.ParseAddr(strings.Trim(name, "[]")); err == nil {
		return "ip address literal"
	}

	// a single trailing dot marks a fully qualified name
	name = strings.TrimSuffix(name, ".")
	if name == "" || len(name) > 253 {
		return "bad length"
	}

	labels := strings.Split(name, ".")
	for _, label := range labels {
		if msg := checkLabel(label); msg != "" {
			return msg
		}
	}

	if allDigits(labels[len(labels)-1]) {
		return "numeric top-level label"
	}
	return ""
}

func checkLabel(label string) string {
	if label == "" {
		return "empty label"
	}
	if len(label) > 63 {
		return "label too long"
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return "label starts or ends with hyphen"
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_':
		case c >= 0x80:
			return "non-ascii character"
		default:
			return fmt.Sprintf("invalid character %q", c)
		}
	}
	return ""
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
